package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/labtext/internal/model"
	"github.com/ppiankov/labtext/internal/util"
)

const transcriptionPrompt = `Transcribe all text in this clinical laboratory report image exactly as printed.
Preserve the original line breaks and reading order. Keep Khmer and English text as-is.
Do not translate, summarize, correct or add anything. Output plain text only.`

// OpenAIExtractor transcribes scanned report images with a vision chat model
type OpenAIExtractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIExtractor creates a vision OCR provider
func NewOpenAIExtractor(cfg model.OpenAIConfig, timeout time.Duration) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = util.NewHTTPClient(util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy))

	modelName := cfg.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &OpenAIExtractor{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   modelName,
		timeout: timeout,
	}, nil
}

// Name returns the provider name
func (e *OpenAIExtractor) Name() string {
	return "openai"
}

// Extract sends the image as a data URL and returns the transcription
func (e *OpenAIExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if !IsImage(doc.MimeType) {
		return "", fmt.Errorf("%w: openai extractor got %s", ErrUnsupportedFormat, doc.MimeType)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	dataURL := "data:" + doc.MimeType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data)

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: transcriptionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		Temperature: 0,
	}

	resp, err := e.client.CreateChatCompletion(ctxWithTimeout, req)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("%w: %v", ErrResourceExhausted, err)
		}
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("OpenAI returned no text")
	}
	return text, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}
