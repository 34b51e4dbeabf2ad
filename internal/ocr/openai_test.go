package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/labtext/internal/model"
)

func newTestOpenAI(t *testing.T, url string) *OpenAIExtractor {
	t.Helper()
	e, err := NewOpenAIExtractor(model.OpenAIConfig{APIKey: "test-key", BaseURL: url, Model: "gpt-4o-mini"}, 0)
	require.NoError(t, err)
	return e
}

func TestOpenAIExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Messages, 1) && assert.Len(t, req.Messages[0].MultiContent, 2) {
			parts := req.Messages[0].MultiContent
			assert.Contains(t, parts[0].Text, "line breaks")
			if assert.NotNil(t, parts[1].ImageURL) {
				assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,"))
			}
		}

		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			ID:    "chatcmpl-1",
			Model: "gpt-4o-mini",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: "Patient ID : PT12345\nLab ID:LT987\n",
				},
				FinishReason: "stop",
			}},
		})
	}))
	defer server.Close()

	e := newTestOpenAI(t, server.URL)
	text, err := e.Extract(context.Background(), Document{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: MimePNG})
	require.NoError(t, err)
	assert.Equal(t, "Patient ID : PT12345\nLab ID:LT987", text)
	assert.Equal(t, "openai", e.Name())
}

func TestOpenAIExtractor_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL).Extract(context.Background(), Document{Data: []byte("img"), MimeType: MimeJPEG})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResourceExhausted), "got %v", err)
}

func TestOpenAIExtractor_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(t, server.URL).Extract(context.Background(), Document{Data: []byte("img"), MimeType: MimeJPEG})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrResourceExhausted))
}

func TestOpenAIExtractor_RejectsPDF(t *testing.T) {
	e := newTestOpenAI(t, "http://127.0.0.1:1")
	_, err := e.Extract(context.Background(), Document{Data: []byte("%PDF"), MimeType: MimePDF})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestNewOpenAIExtractor_RequiresKey(t *testing.T) {
	_, err := NewOpenAIExtractor(model.OpenAIConfig{}, 0)
	assert.Error(t, err)
}
