package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ppiankov/labtext/internal/model"
)

// processFunc sends one ProcessDocument call
type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)

// DocumentAIExtractor runs documents through a Google Document AI OCR processor
type DocumentAIExtractor struct {
	processorName string
	process       processFunc
	close         func() error
}

// NewDocumentAIExtractor connects to the regional Document AI endpoint
func NewDocumentAIExtractor(ctx context.Context, cfg model.DocumentAIConfig) (*DocumentAIExtractor, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("document AI project_id and processor_id are required")
	}
	location := cfg.Location
	if location == "" {
		location = "us"
	}

	opts := []option.ClientOption{
		option.WithEndpoint(location + "-documentai.googleapis.com:443"),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create document AI client: %w", err)
	}

	return &DocumentAIExtractor{
		processorName: processorName(cfg.ProjectID, location, cfg.ProcessorID),
		process: func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			return client.ProcessDocument(ctx, req)
		},
		close: client.Close,
	}, nil
}

func processorName(project, location, processor string) string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processor)
}

// Name returns the provider name
func (e *DocumentAIExtractor) Name() string {
	return "documentai"
}

// Extract sends the raw document bytes and returns the full document text
func (e *DocumentAIExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if doc.MimeType != MimePDF && !IsImage(doc.MimeType) {
		return "", fmt.Errorf("%w: document AI got %s", ErrUnsupportedFormat, doc.MimeType)
	}

	req := &documentaipb.ProcessRequest{
		Name: e.processorName,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: doc.MimeType,
			},
		},
	}

	resp, err := e.process(ctx, req)
	if err != nil {
		return "", classifyDocumentAIError(err)
	}

	text := resp.GetDocument().GetText()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("document AI returned no text")
	}
	return text, nil
}

// Close releases the gRPC connection
func (e *DocumentAIExtractor) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

func classifyDocumentAIError(err error) error {
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrResourceExhausted, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	default:
		return fmt.Errorf("document AI process: %w", err)
	}
}
