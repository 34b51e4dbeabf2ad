package ocr

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newFakeDocumentAI(fn processFunc) *DocumentAIExtractor {
	return &DocumentAIExtractor{
		processorName: processorName("proj", "eu", "abc123"),
		process:       fn,
	}
}

func TestDocumentAIExtractor_Extract(t *testing.T) {
	var got *documentaipb.ProcessRequest
	e := newFakeDocumentAI(func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		got = req
		return &documentaipb.ProcessResponse{Document: &documentaipb.Document{Text: "Patient ID : PT1\n"}}, nil
	})

	text, err := e.Extract(context.Background(), Document{Data: []byte("%PDF"), MimeType: MimePDF})
	require.NoError(t, err)
	assert.Equal(t, "Patient ID : PT1\n", text)

	require.NotNil(t, got)
	assert.Equal(t, "projects/proj/locations/eu/processors/abc123", got.GetName())
	assert.Equal(t, MimePDF, got.GetRawDocument().GetMimeType())
	assert.Equal(t, []byte("%PDF"), got.GetRawDocument().GetContent())
	assert.Equal(t, "documentai", e.Name())
	assert.NoError(t, e.Close())
}

func TestDocumentAIExtractor_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		is   error
	}{
		{"quota", status.Error(codes.ResourceExhausted, "quota exceeded"), ErrResourceExhausted},
		{"bad input", status.Error(codes.InvalidArgument, "unsupported"), ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeDocumentAI(func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
				return nil, tt.err
			})
			_, err := e.Extract(context.Background(), Document{MimeType: MimePNG})
			assert.True(t, errors.Is(err, tt.is), "got %v", err)
		})
	}

	e := newFakeDocumentAI(func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	_, err := e.Extract(context.Background(), Document{MimeType: MimePNG})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrResourceExhausted))
}

func TestDocumentAIExtractor_EmptyText(t *testing.T) {
	e := newFakeDocumentAI(func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
		return &documentaipb.ProcessResponse{Document: &documentaipb.Document{Text: "  "}}, nil
	})
	_, err := e.Extract(context.Background(), Document{MimeType: MimePDF})
	assert.Error(t, err)
}

func TestDocumentAIExtractor_RejectsText(t *testing.T) {
	_, err := newFakeDocumentAI(nil).Extract(context.Background(), Document{MimeType: MimeText})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
