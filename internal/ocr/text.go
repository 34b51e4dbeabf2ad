package ocr

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TextExtractor passes through documents that already are OCR text dumps
type TextExtractor struct{}

// NewTextExtractor creates a text passthrough extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Name returns the provider name
func (e *TextExtractor) Name() string {
	return "text"
}

// Extract returns the document bytes as text; invalid UTF-8 sequences are dropped
func (e *TextExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if doc.MimeType != MimeText {
		return "", fmt.Errorf("%w: text extractor got %s", ErrUnsupportedFormat, doc.MimeType)
	}
	text := string(doc.Data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return strings.TrimPrefix(text, "\uFEFF"), nil
}
