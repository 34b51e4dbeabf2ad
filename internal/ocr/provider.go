package ocr

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrResourceExhausted is a transient quota or rate-limit rejection; the
	// call may be retried after a backoff.
	ErrResourceExhausted = errors.New("ocr provider resource exhausted")

	// ErrUnsupportedFormat means the extractor cannot read this kind of document
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Known document MIME types
const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWEBP = "image/webp"
	MimeText = "text/plain"
)

// SupportedExtensions are the file extensions batch discovery picks up
var SupportedExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".webp", ".txt"}

// Document is one input handed to an OCR provider
type Document struct {
	Path     string // Source path, informational
	Data     []byte
	MimeType string
}

// Extractor turns a document into raw OCR text with line breaks preserved
type Extractor interface {
	// Name identifies the provider in logs, metrics and cache keys
	Name() string

	// Extract returns the document text
	Extract(ctx context.Context, doc Document) (string, error)
}

// LoadDocument reads a file and detects its type
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document: %w", err)
	}
	return Document{
		Path:     path,
		Data:     data,
		MimeType: DetectMimeType(path, data),
	}, nil
}

// DetectMimeType prefers the file extension and falls back to content sniffing
func DetectMimeType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return MimePDF
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".webp":
		return MimeWEBP
	case ".txt", ".text":
		return MimeText
	}

	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return baseType(t)
	}
	return baseType(http.DetectContentType(data))
}

// IsImage reports whether the MIME type is a raster image
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

func baseType(t string) string {
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}
