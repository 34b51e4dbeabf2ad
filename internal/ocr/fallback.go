package ocr

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// FallbackExtractor tries each extractor in order and returns the first text
type FallbackExtractor struct {
	chain  []Extractor
	logger *zap.Logger
}

// NewFallbackExtractor builds a fallback chain; nil entries are skipped
func NewFallbackExtractor(logger *zap.Logger, chain ...Extractor) *FallbackExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	var kept []Extractor
	for _, e := range chain {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return &FallbackExtractor{chain: kept, logger: logger}
}

// Name returns the primary provider name
func (f *FallbackExtractor) Name() string {
	if len(f.chain) == 0 {
		return "none"
	}
	return f.chain[0].Name()
}

// Extract returns the first successful extraction, or every failure joined
func (f *FallbackExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if len(f.chain) == 0 {
		return "", errors.New("no OCR provider configured")
	}

	var errs []error
	for i, e := range f.chain {
		text, err := e.Extract(ctx, doc)
		if err == nil {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(f.chain)-1 {
			f.logger.Info("OCR provider failed, trying next",
				zap.String("provider", e.Name()),
				zap.String("next", f.chain[i+1].Name()),
				zap.String("file", doc.Path),
				zap.Error(err),
			)
		}
	}
	return "", errors.Join(errs...)
}

// RouterExtractor sends each document to the extractor registered for its MIME
// type, or to the default one
type RouterExtractor struct {
	routes   map[string]Extractor
	fallback Extractor
}

// NewRouterExtractor creates a router with a default extractor
func NewRouterExtractor(def Extractor) *RouterExtractor {
	return &RouterExtractor{routes: make(map[string]Extractor), fallback: def}
}

// Route registers an extractor for a MIME type
func (r *RouterExtractor) Route(mimeType string, e Extractor) *RouterExtractor {
	r.routes[mimeType] = e
	return r
}

// Name returns the default provider name
func (r *RouterExtractor) Name() string {
	return r.fallback.Name()
}

// Extract dispatches on doc.MimeType
func (r *RouterExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if e, ok := r.routes[doc.MimeType]; ok {
		return e.Extract(ctx, doc)
	}
	return r.fallback.Extract(ctx, doc)
}
