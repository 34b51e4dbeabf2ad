package ocr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/labtext/internal/cache"
)

// CachingExtractor memoizes extracted text by provider and document content
type CachingExtractor struct {
	inner  Extractor
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachingExtractor wraps inner; a nil cache disables memoization
func NewCachingExtractor(inner Extractor, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachingExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingExtractor{inner: inner, cache: c, ttl: ttl, logger: logger}
}

// Name returns the wrapped provider name
func (c *CachingExtractor) Name() string {
	return c.inner.Name()
}

// Extract returns cached text when present, otherwise extracts and stores it.
// Failures are never cached.
func (c *CachingExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if c.cache == nil {
		return c.inner.Extract(ctx, doc)
	}

	key := cache.CacheKey(c.inner.Name(), doc.Data)
	if data, ok := c.cache.Get(key); ok {
		c.logger.Debug("OCR cache hit", zap.String("file", doc.Path), zap.String("provider", c.inner.Name()))
		return string(data), nil
	}

	text, err := c.inner.Extract(ctx, doc)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(key, []byte(text), c.ttl); err != nil {
		c.logger.Warn("failed to cache OCR text", zap.String("file", doc.Path), zap.Error(err))
	}
	return text, nil
}
