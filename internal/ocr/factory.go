package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/labtext/internal/cache"
	"github.com/ppiankov/labtext/internal/metrics"
	"github.com/ppiankov/labtext/internal/model"
)

// Options carries the shared collaborators of an extractor chain
type Options struct {
	Cache    cache.Cache
	CacheTTL time.Duration
	Throttle Throttle
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Sleep    SleepFunc // Backoff sleep, replaced in tests
}

// Chain is the assembled extractor for one configuration
type Chain struct {
	Extractor
	closers []func() error
}

// Close releases provider connections
func (c *Chain) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewExtractor builds the extractor chain for cfg.Provider:
// text passthrough for .txt inputs, then the provider wrapped with throttling,
// retries and caching, then the local PDF path when fallback is enabled.
func NewExtractor(ctx context.Context, cfg model.OCRConfig, opts Options) (*Chain, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	chain := &Chain{}
	local := NewPDFExtractor()

	var remote Extractor
	switch provider := strings.ToLower(cfg.Provider); provider {
	case "documentai", "document_ai", "google":
		e, err := NewDocumentAIExtractor(ctx, cfg.DocumentAI)
		if err != nil {
			return nil, err
		}
		chain.closers = append(chain.closers, e.Close)
		remote = e

	case "openai":
		e, err := NewOpenAIExtractor(cfg.OpenAI, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		remote = e

	case "local", "":
		chain.Extractor = NewRouterExtractor(local).Route(MimeText, NewTextExtractor())
		return chain, nil

	case "text":
		chain.Extractor = NewTextExtractor()
		return chain, nil

	default:
		return nil, fmt.Errorf("unknown OCR provider: %s (supported: documentai, openai, local, text)", cfg.Provider)
	}

	var primary Extractor = wrapRemote(remote, cfg, opts, logger)
	if cfg.Fallback {
		primary = NewFallbackExtractor(logger, primary, local)
	}

	chain.Extractor = NewRouterExtractor(primary).Route(MimeText, NewTextExtractor())
	return chain, nil
}

func wrapRemote(remote Extractor, cfg model.OCRConfig, opts Options, logger *zap.Logger) Extractor {
	var e Extractor = remote
	if opts.Throttle != nil {
		e = NewThrottledExtractor(e, opts.Throttle)
	}

	retrying := NewRetryingExtractor(e, RetryPolicy{
		MaxRetries:  cfg.MaxRetries,
		BaseBackoff: cfg.BaseBackoff,
		MaxBackoff:  cfg.MaxBackoff,
	}, opts.Sleep, logger)
	if opts.Metrics != nil {
		retrying.onTry = opts.Metrics.ObserveOCR
	}

	return NewCachingExtractor(retrying, opts.Cache, opts.CacheTTL, logger)
}
