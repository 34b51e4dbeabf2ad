package ocr

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy bounds the backoff on resource exhaustion
type RetryPolicy struct {
	MaxRetries  int // Retries after the first attempt
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Backoff returns the delay before retry number attempt (0-based)
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// RetryingExtractor retries ErrResourceExhausted with capped exponential backoff.
// Any other error is returned immediately.
type RetryingExtractor struct {
	inner  Extractor
	policy RetryPolicy
	sleep  SleepFunc
	logger *zap.Logger
	onTry  func(provider, outcome string)
}

// NewRetryingExtractor wraps inner; a nil sleep uses Sleep and a nil logger discards
func NewRetryingExtractor(inner Extractor, policy RetryPolicy, sleep SleepFunc, logger *zap.Logger) *RetryingExtractor {
	if sleep == nil {
		sleep = Sleep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingExtractor{inner: inner, policy: policy, sleep: sleep, logger: logger}
}

// Name returns the wrapped provider name
func (r *RetryingExtractor) Name() string {
	return r.inner.Name()
}

// Extract calls the wrapped extractor until it succeeds, fails permanently or
// runs out of retries
func (r *RetryingExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		text, err := r.inner.Extract(ctx, doc)
		if err == nil {
			r.observe("success")
			return text, nil
		}
		lastErr = err
		if !errors.Is(err, ErrResourceExhausted) {
			r.observe("error")
			return "", err
		}
		r.observe("exhausted")
		if attempt == r.policy.MaxRetries {
			break
		}

		backoff := r.policy.Backoff(attempt)
		r.logger.Warn("OCR provider resource exhausted, backing off",
			zap.String("provider", r.inner.Name()),
			zap.String("file", doc.Path),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
		)
		if err := r.sleep(ctx, backoff); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (r *RetryingExtractor) observe(outcome string) {
	if r.onTry != nil {
		r.onTry(r.inner.Name(), outcome)
	}
}
