package ocr

import "context"

// Throttle blocks until a call for key may proceed
type Throttle interface {
	Wait(ctx context.Context, key string) error
}

// ThrottledExtractor waits on a Throttle keyed by provider name before each call
type ThrottledExtractor struct {
	inner    Extractor
	throttle Throttle
}

// NewThrottledExtractor wraps inner with throttle
func NewThrottledExtractor(inner Extractor, throttle Throttle) *ThrottledExtractor {
	return &ThrottledExtractor{inner: inner, throttle: throttle}
}

// Name returns the wrapped provider name
func (t *ThrottledExtractor) Name() string {
	return t.inner.Name()
}

// Extract waits for clearance then calls the wrapped extractor
func (t *ThrottledExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if t.throttle != nil {
		if err := t.throttle.Wait(ctx, t.inner.Name()); err != nil {
			return "", err
		}
	}
	return t.inner.Extract(ctx, doc)
}
