package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/labtext/internal/cache"
	"github.com/ppiankov/labtext/internal/extract"
	"github.com/ppiankov/labtext/internal/metrics"
	"github.com/ppiankov/labtext/internal/model"
	"github.com/ppiankov/labtext/internal/ocr"
	"github.com/ppiankov/labtext/internal/worker"
)

// ErrEmptyText is the document-level failure for documents without any text
var ErrEmptyText = errors.New("no text extracted from document")

// Pipeline orchestrates OCR and extraction for one document at a time.
// It is safe for concurrent use.
type Pipeline struct {
	extractor ocr.Extractor
	parser    *extract.Parser
	logger    *zap.Logger
	metrics   *metrics.Metrics
	debug     bool
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithDebug controls whether records carry diagnostics
func WithDebug(debug bool) Option {
	return func(p *Pipeline) { p.debug = debug }
}

// New creates a pipeline from its collaborators
func New(extractor ocr.Extractor, parser *extract.Parser, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor: extractor,
		parser:    parser,
		logger:    zap.NewNop(),
		debug:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig wires the OCR chain, cache, rate limiter and parser described by cfg.
// The returned close function releases provider connections.
func NewFromConfig(ctx context.Context, cfg *model.Config, logger *zap.Logger, m *metrics.Metrics) (*Pipeline, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	parserOpts := []extract.Option{extract.WithHospitalPhones(cfg.Parser.HospitalPhones)}
	if cfg.Parser.TableFile != "" {
		table, err := extract.LoadTable(cfg.Parser.TableFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load test table: %w", err)
		}
		parserOpts = append(parserOpts, extract.WithTable(table))
	}

	chain, err := ocr.NewExtractor(ctx, cfg.OCR, ocr.Options{
		Cache:    cache.New(cfg.Cache),
		CacheTTL: cfg.Cache.DiskTTL,
		Throttle: worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create OCR provider: %w", err)
	}

	p := New(chain, extract.NewParser(parserOpts...),
		WithLogger(logger),
		WithMetrics(m),
		WithDebug(cfg.Parser.Debug),
	)
	return p, chain.Close, nil
}

// ProcessFile reads a document, extracts its text and parses it. Every
// failure is reported in the returned record.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) *model.ParseResult {
	start := time.Now()
	id := uuid.NewString()

	doc, err := ocr.LoadDocument(path)
	if err != nil {
		return p.fail(id, path, start, err)
	}

	text, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return p.fail(id, path, start, fmt.Errorf("OCR failed: %w", err))
	}

	return p.process(id, path, text, start)
}

// ProcessText parses already-extracted OCR text. name is recorded as the source.
func (p *Pipeline) ProcessText(ctx context.Context, name, text string) *model.ParseResult {
	start := time.Now()
	id := uuid.NewString()

	if err := ctx.Err(); err != nil {
		return p.fail(id, name, start, err)
	}
	return p.process(id, name, text, start)
}

func (p *Pipeline) process(id, source, text string, start time.Time) *model.ParseResult {
	if strings.TrimSpace(text) == "" {
		return p.fail(id, source, start, ErrEmptyText)
	}

	res, err := p.parse(text)
	if err != nil {
		return p.fail(id, source, start, err)
	}

	res.ID = id
	res.SourceFile = source
	res.ProcessingTime = time.Since(start).Seconds()

	p.metrics.ObserveDocument(true, time.Since(start))
	if res.Debug != nil {
		p.metrics.ObserveFieldMisses(res.Debug.FailedPatterns)
	}
	for _, tr := range res.TestResults {
		p.metrics.ObserveTestResult(tr.Category)
	}

	p.logger.Info("document processed",
		zap.String("file", source),
		zap.String("id", id),
		zap.Int("tests", len(res.TestResults)),
		zap.Float64("seconds", res.ProcessingTime),
	)
	if res.Debug != nil && len(res.Debug.FailedPatterns) > 0 {
		p.logger.Debug("unresolved fields", zap.String("file", source), zap.Strings("fields", res.Debug.FailedPatterns))
	}

	if !p.debug {
		res.Debug = nil
	}
	return res
}

// parse runs the extractor core; a panic becomes an error for this document
func (p *Pipeline) parse(text string) (res *model.ParseResult, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic during extraction: %v", v)
		}
	}()
	return p.parser.Parse(text), nil
}

func (p *Pipeline) fail(id, source string, start time.Time, err error) *model.ParseResult {
	res := model.FailedResult(id, source, err)
	res.ProcessingTime = time.Since(start).Seconds()
	if !p.debug {
		res.Debug = nil
	}

	p.metrics.ObserveDocument(false, time.Since(start))
	p.logger.Warn("document failed", zap.String("file", source), zap.String("id", id), zap.Error(err))
	return res
}
