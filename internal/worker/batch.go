package worker

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/labtext/internal/metrics"
	"github.com/ppiankov/labtext/internal/model"
	"github.com/ppiankov/labtext/internal/ocr"
)

// Processor turns one document into a record; failures are reported in the record
type Processor interface {
	ProcessFile(ctx context.Context, path string) *model.ParseResult
}

// FileJob processes one document
type FileJob struct {
	Path      string
	Processor Processor
	Metrics   *metrics.Metrics
}

// Execute runs the processor on the document
func (j *FileJob) Execute(ctx context.Context) Result {
	j.Metrics.WorkerStarted()
	defer j.Metrics.WorkerDone()

	record := j.Processor.ProcessFile(ctx, j.Path)
	if record == nil {
		record = model.FailedResult(uuid.NewString(), j.Path, fmt.Errorf("no result produced"))
	}
	return &FileResult{Record: record}
}

// Recover converts a panic into a failed record for this document only
func (j *FileJob) Recover(v any) Result {
	j.Metrics.ObserveDocument(false, 0)
	return &FileResult{
		Record: model.FailedResult(uuid.NewString(), j.Path, fmt.Errorf("panic processing document: %v", v)),
	}
}

// FileResult represents the result of a file job
type FileResult struct {
	Record *model.ParseResult
}

// GetError returns the document-level error, if any
func (r *FileResult) GetError() error {
	if r.Record == nil || r.Record.Success {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Record.SourceFile, r.Record.Error)
}

// BatchProcessor processes multiple documents concurrently
type BatchProcessor struct {
	processor Processor
	workers   int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewBatchProcessor creates a new batch processor; workers is clamped to [1, 3]
func NewBatchProcessor(processor Processor, workers int, logger *zap.Logger, m *metrics.Metrics) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchProcessor{
		processor: processor,
		workers:   model.ConcurrencyConfig{Workers: workers}.EffectiveWorkers(),
		logger:    logger,
		metrics:   m,
	}
}

// ProcessFiles processes documents concurrently and returns one record per
// path in completion order. A failing document never affects its siblings.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*model.ParseResult {
	return b.ProcessFilesFunc(ctx, paths, nil)
}

// ProcessFilesFunc is ProcessFiles with a callback invoked as each record completes
func (b *BatchProcessor) ProcessFilesFunc(ctx context.Context, paths []string, onResult func(*model.ParseResult)) []*model.ParseResult {
	if len(paths) == 0 {
		return []*model.ParseResult{}
	}

	workers := b.workers
	if workers > len(paths) {
		workers = len(paths)
	}
	b.logger.Info("starting batch", zap.Int("documents", len(paths)), zap.Int("workers", workers))

	pool := NewPool(workers)
	pool.Start()

	go func() {
		for _, path := range paths {
			pool.Submit(&FileJob{Path: path, Processor: &ctxProcessor{ctx: ctx, inner: b.processor}, Metrics: b.metrics})
		}
		pool.Close()
	}()

	collector := NewResultCollector()
	for result := range pool.Results() {
		collector.Add(result)
		record := result.(*FileResult).Record
		if err := result.GetError(); err != nil {
			b.logger.Warn("document failed", zap.String("file", record.SourceFile), zap.Error(err))
		}
		if onResult != nil {
			onResult(record)
		}
	}

	results := collector.Results()
	records := make([]*model.ParseResult, len(results))
	for i, result := range results {
		records[i] = result.(*FileResult).Record
	}
	return records
}

// ctxProcessor runs the inner processor under the batch context rather than the pool's
type ctxProcessor struct {
	ctx   context.Context
	inner Processor
}

func (p *ctxProcessor) ProcessFile(_ context.Context, path string) *model.ParseResult {
	return p.inner.ProcessFile(p.ctx, path)
}

// Status of a batch run
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// BatchSummary aggregates per-document outcomes
type BatchSummary struct {
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Status    string `json:"status"`
}

// Summarize counts successes and failures. A batch is completed when nothing
// failed, failed when nothing succeeded, partial otherwise.
func Summarize(records []*model.ParseResult) BatchSummary {
	s := BatchSummary{Total: len(records)}
	for _, r := range records {
		if r != nil && r.Success {
			s.Processed++
		} else {
			s.Failed++
		}
	}

	switch {
	case s.Failed == 0:
		s.Status = StatusCompleted
	case s.Processed == 0:
		s.Status = StatusFailed
	default:
		s.Status = StatusPartial
	}
	return s
}

// DiscoverFiles returns the supported documents under dir, sorted. Hidden
// directories are skipped.
func DiscoverFiles(dir string) ([]string, error) {
	supported := make(map[string]bool, len(ocr.SupportedExtensions))
	for _, ext := range ocr.SupportedExtensions {
		supported[ext] = true
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if supported[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ReadPathsFromFile reads document paths from a list file (one per line).
// Relative paths are resolved against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
