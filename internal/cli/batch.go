package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/labtext/internal/metrics"
	"github.com/ppiankov/labtext/internal/model"
	"github.com/ppiankov/labtext/internal/pipeline"
	"github.com/ppiankov/labtext/internal/worker"
)

var (
	batchTimeout time.Duration
	sortResults  bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list-file>",
	Short: "Parse many lab reports in parallel",
	Long: `Batch processes many documents concurrently:
- Discover .pdf, .png, .jpg, .jpeg, .webp and .txt files in a directory,
  or read paths from a list file (one per line)
- Process documents with up to 3 workers (the OCR quota limit)
- Write one JSON record per document plus results.json with all records

A failing document never stops the batch; it is recorded with success=false.

Example:
  labtext batch ./reports
  labtext batch files.txt --workers 2 --output-dir ./out
  labtext batch ./reports --provider documentai --sort`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("workers", model.MaxWorkers, "number of concurrent workers (max 3)")
	batchCmd.Flags().String("output-dir", "./labtext-results", "output directory for records")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&sortResults, "sort", false, "sort results.json by source file instead of completion order")

	_ = viper.BindPFlag("concurrency.workers", batchCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("output.dir", batchCmd.Flags().Lookup("output-dir"))
}

// batchReport is the content of results.json
type batchReport struct {
	Summary worker.BatchSummary  `json:"summary"`
	Results []*model.ParseResult `json:"results"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	paths, err := resolveInputs(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no supported documents found in %s", args[0])
	}

	outputDir := cfg.Output.Dir
	workers := cfg.Concurrency.EffectiveWorkers()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  labtext Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s (%d documents)\n", args[0], len(paths))
	fmt.Fprintf(os.Stderr, "  OCR provider: %s\n", cfg.OCR.Provider)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	m := metrics.New()
	p, closeFn, err := pipeline.NewFromConfig(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	renderer := pipeline.NewRenderer(cfg.Output.Pretty)
	names := newNameAllocator()

	processor := worker.NewBatchProcessor(p, workers, logger, m)
	results := processor.ProcessFilesFunc(ctx, paths, func(res *model.ParseResult) {
		renderer.RenderSummary(os.Stderr, res)

		path := filepath.Join(outputDir, names.next(res))
		if err := renderer.RenderJSON(res, path); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", res.SourceFile, err)
		}
	})

	if sortResults {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].SourceFile < results[j].SourceFile
		})
	}

	summary := worker.Summarize(results)
	resultsPath := filepath.Join(outputDir, "results.json")
	if err := renderer.RenderJSON(batchReport{Summary: summary, Results: results}, resultsPath); err != nil {
		return fmt.Errorf("render results: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch %s\n", strings.ToUpper(summary.Status[:1])+summary.Status[1:])
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d documents\n", summary.Total)
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", summary.Processed)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Results:   %s\n", resultsPath)
	fmt.Fprintf(os.Stderr, "\n")

	if summary.Status == worker.StatusFailed {
		return fmt.Errorf("all %d documents failed", summary.Total)
	}
	return nil
}

// resolveInputs expands a directory or list file into document paths
func resolveInputs(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if info.IsDir() {
		return worker.DiscoverFiles(input)
	}
	return worker.ReadPathsFromFile(input)
}

// nameAllocator hands out unique per-document output file names
type nameAllocator struct {
	used map[string]bool
}

func newNameAllocator() *nameAllocator {
	return &nameAllocator{used: map[string]bool{"results.json": true}}
}

func (a *nameAllocator) next(res *model.ParseResult) string {
	name := pipeline.ResultFilename(res)
	if a.used[name] {
		id := res.ID
		if len(id) > 8 {
			id = id[:8]
		}
		name = strings.TrimSuffix(name, ".json") + "-" + id + ".json"
	}
	a.used[name] = true
	return name
}
