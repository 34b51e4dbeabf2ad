package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/labtext/internal/model"
	"github.com/ppiankov/labtext/internal/pipeline"
)

var (
	parseOut     string
	parseTimeout time.Duration
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a single lab report",
	Long: `Parse runs one document through OCR and extraction and writes the
structured record as JSON.

Use "-" to read already-extracted OCR text from stdin.

Example:
  labtext parse report.pdf
  labtext parse scan.jpg --provider openai --out scan.json
  pdftotext report.pdf - | labtext parse -`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseOut, "out", "o", "", "output JSON path (default: stdout)")
	parseCmd.Flags().DurationVar(&parseTimeout, "timeout", 10*time.Minute, "overall timeout including OCR retries")
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	p, closeFn, err := pipeline.NewFromConfig(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	var res *model.ParseResult
	if args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		res = p.ProcessText(ctx, "stdin", string(data))
	} else {
		res = p.ProcessFile(ctx, args[0])
	}

	renderer := pipeline.NewRenderer(cfg.Output.Pretty)
	if parseOut == "" {
		if err := renderer.Encode(os.Stdout, res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	} else {
		if err := renderer.RenderJSON(res, parseOut); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", parseOut)
		}
	}

	renderer.RenderSummary(os.Stderr, res)
	if !res.Success {
		return fmt.Errorf("document failed: %s", res.Error)
	}
	return nil
}
