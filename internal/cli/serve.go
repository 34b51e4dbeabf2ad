package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/labtext/internal/metrics"
	"github.com/ppiankov/labtext/internal/pipeline"
	"github.com/ppiankov/labtext/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the parser over HTTP",
	Long: `Serve exposes the text-to-record parser as an HTTP API:

  POST /v1/parse   OCR text (text/plain or {"name","text"} JSON) -> record JSON
  GET  /healthz    liveness
  GET  /metrics    Prometheus metrics

Example:
  labtext serve --addr :8080
  curl --data-binary @report.txt localhost:8080/v1/parse`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	p, closeFn, err := pipeline.NewFromConfig(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	srv := server.New(server.Config{Processor: p, Metrics: m, Logger: logger})

	fmt.Fprintf(os.Stderr, "✓ labtext %s listening on %s\n", Version, cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server stopped", zap.Error(err))
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
