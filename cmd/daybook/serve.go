package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook"
	"github.com/jxucoder/daybook/internal/config"
	"github.com/jxucoder/daybook/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daybook server",
	Long: `Start the HTTP server: the chat relay (POST /api/chat, GET /api/chat/ws),
the task board and notes API, and the reminder loop.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'daybook config setup' to fix", err)
	}

	logger, err := logging.Init(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: log file unavailable: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, _ := cfg.ResolveProvider()
	logger.Info("starting daybook", "version", version, "provider", provider, "model", cfg.Model)

	app, err := daybook.NewBuilder().
		WithConfig(cfg).
		WithLogger(logger).
		Build(ctx)
	if err != nil {
		return err
	}
	return app.Start(ctx)
}
