package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pandal-finder/internal/batch"
	"pandal-finder/internal/finder"
	"pandal-finder/internal/observability"
	"pandal-finder/internal/server"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server (the default action)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, o)
		},
	}
}

func runServe(cmd *cobra.Command, o *rootOptions) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	ds, err := loadDataset(cfg, logger)
	if err != nil {
		return err
	}

	f := finder.New(ds, finderOptions(cfg), logger, metrics)
	runner := batch.NewRunner(batch.NewStore(), ds.Pandals(), cfg.RoadFactor,
		filepath.Join(cfg.BatchDir, "output"), nil, logger, metrics)

	gin.SetMode(gin.ReleaseMode)
	srv, err := server.New(server.Options{
		Addr:          cfg.HTTPAddr,
		SessionSecret: cfg.SessionSecret,
		CORSOrigins:   cfg.CORSOrigins,
		UploadDir:     filepath.Join(cfg.BatchDir, "uploads"),
	}, f, runner, nil, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
