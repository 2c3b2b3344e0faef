package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/doxynav/internal/config"
	"github.com/dgallion1/doxynav/internal/layout"
	"github.com/dgallion1/doxynav/internal/parser"
	"github.com/dgallion1/doxynav/internal/pipeline"
)

// Run starts the pipeline and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	preset, err := cfg.LayoutPreset()
	if err != nil {
		return err
	}
	adjusters, err := layout.NewRegistry(preset, log)
	if err != nil {
		return err
	}
	cache, err := NewPageCache(cfg.CacheMaxBytes)
	if err != nil {
		return fmt.Errorf("page cache: %w", err)
	}
	defer cache.Close()

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, adjusters, parser.NewRenderer(64), log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := NewServer(orch, cache, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting doxynav", "port", cfg.Port, "preset", preset.Name, "site_dir", cfg.SiteDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down...")
	case err := <-errCh:
		orch.Stop()
		return fmt.Errorf("server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", "error", err)
	}
	orch.Stop()
	return nil
}
