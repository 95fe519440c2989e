package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/auditwise/docqa/internal/adapters/http"
	"github.com/auditwise/docqa/internal/bootstrap"
	"github.com/auditwise/docqa/internal/config"
	"github.com/auditwise/docqa/internal/observability/logging"
	"github.com/auditwise/docqa/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverMetrics := metrics.NewHTTPServerMetrics("api")

	app, err := bootstrap.New(ctx, cfg, logger, serverMetrics.RetrievalObserver("api"))
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	// Every api replica holds its own in-process cache, so document
	// update events fan out to all of them.
	go func() {
		err := app.Queue.SubscribeDocumentUpdated(ctx, func(_ context.Context, documentID string) error {
			removed := app.RetrieveUC.Invalidate(documentID)
			logger.Info("cache_invalidated", "document_id", documentID, "entries_removed", removed)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("document update subscription failed", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := app.RetrieveUC.CacheStats()
				serverMetrics.RecordCacheStats("api", stats.Size, stats.Evictions)
			}
		}
	}()

	router := httpadapter.NewRouter(
		cfg,
		app.IngestUC,
		app.RetrieveUC,
		app.ChatUC,
		app.Repo,
		app.RemoveUC,
		serverMetrics.Handler(),
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      serverMetrics.Middleware("api", router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
