/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the finance engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment, then apply flags
  2. Configure structured logging
  3. Initialize SQLite store (seed a demo scenario into an empty store)
  4. Create API handler and router
  5. Start the snapshot scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override environment):
  -port      HTTP server port (PORT, default: 8080)
  -db        SQLite database path (DB_PATH, default: finance.db)
             Use ":memory:" for in-memory database
  -seed      Scenario loaded into an empty store (SEED_SCENARIO)

ENVIRONMENT:
  LOG_LEVEL          logrus level (default: info)
  SNAPSHOT_SCHEDULE  cron spec for statement snapshots (default: @daily,
                     empty disables)
  CORS_ORIGINS       comma-separated allowed origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  ./server -db="./data/finance.db"
  ./server -db=":memory:" -seed=card-installments
  LOG_LEVEL=debug ./server -port=3000

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - api/scheduler.go: Snapshot scheduler
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/finance-engine/api"
	"github.com/warp/finance-engine/config"
	"github.com/warp/finance-engine/store/sqlite"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.NewConfig()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.SeedScenario, "seed", cfg.SeedScenario, "Scenario loaded into an empty store")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(cfg.Level())

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, logger)

	if cfg.SeedScenario != "" {
		seedIfEmpty(handler, store, cfg.SeedScenario, logger)
	}

	scheduler := api.NewSnapshotScheduler(store, cfg.SnapshotSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start snapshot scheduler")
	}

	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	scheduler.Stop()

	logger.Info("Server stopped")
}

// seedIfEmpty loads the scenario only when the store has no assets, so a
// restart never wipes real data.
func seedIfEmpty(h *api.Handler, store *sqlite.Store, scenario string, logger *logrus.Logger) {
	ctx := context.Background()

	assets, err := store.ListAssets(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to inspect database")
	}
	if len(assets) > 0 {
		logger.WithField("scenario", scenario).Info("Store not empty, skipping seed")
		return
	}
	if err := h.SeedScenario(ctx, scenario); err != nil {
		logger.WithError(err).Fatal("Failed to seed scenario")
	}
}
