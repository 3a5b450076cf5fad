// Package main provides the deptrack server entry point: the HTTP API, the
// scheduled sync loop and the database schema setup.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"

	"github.com/deptrack/deptrack/pkg/api"
	"github.com/deptrack/deptrack/pkg/db"
	"github.com/deptrack/deptrack/pkg/ha"
	"github.com/deptrack/deptrack/pkg/hostlimit"
	"github.com/deptrack/deptrack/pkg/manifest"
	"github.com/deptrack/deptrack/pkg/store"
	"github.com/deptrack/deptrack/pkg/sync"
)

const apiPrefix = "/api/deptrack/v1alpha1"

func main() {
	var (
		listenAddr       string
		databaseType     string
		databaseDSN      string
		migrateURL       string
		pollInterval     time.Duration
		fetchTimeout     time.Duration
		hostSlots        int
		excludedFields   string
		skipWhileDrifted bool
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "", "Database type (postgres or mysql)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.StringVar(&migrateURL, "migrate-url", "", "Migration connection URL; when empty the schema is auto-migrated")
	flag.DurationVar(&pollInterval, "poll-interval", time.Minute, "Scheduler poll interval")
	flag.DurationVar(&fetchTimeout, "fetch-timeout", 30*time.Second, "Per-manifest fetch timeout")
	flag.IntVar(&hostSlots, "host-slots", hostlimit.DefaultMaxPerHost, "Max concurrent fetches per manifest host")
	flag.StringVar(&excludedFields, "excluded-fields", "", "Comma-separated service fields removed from manifest authority")
	flag.BoolVar(&skipWhileDrifted, "skip-while-drifted", false, "Leave drifted fields untouched until their flags are resolved")
	flag.Parse()

	_ = flag.Set("logtostderr", "true")

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if databaseDSN == "" {
		databaseDSN = os.Getenv("DATABASE_DSN")
	}
	if databaseType == "" {
		databaseType = envOrDefault("DATABASE_TYPE", "postgres")
	}
	if databaseDSN == "" {
		glog.Fatalf("Database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
	}

	logger.Info("starting deptrack server",
		"listen", listenAddr,
		"db_type", databaseType,
		"poll_interval", pollInterval.String(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := db.Connect(databaseType, databaseDSN, logger)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	if err := ha.SetupSchema(ctx, gormDB, migrateURL); err != nil {
		glog.Fatalf("Failed to set up schema: %v", err)
	}
	logger.Info("schema is up to date")

	fetcher := manifest.NewFetcher(hostlimit.New(hostSlots), &http.Client{}, fetchTimeout)

	opts := []sync.Option{
		sync.WithLogger(logger),
		sync.WithApplierConfig(sync.ApplierConfig{SkipWhileDrifted: skipWhileDrifted}),
	}
	if excludedFields != "" {
		fields := strings.Split(excludedFields, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		opts = append(opts, sync.WithExcludedFields(fields...))
	}
	coordinator := sync.NewCoordinator(gormDB, fetcher, opts...)

	scheduler := sync.NewScheduler(coordinator, store.NewManifestConfigStore(gormDB), pollInterval, logger)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(ctx)
	}()

	router := chi.NewRouter()
	router.Mount(apiPrefix, api.NewRouter(gormDB, coordinator))

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("deptrack server ready", "listen", listenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// A scheduled run caught mid-flight finishes before the process exits.
	<-schedulerDone

	logger.Info("deptrack server stopped")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
