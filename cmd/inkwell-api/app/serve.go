package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inkwell-sh/inkwell/internal/api"
	v0 "github.com/inkwell-sh/inkwell/internal/api/v0"
	"github.com/inkwell-sh/inkwell/internal/auth"
	"github.com/inkwell-sh/inkwell/internal/config"
	"github.com/inkwell-sh/inkwell/internal/db"
	"github.com/inkwell-sh/inkwell/internal/ledger"
	"github.com/inkwell-sh/inkwell/internal/source"
	"github.com/inkwell-sh/inkwell/internal/storage"
	"github.com/inkwell-sh/inkwell/internal/sync"
	"github.com/inkwell-sh/inkwell/internal/telemetry"
	"github.com/inkwell-sh/inkwell/internal/upload"
	"github.com/inkwell-sh/inkwell/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the publishing API server",
	Long: `Start the publishing API server.

The server requires a configuration file (--config) that specifies:
- Database connection parameters
- Storage backend (S3-compatible or in-memory)
- Sync worker pool and upload limits

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 30 * time.Second // Upload batch issuance can touch storage
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 35 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

// newStorageBackend builds the configured storage backend.
func newStorageBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Type {
	case "s3":
		return storage.NewS3Backend(ctx, cfg.Storage.S3)
	case "memory":
		slog.Warn("Using in-memory storage backend; contents are lost on restart")
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unrecognized storage type: %s", cfg.Storage.Type)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath := viper.GetString("config")
	cfg, err := config.Load(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := cfg.Server.Address
	if cmd.Flags().Changed("address") {
		address = viper.GetString("address")
	}

	slog.Info("Starting publishing API server",
		"address", address, "storage", cfg.Storage.Type, "workers", cfg.Sync.Workers)

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store, err := ledger.NewDBStore(pool)
	if err != nil {
		return fmt.Errorf("failed to create ledger store: %w", err)
	}

	backend, err := newStorageBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}

	// Metrics pipeline: OTel meter provider exporting to a Prometheus
	// registry served on /metrics.
	registry := prometheus.NewRegistry()
	meterProvider, err := telemetry.NewMeterProvider(registry, versions.Version)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	metrics, err := telemetry.NewSyncMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	provider := source.NewGitProvider()
	applier := upload.NewApplier(store, backend)
	orchestrator := upload.NewOrchestrator(store, backend, cfg.Upload)
	dispatcher := sync.NewDispatcher(store, cfg.Sync.LeaseTTL)
	engine := sync.NewEngine(store, provider, applier, metrics)
	workers := sync.NewPool(store, engine, cfg.Sync.Workers, cfg.Sync.PollInterval)
	processor := upload.NewProcessor(store, backend, applier, cfg.Upload.URLTTL, cfg.Sync.PollInterval)

	// Background workers stop when this context is cancelled on shutdown.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go func() {
		if err := workers.Run(workerCtx); err != nil {
			slog.Error("Sync worker pool failed", "error", err)
		}
	}()
	go func() {
		if err := processor.Run(workerCtx); err != nil {
			slog.Error("Upload processor failed", "error", err)
		}
	}()

	deps := &v0.Deps{
		Store:         store,
		Backend:       backend,
		Dispatcher:    dispatcher,
		Orchestrator:  orchestrator,
		Authenticator: auth.NewStaticTokenAuthenticator(cfg.Auth.Tokens),
		Version:       versions.Version,
		Ready:         pool.Ping,
	}

	router := api.NewServer(deps,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
		api.WithMetricsRegistry(registry),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down meter provider", "error", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}
