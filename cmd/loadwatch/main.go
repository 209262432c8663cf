// Loadwatch server — accepts tracking-failure incident reports over HTTP
// and streams root-cause investigations back as server-sent events.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/loadwatch/loadwatch/pkg/api"
	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/metrics"
	"github.com/loadwatch/loadwatch/pkg/oracle"
	"github.com/loadwatch/loadwatch/pkg/orchestrator"
	"github.com/loadwatch/loadwatch/pkg/probe"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("CONFIG_PATH", "./loadwatch.yaml"),
		"Path to configuration file")
	envPath := flag.String("env-file",
		getEnv("ENV_FILE", ".env"),
		"Path to .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envPath)
	}

	// 1. Initialize configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting loadwatch",
		"http_port", cfg.HTTPPort,
		"config", *configPath,
		"max_parallel", cfg.MaxParallel)

	// 2. Build the probe registry from configured adapter endpoints
	collector := metrics.NewCollector()
	sources := buildSources()
	if len(sources) == 0 {
		slog.Warn("No data source adapters configured; investigations will conclude on hypothesis reasoning alone")
	}
	registry := probe.NewRegistry(cfg, sources, collector)
	slog.Info("Probe registry initialized",
		"sources", len(sources),
		"capabilities", len(registry.CapabilityNames()))

	// 3. Create the oracle client
	orc := oracle.NewClient(cfg, registry)
	if cfg.Oracle.BaseURL == "" {
		slog.Warn("ORACLE_BASE_URL not set; running with deterministic fallback reasoning only")
	} else {
		slog.Info("Oracle client initialized", "base_url", cfg.Oracle.BaseURL, "model", cfg.Oracle.Model)
	}

	// 4. Create the orchestrator
	engine, err := orchestrator.New(cfg, registry, orc, collector)
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	// 5. Start HTTP server (non-blocking)
	server := api.NewServer(cfg, engine, registry)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 6. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 7. Graceful shutdown — in-flight investigations get cancelled when
	// their SSE connections close.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
