package main

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

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lysyi3m/i79-incidents/app/api"
	"github.com/lysyi3m/i79-incidents/app/cfg"
	"github.com/lysyi3m/i79-incidents/app/metrics"
	"github.com/lysyi3m/i79-incidents/app/overrides"
	"github.com/lysyi3m/i79-incidents/app/pipeline"
	"github.com/lysyi3m/i79-incidents/app/source"
	"github.com/lysyi3m/i79-incidents/app/tasks"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	appCfg, err := cfg.Load(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if appCfg == nil {
		// Help was shown
		return 0
	}

	runID := uuid.New().String()
	slog.SetDefault(cfg.NewLogger(appCfg, os.Stderr).With("run_id", runID))

	slog.Info("Starting I-79 incident run",
		"sources_dir", appCfg.SourcesDir,
		"overrides", appCfg.OverridesFile,
		"outputs", appCfg.OutputPaths,
		"workers", appCfg.WorkerCount,
		"lookback_years", appCfg.LookbackYears)

	// Configuration problems abort before anything is fetched or written.
	configCache := source.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load source configurations", "error", err)
		return 1
	}
	configs := configCache.GetEnabledConfigs()
	slog.Info("Source configurations loaded", "total", configCache.GetConfigCount(), "enabled", len(configs))

	doc, err := overrides.Load(appCfg.OverridesFile)
	if err != nil {
		slog.Error("Override document rejected", "path", appCfg.OverridesFile, "error", err)
		return 1
	}
	slog.Info("Overrides loaded", "patches", len(doc.IncidentOverrides), "manual_incidents", len(doc.ManualIncidents))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	m := metrics.New()

	p := pipeline.NewPipeline(pipeline.Options{
		Configs:     configs,
		Overrides:   doc,
		Transport:   source.NewTransport(&http.Client{}, appCfg.UserAgent),
		Runner:      tasks.NewPool(appCfg.WorkerCount, appCfg.RetryDelay, clock, pipeline.Retryable),
		Clock:       clock,
		Lookback:    appCfg.Lookback(),
		OutputPaths: appCfg.OutputPaths,
		Metrics:     m,
	})

	report, err := p.Run(ctx)
	writeMetrics(appCfg.MetricsFile, m)
	if err != nil {
		slog.Error("Run failed", "error", err)
		return 1
	}

	slog.Info("Run complete",
		"articles", report.Articles,
		"skipped", report.Skipped,
		"incidents", report.Document.Summary.IncidentCount,
		"failed_sources", report.FailedSources,
		"override_warnings", len(report.Warnings))

	if !appCfg.Serve {
		return 0
	}
	return serve(ctx, appCfg)
}

func writeMetrics(path string, m *metrics.Metrics) {
	if path == "" {
		return
	}
	if err := m.WriteFile(path); err != nil {
		slog.Error("Failed to write metrics", "path", path, "error", err)
	}
}

func serve(ctx context.Context, appCfg *cfg.Cfg) int {
	handler := api.NewHandler(api.FileReader{Path: appCfg.OutputPaths[0]}, appCfg.Version)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "artifact", appCfg.OutputPaths[0])
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return exitCode
}
