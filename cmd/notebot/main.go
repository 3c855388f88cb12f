package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inf-mc/NoteBot-sub001/api"
	"github.com/inf-mc/NoteBot-sub001/config"
	"github.com/inf-mc/NoteBot-sub001/driver"
	"github.com/inf-mc/NoteBot-sub001/events"
	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/monitor"
	"github.com/inf-mc/NoteBot-sub001/pool"
)

func main() {
	cfg := config.Load()

	initLogger(cfg.Log)
	slog.Info("notebot browser engine starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"maxBrowsers", cfg.Pool.MaxBrowsers,
		"maxPagesPerBrowser", cfg.Pool.MaxPagesPerBrowser,
	)

	bus := events.NewBus(0, 0)
	defer bus.Close()

	pm := pool.NewManager(cfg.Pool, driver.NewRodDriver(), bus)
	if err := pm.Initialize(nil); err != nil {
		slog.Error("failed to initialize browser pool", "error", err)
		os.Exit(1)
	}

	ex := executor.New(pm, bus, cfg.Pool.OperationTimeout)

	mon := monitor.New(cfg.Monitor, bus)
	defer mon.Stop()

	startTime := time.Now()
	router := api.NewRouter(pm, ex, mon, bus, cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds, then the pool 10 more to drain.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	}

	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer poolCancel()
	if err := pm.Shutdown(poolCtx); err != nil {
		slog.Warn("browser pool drained incompletely", "error", err)
	}

	slog.Info("notebot browser engine stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
