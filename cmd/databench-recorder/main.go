// databench-recorder attaches to a databench analysis and appends every
// signal the backend sends to the signal_log table.
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

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/databench-client/internal/config"
	"github.com/rickgao/databench-client/internal/connection"
	"github.com/rickgao/databench-client/internal/database"
	"github.com/rickgao/databench-client/internal/recorder"
	"github.com/rickgao/databench-client/internal/session"
	"github.com/rickgao/databench-client/internal/version"
)

func main() {
	configPath := pflag.StringP("config", "c", "configs/recorder.yaml", "path to config file")
	showVersion := pflag.Bool("version", false, "print the version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("databench-recorder", version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if !cfg.Database.Configured() {
		logger.Error("recorder needs database.host")
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to create schema", "error", err)
		os.Exit(1)
	}

	logger.Info("database connected")

	store, err := session.Open(cfg.Session, pool)
	if err != nil {
		logger.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	connCfg := cfg.ConnectionConfig()
	var onReady connection.ReadyFunc
	if store != nil {
		if resumed, err := session.Resume(ctx, store, &connCfg); err != nil {
			logger.Warn("cannot restore session", "error", err)
		} else if resumed {
			logger.Info("resuming analysis", "analysis_id", connCfg.AnalysisID)
		}
		onReady = session.Saver(ctx, store, logger)
	}

	conn := connection.New(connCfg, connection.WithLogger(logger))

	rec := recorder.New(recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferSize:    cfg.Recorder.BufferSize,
		Signals:       cfg.Recorder.Signals,
	}, pool, logger)
	rec.Attach(conn)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rec.Run(gctx)
	})

	if err := conn.Connect(gctx, onReady); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	if cfg.Health.Port > 0 {
		healthServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: createHealthHandler(pool, conn, rec),
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return healthServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("recorder running",
		"url", conn.URL(),
		"client_id", conn.ID(),
	)

	if err := g.Wait(); err != nil {
		logger.Error("recorder failed", "error", err)
	}

	conn.Disconnect()

	stats := rec.Stats()
	logger.Info("recorder stopped",
		"recorded", stats.Recorded,
		"inserts", stats.Inserts,
		"conflicts", stats.Conflicts,
		"errors", stats.Errors,
		"evicted", stats.Queue.Evicted,
	)
}
