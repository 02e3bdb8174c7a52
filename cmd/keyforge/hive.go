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

	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/hive"
)

var hiveCommand = &cli.Command{
	Name:  "hive",
	Usage: "Run the Hive coordinator: job registry, leaderboard, and node heartbeat/data surface.",
	Flags: append(flagsSlice("hive-addr", "hive-secret", "data-dir", "config"),
		&cli.StringFlag{Name: "db", Usage: "sqlite database path.", Value: "./hive.db"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus /metrics listen address.", Value: ":9090"},
	),
	Action: runHive,
}

func runHive(ctx context.Context, cmd *cli.Command) error {
	logger := slog.Default()

	mgr, err := hive.Load(cmd.String("config"))
	if err != nil {
		return dataError{msg: fmt.Sprintf("load hive config: %v", err)}
	}
	cfg := mgr.Get()
	if v := cmd.String("hive-addr"); v != "" {
		cfg.ListenAddr = v
	}
	if v := cmd.String("hive-secret"); v != "" {
		cfg.Secret = v
	}
	if v := cmd.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := cmd.String("db"); v != "" {
		cfg.DatabasePath = v
	}
	if v := cmd.String("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := hive.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open hive store: %w", err)
	}
	defer store.Close()

	srv := hive.NewServer(store, cfg, logger)
	metricsSrv := hive.ServeMetrics(cfg.MetricsAddr)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hive listening", "addr", cfg.ListenAddr, "metrics_addr", cfg.MetricsAddr)
		errCh <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	select {
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = hive.ShutdownMetrics(shutdownCtx, metricsSrv)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("hive server: %w", err)
		}
		return nil
	}
}
