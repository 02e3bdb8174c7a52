package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/keyforge/keyforge/internal/node"
)

var nodeCommand = &cli.Command{
	Name:  "node",
	Usage: "Run a Node worker: poll Hive for an assignment, search, and submit improvements.",
	Flags: append(flagsSlice("config", "data-dir", "hive-secret", "node-id"),
		&cli.StringFlag{Name: "hive", Usage: "Hive base URL.", Value: "http://localhost:8080"},
	),
	Action: runNode,
}

func runNode(ctx context.Context, cmd *cli.Command) error {
	cfg, err := node.Load(cmd.String("config"))
	if err != nil {
		return dataError{msg: fmt.Sprintf("load node config: %v", err)}
	}
	if v := cmd.String("hive"); v != "" {
		cfg.HiveAddr = v
	}
	if v := cmd.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := cmd.String("hive-secret"); v != "" {
		cfg.Secret = v
	}
	if v := cmd.String("node-id"); v != "" {
		cfg.NodeId = v
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create node data dir: %w", err)
	}

	logger := slog.Default().With("node_id", cfg.NodeId)
	w := node.NewWorker(cfg, logger)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("node starting", "hive", cfg.HiveAddr)
	return w.Run(runCtx)
}
