package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	configPath := flag.String("config", os.Getenv("MCP_CONFIG_FILE"), "Path to an optional YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	// Create context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Server shutdown gracefully")
			return
		}
		logger.WithErr(err).Error("Server error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, logger Logger) error {
	adapter, err := adapterFor(cfg.Database.Driver)
	if err != nil {
		return err
	}
	executor := NewSQLExecutor(adapter, cfg.Database, logger)

	server, err := NewMCPServer(cfg, executor, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.WithFields(map[string]any{
		"driver":    cfg.Database.Driver,
		"database":  databaseIdentity(cfg.Database).Database,
		"host":      cfg.Database.Host,
		"port":      cfg.Database.Port,
		"transport": cfg.Transport,
		"read_only": cfg.Database.ReadOnly,
	}).Info("Starting PostgreSQL MCP Server")

	if cfg.Transport == "stdio" {
		return NewStdioTransport(server.Router(), logger, os.Stdin, os.Stdout).Run(ctx)
	}
	return server.ListenAndServe(ctx)
}
