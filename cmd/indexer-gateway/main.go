// Package main implements the entry point for the indexer query gateway.
// The gateway admits subgraph queries (paid, or free for whitelisted
// sources), computes content identifiers for payment correlation, and
// dispatches execution to the downstream query processor over NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/akme/indexer/config"
	gwhttp "github.com/akme/indexer/gateway/http"
	"github.com/akme/indexer/metric"
	"github.com/akme/indexer/natsclient"
	"github.com/akme/indexer/processor"
	"github.com/akme/indexer/server"
	"github.com/akme/indexer/status"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "indexer-gateway"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting indexer gateway",
		"version", Version,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	return runGateway(signalCtx, cfg, cliCfg, logger)
}

// runGateway wires the components and runs the server until shutdown.
func runGateway(ctx context.Context, cfg *config.Config, cliCfg *CLIConfig, logger *slog.Logger) error {
	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithClientName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait()),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer natsClient.Close()

	registry := metric.NewRegistry()

	proc, err := processor.NewClient(natsClient, cfg.Processor, logger)
	if err != nil {
		return fmt.Errorf("create processor client: %w", err)
	}

	gw, err := gwhttp.NewGateway(cfg.Gateway, proc, registry.CoreMetrics(), logger)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	statusProxy, err := status.NewProxy(cfg.Status, logger)
	if err != nil {
		return fmt.Errorf("create status proxy: %w", err)
	}

	srv := server.New(cfg.Server, gw, statusProxy, registry, logger)

	slog.Info("Indexer gateway started",
		"listen_addr", cfg.Server.ListenAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"whitelisted_addresses", len(cfg.Gateway.WhitelistedAddresses))

	if err := srv.Run(ctx, cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("Indexer gateway shutdown complete")
	return nil
}
