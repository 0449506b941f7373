package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/allartprotocol/token-indexer/internal/config"
	"github.com/allartprotocol/token-indexer/internal/rpc"
	"github.com/allartprotocol/token-indexer/internal/worker"
	"github.com/allartprotocol/token-indexer/pkg/common/logger"
	"github.com/allartprotocol/token-indexer/pkg/events"
	"github.com/allartprotocol/token-indexer/pkg/kvstore"
	"github.com/allartprotocol/token-indexer/pkg/ratelimiter"
	"github.com/allartprotocol/token-indexer/pkg/store/checkpointstore"
	"github.com/allartprotocol/token-indexer/pkg/store/sigqueue"
	"github.com/allartprotocol/token-indexer/pkg/store/txstore"
)

func main() {
	var configPath string
	var loaders int
	var debug bool

	root := &cobra.Command{
		Use:   "dataloader",
		Short: "Solana program transaction loader",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, loaders, debug)
		},
	}
	root.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file")
	root.Flags().IntVar(&loaders, "loaders", 0, "Override the number of transaction loaders")
	root.Flags().BoolVar(&debug, "debug", false, "Enable debug logs")

	if err := root.Execute(); err != nil {
		slog.Error("Dataloader failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, loaders int, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if loaders > 0 {
		cfg.Workers.TransactionLoaders = loaders
	}
	logger.Info("Config loaded", "address", cfg.Program.Address, "kvstore", cfg.KVStore.Type)

	kv, err := kvstore.NewFromConfig(cfg.KVStore)
	if err != nil {
		return err
	}
	defer kv.Close()

	emitter := events.NewNoopEmitter()
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		emitter = events.NewNATSEmitter(nc, cfg.NATS.SubjectPrefix)
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}
	defer emitter.Close()

	var auth *rpc.AuthConfig
	if cfg.RPC.APIKey != "" {
		auth = &rpc.AuthConfig{Type: "api_key", Token: cfg.RPC.APIKey}
	}

	var limiter *ratelimiter.RateLimiter
	if cfg.RPC.RateLimit.RequestsPerSecond > 0 {
		limiter = ratelimiter.NewRateLimiter(
			cfg.RPC.RateLimit.RequestsPerSecond,
			cfg.RPC.RateLimit.BurstSize,
		)
	}

	dispatcher := worker.NewDispatcher(worker.Options{
		Address:            cfg.Program.Address,
		TransactionLoaders: cfg.Workers.TransactionLoaders,
		Tick:               cfg.Workers.TickInterval,
		BatchLimit:         cfg.Workers.BatchLimit,
		Policy:             worker.FailurePolicy(cfg.Workers.FailurePolicy),
		Client: worker.ClientConfig{
			URL:         cfg.RPC.URL,
			Auth:        auth,
			Timeout:     cfg.RPC.RequestTimeout,
			MaxRetries:  cfg.RPC.MaxRetries,
			RetryDelay:  cfg.RPC.RetryDelay,
			RateLimiter: limiter,
		},
		Checkpoints: checkpointstore.New(kv),
		Queue:       sigqueue.New(kv),
		Txs:         txstore.New(kv),
		Emitter:     emitter,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Dataloader is running. Press Ctrl+C to stop.")
	if err := dispatcher.Run(ctx); err != nil {
		return err
	}
	logger.Info("Dataloader stopped")
	return nil
}
