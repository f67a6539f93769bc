package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example.com/socialfeed/cmd/server"
	"example.com/socialfeed/cmd/worker"
	appkafka "example.com/socialfeed/internal/broker"
	config "example.com/socialfeed/internal/init"
	"example.com/socialfeed/internal/lock"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/posts"
	"example.com/socialfeed/internal/store"
)

var logg = logger.New()

func main() {
	// Exit only after every deferred Close in run has happened
	if err := run(config.Init(), store.New); err != nil {
		logg.Error("main", "Startup failed", err)
		os.Exit(1)
	}
	logg.Info("main", "Shutdown completed")
}

// run wires the selected mode and blocks until it stops. Every resource it
// opens is closed before it returns, including on startup errors.
func run(cfg *config.Config, openStore func() (store.StoreInterface, error)) error {
	// Initialize Cassandra store connection
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("cassandra connection failed: %w", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Mode {
	case "server":
		return runServer(ctx, cfg, st, kafkaCfg)
	case "worker":
		// Consume post ingest events and persist them
		w := worker.New(posts.NewRepository(st), appkafka.NewKafkaReader(kafkaCfg), 0, 0)
		defer w.Close()
		w.Run(ctx)
		return nil
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runServer(ctx context.Context, cfg *config.Config, st store.StoreInterface, kafkaCfg appkafka.KafkaConfig) error {
	// Per-user edit lock: Redis when configured, in-process otherwise
	var locker lock.Locker = lock.NewLocal()
	if client := lock.Connect(cfg.RedisAddr, cfg.RedisPassword); client != nil {
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		locker = lock.NewRedis(client, cfg.LockTTL, cfg.LockWait)
		logg.Info("main", "Using Redis edit lock")
	}

	var kafkaWriter appkafka.KafkaWriter
	switch cfg.PostIngest {
	case config.IngestKafka:
		w, err := appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			return fmt.Errorf("kafka writer init failed: %w", err)
		}
		defer w.Close()
		kafkaWriter = w
	case config.IngestDirect:
	default:
		return fmt.Errorf("unknown post ingest mode: %s", cfg.PostIngest)
	}

	s := server.New(st, locker, kafkaWriter, server.Options{
		DefaultAvatarURL:     cfg.DefaultAvatarURL,
		FeedFetchConcurrency: cfg.FeedFetchConcurrency,
	})
	server.Run(ctx, s, cfg.ServerAddr, cfg.TLSCertFile, cfg.TLSKeyFile)
	return nil
}
