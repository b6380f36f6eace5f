// Package main implements collectord, the round collection daemon. It
// consumes completed rounds from Kafka and persists them into PostgreSQL,
// with Redis handling dedup, counters and liveness, and InfluxDB receiving
// the per-round metric points.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seedprobe/seedprobe/internal/config"
	"github.com/seedprobe/seedprobe/internal/database"
	"github.com/seedprobe/seedprobe/internal/database/influx"
	"github.com/seedprobe/seedprobe/internal/database/postgres"
	"github.com/seedprobe/seedprobe/internal/database/redis"
	"github.com/seedprobe/seedprobe/internal/feed"
	"github.com/seedprobe/seedprobe/internal/messaging"
	"github.com/seedprobe/seedprobe/pkg/log"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New("collectord", cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting collectord",
		"version", cfg.Version,
		"topic", cfg.CollectorTopic,
		"group_id", cfg.CollectorGroupID,
		"max_records", cfg.CollectorMaxRecords,
	)

	manager, err := database.NewManager(storageConfig(cfg))
	if err != nil {
		logger.WithError(err).Error("failed to connect to storage")
		os.Exit(1)
	}

	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger.Logger)

	// The consumer reconnects on its own, so an unreachable broker at boot
	// is worth a warning, not an exit.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := kafkaClient.HealthCheck(ctx); err != nil {
		logger.Warn("Kafka broker not reachable yet", "error", err)
	}

	collector, err := feed.New(collectorConfig(cfg), manager, kafkaClient, kafkaClient, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize collector")
		closeClients(manager, kafkaClient, logger)
		os.Exit(1)
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() {
		runErr <- collector.Run(ctx)
	}()

	// The collector returns on its own once the record target is reached;
	// otherwise it runs until a signal arrives.
	exitCode := 0
	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		if err := <-runErr; err != nil {
			logger.WithError(err).Error("collector failed during shutdown")
			exitCode = 1
		}
	case err := <-runErr:
		if err != nil {
			logger.WithError(err).Error("collector failed")
			exitCode = 1
		} else {
			logger.Info("collection target reached", "collected", collector.Collected())
		}
	}

	closeClients(manager, kafkaClient, logger)
	logger.Info("collectord stopped")

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// storageConfig maps service configuration onto the storage manager's
// connection settings.
func storageConfig(cfg *config.Config) *database.Config {
	return &database.Config{
		Postgres: postgres.DefaultConfig(cfg.PostgresURL),
		Redis:    redis.DefaultConfig(cfg.RedisURL),
		Influx: &influx.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		},
		PeakCache: cfg.CollectorPeakCache,
	}
}

// collectorConfig maps service configuration onto the collector settings.
// Heartbeat and stats cadence keep their defaults.
func collectorConfig(cfg *config.Config) feed.Config {
	return feed.Config{
		Topic:      cfg.CollectorTopic,
		GroupID:    cfg.CollectorGroupID,
		MaxRecords: cfg.CollectorMaxRecords,
		DedupTTL:   cfg.CollectorDedupTTL,
	}
}

func closeClients(manager *database.Manager, kafkaClient *messaging.KafkaClient, logger *log.Logger) {
	if err := manager.Close(); err != nil {
		logger.WithError(err).Error("failed to close storage connections")
	}
	if err := kafkaClient.Close(); err != nil {
		logger.WithError(err).Error("failed to close Kafka client")
	}
}
