package main

import (
	"context"
	"os"
	"time"

	"bbledger/internal/amqp"
	"bbledger/internal/cli"
	"bbledger/internal/log"
	"bbledger/internal/services"
	"bbledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentRelay, os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, log.ComponentRelay, os.Stdout)

	logger.Info("Starting sync-relay")

	if !cfg.RelayEnabled() {
		logger.Error("AMQP_URL is not set, nothing to relay to")
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	db := cli.MustOpenStore(startCtx, logger, cfg.SQLiteDBPath, "")
	startCancel()
	defer db.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPDirtyQueue, cfg.AMQPAckQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	relayConfig := services.DefaultSyncRelayConfig()
	relayConfig.Interval = cfg.SyncInterval
	relayConfig.BatchSize = cfg.SyncBatchSize
	relayConfig.ReannounceAfter = cfg.SyncReannounceAfter
	relay := services.NewSyncRelay(storage.NewSyncStore(db), amqpClient, relayConfig)

	logger.Info("Sync relay configured",
		"interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize,
		"sqlite_db", cfg.SQLiteDBPath,
		"dirty_queue", cfg.AMQPDirtyQueue,
		"ack_queue", cfg.AMQPAckQueue)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		logger.Info("Shutting down sync-relay...")
		if err := relay.Stop(shutdownCtx); err != nil {
			logger.Warn("Sync relay did not stop cleanly", log.FieldError, err)
		}
	})
	ctx = log.IntoContext(ctx, logger)

	if err := relay.Start(ctx); err != nil {
		logger.Error("Failed to start sync relay", log.FieldError, err)
		os.Exit(1)
	}

	go func() {
		if err := amqpClient.ConsumeAcks(ctx, relay.HandleAck); err != nil && ctx.Err() == nil {
			logger.Error("Ack consumer stopped", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Sync-relay shutdown complete")
}
