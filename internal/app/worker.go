package app

import (
	"context"
	"fmt"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/bootstrap"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/config"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka/producer"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/connection"

	"go.uber.org/zap"
)

// RunWorker relays leave request events from the outbox table to Kafka.
func RunWorker(cfg config.Config, logger *zap.Logger) error {
	log := logger.Named("app.worker")

	if cfg.Kafka.Broker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	gormDB, err := connection.ConnectGORMWithRetry(cfg.DB)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	kafkaWriter, err := connection.ConnectKafkaWithRetry(cfg.Kafka.Broker, cfg.DB.MaxRetries)
	if err != nil {
		return err
	}
	defer kafkaWriter.Close()

	outboxRepo := kafka.NewOutboxRepository(sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		producer.ProcessOutboxEvents(
			ctx,
			outboxRepo,
			kafkaWriter,
			logger,
			cfg.Outbox.PollInterval,
			cfg.Outbox.BatchSize,
		)
	}()

	sig := bootstrap.WaitForSignal()
	log.Info("worker shutting down", zap.String("signal", sig.String()))
	cancel()
	<-done

	return nil
}
