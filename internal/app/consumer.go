package app

import (
	"context"
	"fmt"

	"github.com/kenjisciometa/shift-management-app-sub004/internal/bootstrap"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/config"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/events"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/leavebalance"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/messaging/kafka/consumer"
	"github.com/kenjisciometa/shift-management-app-sub004/internal/shared/connection"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RunConsumer provisions default leave balances for newly created employees.
func RunConsumer(cfg config.Config, logger *zap.Logger) error {
	log := logger.Named("app.consumer")

	if cfg.Kafka.Broker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}

	settings, err := balanceSettings(cfg.Leave)
	if err != nil {
		return err
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

	redisClient, err := connection.ConnectRedisWithRetry(cfg.Redis.Addr, cfg.DB.MaxRetries)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	balanceRepo := leavebalance.NewRepository(gormDB)
	balanceService := leavebalance.NewService(sqlDB, balanceRepo, redisClient, settings, logger)
	handler := leavebalance.NewEmployeeCreatedHandler(balanceService, logger)

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        []string{cfg.Kafka.Broker},
		Topic:          events.EmployeeCreatedTopic,
		GroupID:        cfg.Kafka.ConsumerGroup,
		CommitInterval: 0,
		StartOffset:    kafkago.FirstOffset,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Run(ctx, "employee_created", reader, handler, logger, consumer.Options{})
	}()

	sig := bootstrap.WaitForSignal()
	log.Info("consumer shutting down", zap.String("signal", sig.String()))
	cancel()
	<-done

	return nil
}
