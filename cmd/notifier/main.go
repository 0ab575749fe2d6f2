package main

import (
	"context"
	"time"

	"wheelaway/internal/notifications/consumer"
	"wheelaway/internal/notifications/dedupe"
	"wheelaway/internal/notifications/mailer"
	"wheelaway/internal/notifications/repository"
	"wheelaway/internal/notifications/service"
	"wheelaway/pkg/app"
	"wheelaway/pkg/config"
	"wheelaway/pkg/contracts"
	"wheelaway/pkg/kafka"
	kafka_config "wheelaway/pkg/kafka/config"
	kafka_middleware "wheelaway/pkg/kafka/middleware"
)

const (
	ServiceName = "notifier"
	dedupeTTL   = 7 * 24 * time.Hour
)

func main() {
	cfg := config.Load(ServiceName)
	if !cfg.KafkaEnabled {
		cfg.Log.Fatal("Notifier requires KAFKA_ENABLED=true")
	}
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Notifier service")
	serverApp := app.NewApplication(cfg)
	initConsumer(cfg, serverApp)
	serverApp.SetApp(nil)
	serverApp.Run()
}

func initConsumer(cfg *config.Config, serverApp *app.Application) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	m, err := mailer.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create mailer", "error", err)
	}

	var store dedupe.Store = dedupe.Noop{}
	if cfg.Client.Redis != nil {
		store = dedupe.NewRedisStore(cfg.Client.Redis, dedupeTTL)
	}

	notifier := service.NewNotificationService(repository.NewMongoUserRepository(cfg), m, cfg.Log)

	c, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventsTopic,
		cfg.KafkaConsumerGroup+"-notifier",
		cfg.BookingEventsTopic+".notifier.dlq",
		consumer.NewHandler(notifier, store, cfg.Log),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create booking events consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		c.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		c.Use(metrics.ConsumerMiddleware())
	}

	serverApp.AddWorker("booking-events", contracts.WorkerFunc(c.Start))
	serverApp.OnShutdown("booking-events-consumer", func(context.Context) error {
		metrics.Log(cfg.Log)
		return c.Close()
	})

	cfg.Log.Info("Notifier initialized", "topic", cfg.BookingEventsTopic)
}
