package main

import (
	"context"

	"wheelaway/internal/bookings/events"
	"wheelaway/internal/bookings/expiry"
	"wheelaway/internal/bookings/handler"
	"wheelaway/internal/bookings/repository"
	"wheelaway/internal/bookings/service"
	"wheelaway/internal/bookings/validator"
	carsrepository "wheelaway/internal/cars/repository"
	paymentsconsumer "wheelaway/internal/payments/consumer"
	paymentsrepository "wheelaway/internal/payments/repository"
	paymentsservice "wheelaway/internal/payments/service"
	"wheelaway/pkg/app"
	"wheelaway/pkg/config"
	"wheelaway/pkg/contracts"
	"wheelaway/pkg/kafka"
	kafka_config "wheelaway/pkg/kafka/config"
	kafka_middleware "wheelaway/pkg/kafka/middleware"
	"wheelaway/pkg/sealer"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)
	bookingService, paymentService := initServices(cfg, serverApp)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, paymentService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, serverApp *app.Application) (service.BookingService, paymentsservice.PaymentService) {
	bookingValidator := validator.NewBookingValidator(cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewBookingLockRepository(cfg)
	carRepo := carsrepository.NewMongoCarRepository(cfg)

	var kafkaCfg *kafka_config.Config
	var metrics *kafka_middleware.Metrics
	if cfg.KafkaEnabled {
		var err error
		if kafkaCfg, err = kafka_config.Load(); err != nil {
			cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
		}
		metrics = kafka_middleware.NewMetrics()
		serverApp.OnShutdown("kafka-metrics", func(context.Context) error {
			metrics.Log(cfg.Log)
			return nil
		})
	}

	opts := []service.Option{}
	if kafkaCfg != nil {
		producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsTopic+".dlq", cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to create booking events producer", "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
			producer.Use(metrics.ProducerMiddleware())
		}
		serverApp.OnShutdown("booking-events-producer", func(context.Context) error {
			return producer.Close()
		})
		opts = append(opts, service.WithPublisher(events.NewKafkaPublisher(producer, cfg.Log)))
		cfg.Log.Info("Booking events published to Kafka", "topic", cfg.BookingEventsTopic)
	}

	if cfg.ReceiptKey != "" {
		receiptSealer, err := sealer.New(cfg.ReceiptKey)
		if err != nil {
			cfg.Log.Fatal("Invalid receipt key", "error", err)
		}
		opts = append(opts, service.WithSealer(receiptSealer))
	}

	bookingService := service.NewBookingService(
		bookingRepo,
		lockRepo,
		carRepo,
		bookingValidator,
		cfg,
		opts...,
	)

	paymentService := paymentsservice.NewPaymentService(
		paymentsrepository.NewMongoPaymentRepository(cfg),
		bookingService,
		bookingValidator,
		cfg.Log,
	)

	if kafkaCfg != nil {
		consumer, err := kafka.NewConsumer(
			kafkaCfg,
			cfg.PaymentEventsTopic,
			cfg.KafkaConsumerGroup+"-payments",
			cfg.PaymentEventsTopic+".dlq",
			paymentsconsumer.NewHandler(paymentService, cfg.Log),
			cfg.Log,
		)
		if err != nil {
			cfg.Log.Fatal("Failed to create payment events consumer", "error", err)
		}
		if kafkaCfg.EnableMiddleware {
			consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
			consumer.Use(metrics.ConsumerMiddleware())
		}
		serverApp.AddWorker("payment-events", contracts.WorkerFunc(consumer.Start))
		serverApp.OnShutdown("payment-events-consumer", func(context.Context) error {
			return consumer.Close()
		})
	}

	if cfg.PendingHoldTTL > 0 {
		serverApp.AddWorker(expiry.JobName, expiry.NewWorker(
			bookingService,
			cfg.PendingHoldTTL,
			cfg.PendingSweepInterval,
			cfg.Log,
		))
	}

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService, paymentService
}
