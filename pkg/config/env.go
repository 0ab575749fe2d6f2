package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvRedisURL = "REDIS_URL"

	EnvJWTSecret            = "JWT_SECRET"
	EnvPaymentWebhookSecret = "PAYMENT_WEBHOOK_SECRET"
	EnvReceiptKey           = "RECEIPT_KEY"
	EnvBookingLockTTL       = "BOOKING_LOCK_TTL"
	EnvPendingHoldTTL       = "PENDING_HOLD_TTL"
	EnvPendingSweepInterval = "PENDING_SWEEP_INTERVAL"
	EnvDefaultCurrency      = "DEFAULT_CURRENCY"
	EnvKafkaEnabled         = "KAFKA_ENABLED"
	EnvBookingEventsTopic   = "KAFKA_BOOKING_EVENTS_TOPIC"
	EnvPaymentEventsTopic   = "KAFKA_PAYMENT_EVENTS_TOPIC"
	EnvKafkaConsumerGroup   = "KAFKA_CONSUMER_GROUP"
	EnvOTLPEndpoint         = "OTEL_EXPORTER_OTLP_ENDPOINT"

	EnvSMTPHost     = "SMTP_HOST"
	EnvSMTPPort     = "SMTP_PORT"
	EnvSMTPUsername = "SMTP_USERNAME"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvMailFrom     = "MAIL_FROM"
)
