package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "wheelaway"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultBookingLockTTL       = 30 * time.Second
	DefaultPendingHoldTTL       = 0 // disabled: pending bookings block until confirmed or cancelled
	DefaultPendingSweepInterval = 5 * time.Minute
	DefaultCurrency             = "INR"

	DefaultBookingEventsTopic = "booking-events"
	DefaultPaymentEventsTopic = "payment-events"
	DefaultKafkaConsumerGroup = "wheelaway"

	DefaultSMTPPort = 587
	DefaultMailFrom = "WheelAway <no-reply@wheelaway.local>"
)
