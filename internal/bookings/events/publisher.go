// Package events publishes booking lifecycle events for the notifier and any
// other downstream consumer.
package events

import (
	"context"
	"fmt"

	"wheelaway/pkg/kafka"
	"wheelaway/pkg/logger"
	"wheelaway/pkg/model"
)

const (
	SchemaVersion = "1"
	Source        = "bookings"
)

type Publisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
}

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer messagePublisher
	log      *logger.Logger
}

func NewKafkaPublisher(producer messagePublisher, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log.Component("booking-events"),
	}
}

// EventID is stable per booking and event type so consumers can drop
// redelivered copies.
func EventID(event model.BookingEvent) string {
	return fmt.Sprintf("%s:%s", event.BookingID, event.Type)
}

func Message(ctx context.Context, event model.BookingEvent) kafka.Message {
	return kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventID(EventID(event)).
		WithEventType(event.Type).
		WithCorrelationID(logger.RequestIDFromContext(ctx)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		Build()
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	if err := p.producer.Publish(ctx, Message(ctx, event)); err != nil {
		return fmt.Errorf("publish %s for booking %s: %w", event.Type, event.BookingID, err)
	}
	p.log.FromContext(ctx).Debug("Booking event published",
		"type", event.Type,
		"booking_id", event.BookingID,
	)
	return nil
}

// NopPublisher drops events. It stands in when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.BookingEvent) error { return nil }
