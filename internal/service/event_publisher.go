package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prohmpiriya/turf-booking/internal/domain"
	"github.com/prohmpiriya/turf-booking/pkg/kafka"
	"github.com/prohmpiriya/turf-booking/pkg/mq"
	"github.com/prohmpiriya/turf-booking/pkg/telemetry"
)

const defaultEventTopic = "turf-booking-events"

// EventPublisher defines the interface for publishing booking events
type EventPublisher interface {
	// PublishBookingReserved publishes a new pending hold
	PublishBookingReserved(ctx context.Context, booking *domain.Booking) error

	// PublishBookingConfirmed publishes a paid booking
	PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error

	// PublishBookingReleased publishes an admin release
	PublishBookingReleased(ctx context.Context, booking *domain.Booking) error

	// PublishBookingExpired publishes a hold materialized as expired
	PublishBookingExpired(ctx context.Context, booking *domain.Booking) error

	// PublishBookingFlagged publishes a booking that needs manual reconciliation
	PublishBookingFlagged(ctx context.Context, booking *domain.Booking) error

	// Close closes the event publisher
	Close() error
}

// EventPublisherConfig contains configuration for the event publishers
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
	AMQPURL     string
	Exchange    string
}

func (c *EventPublisherConfig) topic() string {
	if c.Topic == "" {
		return defaultEventTopic
	}
	return c.Topic
}

func (c *EventPublisherConfig) serviceName() string {
	if c.ServiceName == "" {
		return "turf-booking"
	}
	return c.ServiceName
}

// emitFunc delivers one encoded event
type emitFunc func(ctx context.Context, event *domain.BookingEvent, value []byte, headers map[string]string) error

// basePublisher turns lifecycle calls into encoded events for a transport
type basePublisher struct {
	serviceName string
	emit        emitFunc
	now         func() time.Time
}

func (p *basePublisher) PublishBookingReserved(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.BookingEventReserved, booking)
}

func (p *basePublisher) PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.BookingEventConfirmed, booking)
}

func (p *basePublisher) PublishBookingReleased(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.BookingEventReleased, booking)
}

func (p *basePublisher) PublishBookingExpired(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.BookingEventExpired, booking)
}

func (p *basePublisher) PublishBookingFlagged(ctx context.Context, booking *domain.Booking) error {
	return p.publishEvent(ctx, domain.BookingEventFlagged, booking)
}

func (p *basePublisher) publishEvent(ctx context.Context, eventType domain.BookingEventType, booking *domain.Booking) error {
	eventID := uuid.New().String()
	now := time.Now
	if p.now != nil {
		now = p.now
	}
	event := domain.NewBookingEvent(eventType, booking, eventID, now())

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(eventType),
		"event_id":     eventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}
	for k, v := range telemetry.InjectTraceContext(ctx) {
		headers[k] = v
	}

	if err := p.emit(ctx, event, value, headers); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	basePublisher
	producer *kafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "turf-booking-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	p := &KafkaEventPublisher{producer: producer, topic: cfg.topic()}
	p.basePublisher = basePublisher{serviceName: cfg.serviceName(), emit: p.produce}
	return p, nil
}

func (p *KafkaEventPublisher) produce(ctx context.Context, event *domain.BookingEvent, value []byte, headers map[string]string) error {
	return p.producer.Produce(ctx, &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: event.OccurredAt,
	})
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// RabbitMQEventPublisher implements EventPublisher on a topic exchange.
// Events are routed by type, e.g. booking.confirmed.
type RabbitMQEventPublisher struct {
	basePublisher
	publisher *mq.Publisher
}

// NewRabbitMQEventPublisher dials RabbitMQ and declares the exchange
func NewRabbitMQEventPublisher(cfg *EventPublisherConfig) (*RabbitMQEventPublisher, error) {
	if cfg == nil || cfg.AMQPURL == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = cfg.topic()
	}

	pub, err := mq.NewPublisher(cfg.AMQPURL, exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to create rabbitmq publisher: %w", err)
	}

	p := &RabbitMQEventPublisher{publisher: pub}
	p.basePublisher = basePublisher{serviceName: cfg.serviceName(), emit: p.publish}
	return p, nil
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, event *domain.BookingEvent, value []byte, headers map[string]string) error {
	return p.publisher.PublishRaw(ctx, string(event.Type), value, headers)
}

// Close closes the event publisher
func (p *RabbitMQEventPublisher) Close() error {
	if p.publisher != nil {
		return p.publisher.Close()
	}
	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishBookingReserved(ctx context.Context, booking *domain.Booking) error {
	return nil
}

func (p *NoOpEventPublisher) PublishBookingConfirmed(ctx context.Context, booking *domain.Booking) error {
	return nil
}

func (p *NoOpEventPublisher) PublishBookingReleased(ctx context.Context, booking *domain.Booking) error {
	return nil
}

func (p *NoOpEventPublisher) PublishBookingExpired(ctx context.Context, booking *domain.Booking) error {
	return nil
}

func (p *NoOpEventPublisher) PublishBookingFlagged(ctx context.Context, booking *domain.Booking) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
