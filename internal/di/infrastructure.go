package di

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/turf-booking/internal/gateway"
	"github.com/prohmpiriya/turf-booking/internal/repository"
	"github.com/prohmpiriya/turf-booking/internal/service"
	"github.com/prohmpiriya/turf-booking/pkg/config"
	"github.com/prohmpiriya/turf-booking/pkg/database"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
	"github.com/prohmpiriya/turf-booking/pkg/redis"
)

// Infrastructure holds the external connections a process needs
type Infrastructure struct {
	DB    *database.PostgresDB
	Redis *redis.Client

	BookingRepo    repository.BookingRepository
	PricingRepo    repository.PricingRepository
	EventPublisher service.EventPublisher
	Gateway        gateway.PaymentGateway
}

// NewInfrastructure connects storage, Redis, the event publisher and the
// payment gateway as selected by cfg. Redis is optional unless it is the
// storage driver.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	log := logger.Get()
	infra := &Infrastructure{}

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := database.NewPostgres(ctx, database.FromConfig(cfg.Database, cfg.OTel.Enabled, cfg.OTel.ServiceName))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		infra.DB = db
		log.Info("Connected to PostgreSQL")

		if cfg.Database.AutoMigrate {
			applied, err := repository.Migrate(ctx, db.Pool())
			if err != nil {
				infra.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			for _, name := range applied {
				log.Info(fmt.Sprintf("Applied migration %s", name))
			}
		}

		repo := repository.NewPostgresBookingRepository(db.Pool())
		infra.BookingRepo = repo
		infra.PricingRepo = repo

	case "redis":
		client, err := redis.NewClient(ctx, redis.FromConfig(cfg.Redis))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		infra.Redis = client
		log.Info("Connected to Redis")

		repo := repository.NewRedisBookingRepository(client)
		if err := repo.LoadScripts(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("failed to load redis scripts: %w", err)
		}
		infra.BookingRepo = repo
		infra.PricingRepo = repo

	case "memory":
		log.Warn("Using in-memory storage; bookings are lost on restart")
		repo := repository.NewMemoryRepository()
		infra.BookingRepo = repo
		infra.PricingRepo = repo

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}

	if infra.Redis == nil && cfg.Server.Idempotency && cfg.Storage.Driver != "memory" {
		client, err := redis.NewClient(ctx, redis.FromConfig(cfg.Redis))
		if err != nil {
			log.Warn(fmt.Sprintf("Redis unavailable, idempotency keys disabled: %v", err))
		} else {
			infra.Redis = client
			log.Info("Connected to Redis for idempotency keys")
		}
	}

	gw, err := gateway.NewFromConfig(cfg.Payment)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("failed to create payment gateway: %w", err)
	}
	infra.Gateway = gw
	log.Info(fmt.Sprintf("Payment gateway: %s", gw.Name()))

	infra.EventPublisher = newEventPublisher(ctx, cfg)

	return infra, nil
}

// newEventPublisher never fails: a broker outage degrades to a no-op
// publisher since events are notifications, not part of a booking
func newEventPublisher(ctx context.Context, cfg *config.Config) service.EventPublisher {
	log := logger.Get()
	pubCfg := &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Events.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
		AMQPURL:     cfg.RabbitMQ.URL,
		Exchange:    cfg.RabbitMQ.Exchange,
	}

	switch cfg.Events.Driver {
	case "kafka":
		pub, err := service.NewKafkaEventPublisher(ctx, pubCfg)
		if err != nil {
			log.Warn(fmt.Sprintf("Failed to create Kafka event publisher, events disabled: %v", err))
			return service.NewNoOpEventPublisher()
		}
		log.Info(fmt.Sprintf("Publishing booking events to Kafka topic %s", cfg.Events.Topic))
		return pub
	case "rabbitmq":
		pub, err := service.NewRabbitMQEventPublisher(pubCfg)
		if err != nil {
			log.Warn(fmt.Sprintf("Failed to create RabbitMQ event publisher, events disabled: %v", err))
			return service.NewNoOpEventPublisher()
		}
		log.Info(fmt.Sprintf("Publishing booking events to RabbitMQ exchange %s", cfg.RabbitMQ.Exchange))
		return pub
	default:
		return service.NewNoOpEventPublisher()
	}
}

// Close releases every connection that was opened
func (i *Infrastructure) Close() {
	if i.EventPublisher != nil {
		if err := i.EventPublisher.Close(); err != nil {
			logger.Get().Warn(fmt.Sprintf("Failed to close event publisher: %v", err))
		}
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
