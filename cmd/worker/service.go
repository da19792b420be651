package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/asthahub/storefront-backend/internal/cacheflush"
	"github.com/asthahub/storefront-backend/internal/mailer"
	"github.com/asthahub/storefront-backend/internal/mirror"
	"github.com/asthahub/storefront-backend/internal/notifications"
	"github.com/asthahub/storefront-backend/pkg/bigquery"
	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/db"
	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/outbox/registry"
	"github.com/asthahub/storefront-backend/pkg/pubsub"
	"github.com/asthahub/storefront-backend/pkg/redis"
)

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DB                   *db.Client
	Redis                *redis.Client
	PubSub               *pubsub.Client
	BigQuery             *bigquery.Client
	Registry             *registry.EventRegistry
	NotificationConsumer *notifications.Consumer
	EmailConsumer        *mailer.Consumer
	CacheFlushConsumer   *cacheflush.Consumer
	MirrorConsumer       *mirror.Consumer
}

type Service struct {
	cfg                  *config.Config
	logg                 *logger.Logger
	db                   *db.Client
	redis                *redis.Client
	pubsub               *pubsub.Client
	bigquery             *bigquery.Client
	registry             *registry.EventRegistry
	notificationConsumer *notifications.Consumer
	emailConsumer        *mailer.Consumer
	cacheFlushConsumer   *cacheflush.Consumer
	mirrorConsumer       *mirror.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.BigQuery == nil {
		return nil, errors.New("bigquery client is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}
	if params.NotificationConsumer == nil {
		return nil, errors.New("notification consumer is required")
	}
	if params.EmailConsumer == nil {
		return nil, errors.New("email consumer is required")
	}
	if params.CacheFlushConsumer == nil {
		return nil, errors.New("cache flush consumer is required")
	}
	if params.MirrorConsumer == nil {
		return nil, errors.New("mirror consumer is required")
	}

	return &Service{
		cfg:                  params.Config,
		logg:                 params.Logger,
		db:                   params.DB,
		redis:                params.Redis,
		pubsub:               params.PubSub,
		bigquery:             params.BigQuery,
		registry:             params.Registry,
		notificationConsumer: params.NotificationConsumer,
		emailConsumer:        params.EmailConsumer,
		cacheFlushConsumer:   params.CacheFlushConsumer,
		mirrorConsumer:       params.MirrorConsumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "bigquery", s.bigquery.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	errCh := make(chan error, 4)
	go func() {
		errCh <- s.notificationConsumer.Run(ctx)
	}()
	go func() {
		errCh <- s.emailConsumer.Run(ctx)
	}()
	go func() {
		errCh <- s.cacheFlushConsumer.Run(ctx)
	}()
	go func() {
		errCh <- s.runMirror(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
		}
	}
}

// runMirror feeds analytics subscription messages into the warehouse
// mirror. Undecodable messages are acked so one poison row cannot wedge
// the subscription.
func (s *Service) runMirror(ctx context.Context) error {
	subscription := s.pubsub.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	return subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		eventType := enums.OutboxEventType(msg.Attributes["event_type"])
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"event_type": eventType,
		})

		resolved, err := s.registry.ResolveMessage(eventType, msg.Data)
		if err != nil {
			var nonRetry registry.NonRetryableError
			if errors.As(err, &nonRetry) {
				s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "dropping undecodable analytics message")
				msg.Ack()
				return
			}
			s.logg.Error(logCtx, "failed to resolve analytics message", err)
			msg.Nack()
			return
		}

		if err := s.mirrorConsumer.Process(ctx, eventType, resolved.Envelope); err != nil {
			s.logg.Error(logCtx, "warehouse mirror failed", err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
}
