package cacheflush

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/outbox/idempotency"
	"github.com/asthahub/storefront-backend/pkg/outbox/payloads"
)

const cacheFlushConsumer = "catalog-cache-flush"

type cacheStore interface {
	CatalogCacheKey(productID string) string
	Del(ctx context.Context, keys ...string) error
}

// Consumer invalidates cached catalog entries after an order changes
// stock levels.
type Consumer struct {
	cache        cacheStore
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the catalog cache invalidator.
func NewConsumer(cache cacheStore, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("cache flush subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		cache:        cache,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != enums.EventOrderCreated {
		c.logg.Info(logCtx, "skipping non-order event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if envelope.EventID == "" {
		c.logg.Error(logCtx, "envelope missing event id", nil)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, cacheFlushConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	var payload payloads.OrderCreatedEvent
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, cacheFlushConsumer, envelope.EventID)
		return processResult{nack: true}
	}

	if err := c.flush(ctx, payload); err != nil {
		c.logg.Error(logCtx, "cache flush failed", err)
		_ = c.idempotency.Delete(ctx, cacheFlushConsumer, envelope.EventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithOrderID(logCtx, payload.OrderID), "catalog cache flushed")
	return processResult{ack: true}
}

// flush drops each product's cached entry independently so one bad key
// does not keep the rest stale.
func (c *Consumer) flush(ctx context.Context, payload payloads.OrderCreatedEvent) error {
	var errs error
	for _, line := range payload.Lines {
		if line.ProductID == "" {
			continue
		}
		key := c.cache.CatalogCacheKey(line.ProductID)
		if err := c.cache.Del(ctx, key); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flush %s: %w", line.ProductID, err))
		}
	}
	return errs
}
