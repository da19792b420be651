package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/outbox/idempotency"
	"github.com/asthahub/storefront-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *Notification) error
}

// Consumer turns committed and parked order events into in-app
// notification rows.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
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
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != enums.EventOrderCreated && eventType != enums.EventOrderFailedOver {
		c.logg.Info(logCtx, "skipping unhandled event")
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, envelope.EventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order created payload: %w", err)
		}
		return c.notifyOrderPlaced(ctx, payload, logCtx)
	case enums.EventOrderFailedOver:
		var payload payloads.OrderFailedOverEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse failover payload: %w", err)
		}
		return c.notifyOrderParked(ctx, payload, logCtx)
	}
	return nil
}

func (c *Consumer) notifyOrderPlaced(ctx context.Context, payload payloads.OrderCreatedEvent, logCtx context.Context) error {
	if payload.OrderID == "" || payload.CustomerEmail == "" {
		return fmt.Errorf("order id and customer email required")
	}
	notification := &Notification{
		Type:           enums.NotificationTypeOrderPlaced,
		RecipientEmail: payload.CustomerEmail,
		Title:          "Order placed",
		Body: fmt.Sprintf("Order %s was placed. Total: %s.",
			payload.OrderID, payload.FinalTotal.StringFixed(2)),
		OrderID: &payload.OrderID,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "customer notified of placed order")
	return nil
}

func (c *Consumer) notifyOrderParked(ctx context.Context, payload payloads.OrderFailedOverEvent, logCtx context.Context) error {
	if payload.OrderID == "" || payload.CustomerEmail == "" {
		return fmt.Errorf("order id and customer email required")
	}
	notification := &Notification{
		Type:           enums.NotificationTypeOrderFailover,
		RecipientEmail: payload.CustomerEmail,
		Title:          "Order received",
		Body: fmt.Sprintf("Order %s was received and is awaiting confirmation. "+
			"You will be notified once it is fully processed.", payload.OrderID),
		OrderID: &payload.OrderID,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "customer notified of parked order")
	return nil
}
