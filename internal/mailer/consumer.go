package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/logger"
	pkgmailer "github.com/asthahub/storefront-backend/pkg/mailer"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/outbox/idempotency"
	"github.com/asthahub/storefront-backend/pkg/outbox/payloads"
)

const orderEmailConsumer = "order-emails"

type sender interface {
	Send(ctx context.Context, msg pkgmailer.Message) error
}

// Consumer sends order confirmation emails for committed orders.
type Consumer struct {
	mail         sender
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the order email consumer.
func NewConsumer(mail sender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if mail == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("email subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		mail:         mail,
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderEmailConsumer, envelope.EventID)
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
		_ = c.idempotency.Delete(ctx, orderEmailConsumer, envelope.EventID)
		return processResult{nack: true}
	}
	if payload.CustomerEmail == "" {
		c.logg.Info(logCtx, "order has no customer email, skipping")
		return processResult{ack: true}
	}

	if err := c.mail.Send(ctx, confirmationEmail(payload)); err != nil {
		c.logg.Error(c.logg.WithOrderID(logCtx, payload.OrderID), "confirmation email failed", err)
		_ = c.idempotency.Delete(ctx, orderEmailConsumer, envelope.EventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithOrderID(logCtx, payload.OrderID), "confirmation email sent")
	return processResult{ack: true}
}

func confirmationEmail(payload payloads.OrderCreatedEvent) pkgmailer.Message {
	var lines strings.Builder
	for _, line := range payload.Lines {
		fmt.Fprintf(&lines, "- %s x%d: %s\n", line.Name, line.Quantity, line.FinalPrice.StringFixed(2))
	}
	if !payload.CouponDiscount.IsZero() {
		fmt.Fprintf(&lines, "Coupon %s: -%s\n", payload.CouponCode, payload.CouponDiscount.StringFixed(2))
	}
	fmt.Fprintf(&lines, "Total: %s\n", payload.FinalTotal.StringFixed(2))

	return pkgmailer.Message{
		To:      payload.CustomerEmail,
		ToName:  payload.CustomerName,
		Subject: fmt.Sprintf("Order confirmation %s", payload.OrderID),
		PlainText: fmt.Sprintf("Thank you for your order.\n\nOrder %s\n%s",
			payload.OrderID, lines.String()),
	}
}
