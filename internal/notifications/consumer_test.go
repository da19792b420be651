package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/outbox/idempotency"
	"github.com/asthahub/storefront-backend/pkg/outbox/payloads"
)

type fakeRepo struct {
	created   []*Notification
	createErr error
}

func (f *fakeRepo) Create(_ context.Context, n *Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, n)
	return nil
}

type fakeStore struct {
	keys   map[string]struct{}
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: map[string]struct{}{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.setErr != nil {
		return false, f.setErr
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, repo *fakeRepo, store *fakeStore) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &Consumer{
		repo:        repo,
		idempotency: manager,
		logg:        logger.New(logger.Options{Output: io.Discard}),
	}
}

func orderCreatedMessage(t *testing.T, eventID string) *pubsub.Message {
	t.Helper()
	payload := payloads.OrderCreatedEvent{
		OrderID:       "AH-0192f3a1",
		CustomerEmail: "farah@example.com",
		FinalTotal:    decimal.NewFromFloat(189.00),
		PlacedAt:      time.Now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"event_type": string(enums.EventOrderCreated)},
	}
}

func TestProcessCreatesOrderPlacedNotification(t *testing.T) {
	repo := &fakeRepo{}
	consumer := newTestConsumer(t, repo, newFakeStore())

	result := consumer.process(context.Background(), orderCreatedMessage(t, "evt-1"))
	if result.nack {
		t.Fatalf("unexpected nack")
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d notifications, want 1", len(repo.created))
	}
	n := repo.created[0]
	if n.Type != enums.NotificationTypeOrderPlaced {
		t.Fatalf("type = %s", n.Type)
	}
	if n.RecipientEmail != "farah@example.com" {
		t.Fatalf("recipient = %s", n.RecipientEmail)
	}
	if n.OrderID == nil || *n.OrderID != "AH-0192f3a1" {
		t.Fatalf("order id = %v", n.OrderID)
	}
}

func TestProcessDeduplicatesByEventID(t *testing.T) {
	repo := &fakeRepo{}
	consumer := newTestConsumer(t, repo, newFakeStore())

	msg := orderCreatedMessage(t, "evt-dup")
	consumer.process(context.Background(), msg)
	result := consumer.process(context.Background(), orderCreatedMessage(t, "evt-dup"))
	if result.nack {
		t.Fatalf("duplicate should ack")
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d notifications, want 1", len(repo.created))
	}
}

func TestProcessNacksAndReleasesOnFailure(t *testing.T) {
	repo := &fakeRepo{createErr: errors.New("db down")}
	store := newFakeStore()
	consumer := newTestConsumer(t, repo, store)

	result := consumer.process(context.Background(), orderCreatedMessage(t, "evt-2"))
	if !result.nack {
		t.Fatalf("handler failure should nack")
	}
	// the idempotency claim must be rolled back so redelivery retries
	if len(store.keys) != 0 {
		t.Fatalf("idempotency key leaked: %v", store.keys)
	}
}

func TestProcessSkipsUnrelatedEvents(t *testing.T) {
	repo := &fakeRepo{}
	consumer := newTestConsumer(t, repo, newFakeStore())

	msg := &pubsub.Message{
		Data:       []byte(`{}`),
		Attributes: map[string]string{"event_type": string(enums.EventOrderStateChanged)},
	}
	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatalf("unrelated event should ack")
	}
	if len(repo.created) != 0 {
		t.Fatalf("no notification expected")
	}
}

func TestProcessHandlesFailoverEvent(t *testing.T) {
	repo := &fakeRepo{}
	consumer := newTestConsumer(t, repo, newFakeStore())

	payload := payloads.OrderFailedOverEvent{
		OrderID:       "failover-0192f3a2",
		ObjectPath:    "failover/2026/03/14/failover-0192f3a2.json",
		CustomerEmail: "farah@example.com",
		ParkedAt:      time.Now(),
	}
	data, _ := json.Marshal(payload)
	envelope := outbox.PayloadEnvelope{Version: 1, EventID: "evt-3", Data: data}
	body, _ := json.Marshal(envelope)
	msg := &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"event_type": string(enums.EventOrderFailedOver)},
	}

	result := consumer.process(context.Background(), msg)
	if result.nack {
		t.Fatalf("unexpected nack")
	}
	if len(repo.created) != 1 || repo.created[0].Type != enums.NotificationTypeOrderFailover {
		t.Fatalf("unexpected notifications %+v", repo.created)
	}
}
