package failover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/enums"
	"github.com/asthahub/storefront-backend/pkg/logger"
	"github.com/asthahub/storefront-backend/pkg/orderid"
	"github.com/asthahub/storefront-backend/pkg/outbox"
	"github.com/asthahub/storefront-backend/pkg/outbox/payloads"
)

const publishTimeout = 10 * time.Second

// ObjectStore is the durable sink the parked orders land in.
type ObjectStore interface {
	UploadJSON(ctx context.Context, object string, data []byte) error
	ReadObject(ctx context.Context, object string) ([]byte, error)
	ListObjects(ctx context.Context, prefix string, max int) ([]string, error)
}

// Publisher mirrors the Pub/Sub publisher surface so tests can stub it.
type Publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult
}

// PublishResult resolves a published message id.
type PublishResult interface {
	Get(ctx context.Context) (string, error)
}

// ParkRequest carries an already-validated order that the primary store
// refused for capacity reasons.
type ParkRequest struct {
	Payload       json.RawMessage
	CustomerEmail string
	CustomerName  string
	FinalTotal    decimal.Decimal
}

// Receipt identifies a parked order.
type Receipt struct {
	OrderID    string
	ObjectPath string
	ParkedAt   time.Time
}

// Record is the document persisted per parked order, self-contained so the
// reconciliation process needs nothing but the object itself.
type Record struct {
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	CustomerName  string          `json:"customer_name,omitempty"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	Payload       json.RawMessage `json:"payload"`
	ParkedAt      time.Time       `json:"parked_at"`
}

// Store parks orders in object storage when the primary store signals
// quota exhaustion. The upload is the durability guarantee; the follow-up
// event publish is best effort because the outbox lives in the store that
// just refused the write.
type Store struct {
	objects   ObjectStore
	publisher Publisher
	prefix    string
	logg      *logger.Logger
	now       func() time.Time
}

// NewStore builds a failover store. publisher may be nil; parking still
// succeeds without the alert event.
func NewStore(objects ObjectStore, publisher Publisher, cfg config.GCSConfig, logg *logger.Logger) *Store {
	prefix := strings.Trim(cfg.FailoverPrefix, "/")
	if prefix == "" {
		prefix = "failover"
	}
	return &Store{
		objects:   objects,
		publisher: publisher,
		prefix:    prefix,
		logg:      logg,
		now:       time.Now,
	}
}

// Park durably persists the order payload and returns its failover
// identifier. An error here means the order has nowhere left to go and the
// caller must surface a hard failure.
func (s *Store) Park(ctx context.Context, req ParkRequest) (Receipt, error) {
	if s == nil || s.objects == nil {
		return Receipt{}, errors.New("failover store not initialized")
	}
	if len(req.Payload) == 0 {
		return Receipt{}, errors.New("order payload is required")
	}

	parkedAt := s.now().UTC()
	id := orderid.NewFailover()
	object := fmt.Sprintf("%s/%s/%s.json", s.prefix, parkedAt.Format("2006/01/02"), id)

	record := Record{
		OrderID:       id,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		FinalTotal:    req.FinalTotal,
		Payload:       req.Payload,
		ParkedAt:      parkedAt,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return Receipt{}, fmt.Errorf("encoding failover record: %w", err)
	}

	if err := s.objects.UploadJSON(ctx, object, data); err != nil {
		return Receipt{}, fmt.Errorf("parking order: %w", err)
	}

	receipt := Receipt{OrderID: id, ObjectPath: object, ParkedAt: parkedAt}
	s.publishParked(ctx, receipt, req)

	if s.logg != nil {
		fields := map[string]any{
			"order_id":    id,
			"object_path": object,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order parked in failover store")
	}
	return receipt, nil
}

// publishParked emits the failover alert directly to Pub/Sub. Failures are
// logged and swallowed; the parked object is already durable and the
// reconciliation sweep will find it.
func (s *Store) publishParked(ctx context.Context, receipt Receipt, req ParkRequest) {
	if s.publisher == nil {
		return
	}

	event := payloads.OrderFailedOverEvent{
		OrderID:       receipt.OrderID,
		ObjectPath:    receipt.ObjectPath,
		CustomerEmail: req.CustomerEmail,
		FinalTotal:    req.FinalTotal,
		ParkedAt:      receipt.ParkedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.warnPublish(ctx, receipt.OrderID, err)
		return
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: receipt.ParkedAt,
		Data:       data,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		s.warnPublish(ctx, receipt.OrderID, err)
		return
	}

	msg := &gcppubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(enums.EventOrderFailedOver),
			"aggregate_type": string(enums.AggregateOrder),
			"aggregate_id":   receipt.OrderID,
			"created_at":     receipt.ParkedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := s.publisher.Publish(publishCtx, msg)
	if result == nil {
		s.warnPublish(ctx, receipt.OrderID, errors.New("publisher returned nil result"))
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		s.warnPublish(ctx, receipt.OrderID, err)
	}
}

func (s *Store) warnPublish(ctx context.Context, orderID string, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithOrderID(ctx, orderID)
	logCtx = s.logg.WithField(logCtx, "error", err.Error())
	s.logg.Warn(logCtx, "failover alert publish failed")
}

// List returns parked object paths, newest date folders included, up to
// max entries. Used by the reconciliation sweep.
func (s *Store) List(ctx context.Context, max int) ([]string, error) {
	if s == nil || s.objects == nil {
		return nil, errors.New("failover store not initialized")
	}
	return s.objects.ListObjects(ctx, s.prefix+"/", max)
}

// Read loads and decodes a parked order record by object path.
func (s *Store) Read(ctx context.Context, object string) (*Record, error) {
	if s == nil || s.objects == nil {
		return nil, errors.New("failover store not initialized")
	}
	data, err := s.objects.ReadObject(ctx, object)
	if err != nil {
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decoding failover record %s: %w", object, err)
	}
	return &record, nil
}

// NewGCPPublisher adapts a concrete Pub/Sub publisher to the Publisher
// interface.
func NewGCPPublisher(p *gcppubsub.Publisher) Publisher {
	if p == nil {
		return nil
	}
	return &gcpPublisher{inner: p}
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) PublishResult {
	if p == nil || p.inner == nil {
		return nil
	}
	return p.inner.Publish(ctx, msg)
}
