package failover

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/shopspring/decimal"

	"github.com/asthahub/storefront-backend/pkg/config"
	"github.com/asthahub/storefront-backend/pkg/orderid"
)

type fakeObjects struct {
	uploads   map[string][]byte
	uploadErr error
	listed    []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{uploads: map[string][]byte{}}
}

func (f *fakeObjects) UploadJSON(_ context.Context, object string, data []byte) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads[object] = data
	return nil
}

func (f *fakeObjects) ReadObject(_ context.Context, object string) ([]byte, error) {
	data, ok := f.uploads[object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (f *fakeObjects) ListObjects(_ context.Context, prefix string, _ int) ([]string, error) {
	names := []string{}
	for name := range f.uploads {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	f.listed = names
	return names, nil
}

type fakeResult struct {
	err error
}

func (f *fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "msg-1", nil
}

type fakePublisher struct {
	published []*gcppubsub.Message
	result    *fakeResult
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) PublishResult {
	f.published = append(f.published, msg)
	if f.result == nil {
		return &fakeResult{}
	}
	return f.result
}

func testStore(objects *fakeObjects, pub Publisher) *Store {
	s := NewStore(objects, pub, config.GCSConfig{FailoverPrefix: "failover"}, nil)
	s.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	}
	return s
}

func parkRequest() ParkRequest {
	return ParkRequest{
		Payload:       json.RawMessage(`{"items":[{"productId":"tea-100","quantity":2}]}`),
		CustomerEmail: "farah@example.com",
		FinalTotal:    decimal.NewFromFloat(189.00),
	}
}

func TestParkWritesDatedObject(t *testing.T) {
	objects := newFakeObjects()
	store := testStore(objects, nil)

	receipt, err := store.Park(context.Background(), parkRequest())
	if err != nil {
		t.Fatalf("Park: %v", err)
	}
	if !orderid.IsFailover(receipt.OrderID) {
		t.Fatalf("order id %q should carry the failover prefix", receipt.OrderID)
	}
	if !strings.HasPrefix(receipt.ObjectPath, "failover/2026/03/14/") {
		t.Fatalf("object path = %q", receipt.ObjectPath)
	}

	data, ok := objects.uploads[receipt.ObjectPath]
	if !ok {
		t.Fatalf("no object written at %q", receipt.ObjectPath)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.OrderID != receipt.OrderID {
		t.Fatalf("record order id = %q, want %q", record.OrderID, receipt.OrderID)
	}
	if record.CustomerEmail != "farah@example.com" {
		t.Fatalf("record email = %q", record.CustomerEmail)
	}
	if len(record.Payload) == 0 {
		t.Fatalf("record must embed the raw payload")
	}
}

func TestParkPublishesAlert(t *testing.T) {
	objects := newFakeObjects()
	pub := &fakePublisher{}
	store := testStore(objects, pub)

	receipt, err := store.Park(context.Background(), parkRequest())
	if err != nil {
		t.Fatalf("Park: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Attributes["event_type"] != "order_failed_over" {
		t.Fatalf("event_type attribute = %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_id"] != receipt.OrderID {
		t.Fatalf("aggregate_id attribute = %q", msg.Attributes["aggregate_id"])
	}
}

func TestParkSurvivesPublishFailure(t *testing.T) {
	objects := newFakeObjects()
	pub := &fakePublisher{result: &fakeResult{err: errors.New("topic unavailable")}}
	store := testStore(objects, pub)

	receipt, err := store.Park(context.Background(), parkRequest())
	if err != nil {
		t.Fatalf("publish failure must not fail the park: %v", err)
	}
	if _, ok := objects.uploads[receipt.ObjectPath]; !ok {
		t.Fatalf("object missing after publish failure")
	}
}

func TestParkFailsWhenUploadFails(t *testing.T) {
	objects := newFakeObjects()
	objects.uploadErr = errors.New("bucket gone")
	store := testStore(objects, nil)

	if _, err := store.Park(context.Background(), parkRequest()); err == nil {
		t.Fatalf("expected error when the upload fails")
	}
}

func TestParkRejectsEmptyPayload(t *testing.T) {
	store := testStore(newFakeObjects(), nil)
	if _, err := store.Park(context.Background(), ParkRequest{}); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestListAndReadRoundTrip(t *testing.T) {
	objects := newFakeObjects()
	store := testStore(objects, nil)

	receipt, err := store.Park(context.Background(), parkRequest())
	if err != nil {
		t.Fatalf("Park: %v", err)
	}

	names, err := store.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != receipt.ObjectPath {
		t.Fatalf("listed %v", names)
	}

	record, err := store.Read(context.Background(), receipt.ObjectPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if record.OrderID != receipt.OrderID {
		t.Fatalf("round trip order id = %q, want %q", record.OrderID, receipt.OrderID)
	}
}
