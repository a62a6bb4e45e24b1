package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/idempotency"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/payloads"
)

type consumerRepo struct {
	created   []models.Notification
	createErr error
}

func (r *consumerRepo) Create(ctx context.Context, notification *models.Notification) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, *notification)
	return nil
}

type consumerStore struct {
	seen     map[string]bool
	deleted  []string
	setNXErr error
}

func (s *consumerStore) Get(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (s *consumerStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.setNXErr != nil {
		return false, s.setNXErr
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *consumerStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (s *consumerStore) Del(ctx context.Context, keys ...string) error {
	s.deleted = append(s.deleted, keys...)
	for _, key := range keys {
		delete(s.seen, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, repo *consumerRepo, store *consumerStore) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("failed to build idempotency manager: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "consumer-test", Output: io.Discard})
	return &Consumer{
		repo:        repo,
		idempotency: manager,
		logg:        logg,
	}
}

func eventMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(eventType)},
	}
}

func TestProcessCreatesOrderPlacedNotification(t *testing.T) {
	repo := &consumerRepo{}
	store := &consumerStore{}
	consumer := newTestConsumer(t, repo, store)
	userID := uuid.New()
	orderID := uuid.New()

	msg := eventMessage(t, enums.EventOrderPlaced, payloads.OrderPlacedEvent{
		OrderID:   orderID,
		UserID:    userID,
		ItemCount: 3,
	})
	result := consumer.process(context.Background(), msg)
	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != userID {
		t.Fatalf("notification addressed to wrong user: %s", created.UserID)
	}
	if created.Type != enums.NotificationTypeOrderPlaced {
		t.Fatalf("unexpected notification type: %s", created.Type)
	}
	if created.OrderID == nil || *created.OrderID != orderID {
		t.Fatalf("notification missing order reference")
	}
}

func TestProcessSkipsUnhandledEvents(t *testing.T) {
	repo := &consumerRepo{}
	consumer := newTestConsumer(t, repo, &consumerStore{})

	msg := eventMessage(t, enums.EventRefundInitiated, payloads.RefundInitiatedEvent{})
	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("expected unhandled event to ack")
	}
	if len(repo.created) != 0 {
		t.Fatalf("unhandled event must not create notifications")
	}
}

func TestProcessAcksDuplicateDelivery(t *testing.T) {
	repo := &consumerRepo{}
	store := &consumerStore{}
	consumer := newTestConsumer(t, repo, store)

	payload := payloads.OrderStatusChangedEvent{
		OrderID:  uuid.New(),
		UserID:   uuid.New(),
		ToStatus: enums.OrderStatusShipped,
	}
	msg := eventMessage(t, enums.EventOrderStatusChanged, payload)

	first := consumer.process(context.Background(), msg)
	second := consumer.process(context.Background(), msg)
	if !first.ack || !second.ack {
		t.Fatalf("both deliveries should ack")
	}
	if len(repo.created) != 1 {
		t.Fatalf("duplicate delivery created %d notifications", len(repo.created))
	}
}

func TestProcessNacksAndReleasesKeyOnRepositoryFailure(t *testing.T) {
	repo := &consumerRepo{createErr: errors.New("insert failed")}
	store := &consumerStore{}
	consumer := newTestConsumer(t, repo, store)

	msg := eventMessage(t, enums.EventReturnRequested, payloads.ReturnRequestedEvent{
		OrderID: uuid.New(),
		UserID:  uuid.New(),
	})
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack on repository failure")
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected processed key released for retry, deleted %d", len(store.deleted))
	}
}

func TestProcessNacksWhenIdempotencyStoreUnavailable(t *testing.T) {
	store := &consumerStore{setNXErr: errors.New("redis down")}
	consumer := newTestConsumer(t, &consumerRepo{}, store)

	msg := eventMessage(t, enums.EventOrderCancelled, payloads.OrderCancelledEvent{
		OrderID: uuid.New(),
		UserID:  uuid.New(),
	})
	result := consumer.process(context.Background(), msg)
	if !result.nack {
		t.Fatalf("expected nack when idempotency store is unavailable")
	}
}

func TestProcessAcksMalformedEnvelope(t *testing.T) {
	repo := &consumerRepo{}
	consumer := newTestConsumer(t, repo, &consumerStore{})

	msg := &pubsub.Message{
		ID:         uuid.NewString(),
		Data:       []byte("{not json"),
		Attributes: map[string]string{"event_type": string(enums.EventOrderPlaced)},
	}
	result := consumer.process(context.Background(), msg)
	if !result.ack {
		t.Fatalf("malformed envelope should ack, not redeliver forever")
	}
	if len(repo.created) != 0 {
		t.Fatalf("malformed envelope must not create notifications")
	}
}

func TestBuildNotificationMessages(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	cancelled, err := buildNotification(enums.EventOrderCancelled, mustJSON(t, payloads.OrderCancelledEvent{
		OrderID:     orderID,
		UserID:      userID,
		CancelledBy: enums.CancelPartyAdmin,
		Reason:      "item damaged in warehouse",
	}))
	if err != nil {
		t.Fatalf("build cancelled notification: %v", err)
	}
	if cancelled.Message != "Your order was cancelled: item damaged in warehouse" {
		t.Fatalf("unexpected cancelled message: %q", cancelled.Message)
	}

	refunded, err := buildNotification(enums.EventReturnStatusChanged, mustJSON(t, payloads.ReturnStatusChangedEvent{
		OrderID:  orderID,
		UserID:   userID,
		ToStatus: enums.ReturnStatusRefunded,
	}))
	if err != nil {
		t.Fatalf("build return notification: %v", err)
	}
	if refunded.Message != "Your refund has been initiated." {
		t.Fatalf("unexpected refund message: %q", refunded.Message)
	}

	if _, err := buildNotification(enums.EventOrderPlaced, mustJSON(t, payloads.OrderPlacedEvent{
		OrderID: orderID,
	})); err == nil {
		t.Fatalf("expected error for payload without user id")
	}
}

func mustJSON(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}
