package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/idempotency"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns order and return transitions
// into in-app notifications for the customer.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
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

	if !handledEvents[eventType] {
		c.logg.Info(logCtx, "skipping unhandled event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := buildNotification(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to persist notification", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"user_id": notification.UserID.String(),
	}), "notification created")
	return processResult{ack: true}
}

var handledEvents = map[enums.OutboxEventType]bool{
	enums.EventOrderPlaced:         true,
	enums.EventOrderStatusChanged:  true,
	enums.EventOrderCancelled:      true,
	enums.EventOrderPaymentExpired: true,
	enums.EventReturnRequested:     true,
	enums.EventReturnStatusChanged: true,
}

func buildNotification(eventType enums.OutboxEventType, data json.RawMessage) (*models.Notification, error) {
	switch eventType {
	case enums.EventOrderPlaced:
		var p payloads.OrderPlacedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		return &models.Notification{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderPlaced,
			Title:   "Order confirmed",
			Message: fmt.Sprintf("Your order for %d items is confirmed. We will let you know when it ships.", p.ItemCount),
			OrderID: &p.OrderID,
		}, nil
	case enums.EventOrderStatusChanged:
		var p payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		return &models.Notification{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderStatusChanged,
			Title:   "Order update",
			Message: statusMessage(p.ToStatus),
			OrderID: &p.OrderID,
		}, nil
	case enums.EventOrderCancelled:
		var p payloads.OrderCancelledEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		message := "Your order has been cancelled."
		if p.CancelledBy == enums.CancelPartyAdmin && p.Reason != "" {
			message = fmt.Sprintf("Your order was cancelled: %s", p.Reason)
		}
		return &models.Notification{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderCancelled,
			Title:   "Order cancelled",
			Message: message,
			OrderID: &p.OrderID,
		}, nil
	case enums.EventOrderPaymentExpired:
		var p payloads.OrderPaymentExpiredEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		return &models.Notification{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeOrderCancelled,
			Title:   "Order cancelled",
			Message: "Your order was cancelled because the payment was not completed in time.",
			OrderID: &p.OrderID,
		}, nil
	case enums.EventReturnRequested:
		var p payloads.ReturnRequestedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		return &models.Notification{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeReturnRequested,
			Title:   "Return request received",
			Message: "We received your return request and will review it shortly.",
			OrderID: &p.OrderID,
		}, nil
	case enums.EventReturnStatusChanged:
		var p payloads.ReturnStatusChangedEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if p.UserID == uuid.Nil {
			return nil, fmt.Errorf("user id missing")
		}
		return &models.Notification{
			UserID:  p.UserID,
			Type:    enums.NotificationTypeReturnStatusChanged,
			Title:   "Return update",
			Message: returnMessage(p.ToStatus),
			OrderID: &p.OrderID,
		}, nil
	}
	return nil, fmt.Errorf("unhandled event type %s", eventType)
}

func statusMessage(status enums.OrderStatus) string {
	switch status {
	case enums.OrderStatusProcessing:
		return "Your order is being packed."
	case enums.OrderStatusShipped:
		return "Your order has shipped."
	case enums.OrderStatusOutForDelivery:
		return "Your order is out for delivery."
	case enums.OrderStatusDelivered:
		return "Your order has been delivered."
	default:
		return fmt.Sprintf("Your order is now %s.", status)
	}
}

func returnMessage(status enums.ReturnStatus) string {
	switch status {
	case enums.ReturnStatusApproved:
		return "Your return was approved. A pickup will be scheduled soon."
	case enums.ReturnStatusRejected:
		return "Your return request was rejected."
	case enums.ReturnStatusPickupScheduled:
		return "A pickup has been scheduled for your return."
	case enums.ReturnStatusPicked:
		return "Your return has been picked up."
	case enums.ReturnStatusReceived:
		return "We received your returned items."
	case enums.ReturnStatusRefunded:
		return "Your refund has been initiated."
	default:
		return fmt.Sprintf("Your return is now %s.", status)
	}
}
