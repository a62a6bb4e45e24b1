package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pratikdungano/vastrahub-backend/api/responses"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
)

const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

// PaymentEventService is the payments surface the webhook drives. The
// webhook HMAC replaces the per-payment signature on this channel.
type PaymentEventService interface {
	ConfirmFromGateway(ctx context.Context, gatewayOrderID, paymentID string) error
	RecordFailure(ctx context.Context, gatewayOrderID, reason string) error
}

type paymentWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// paymentWebhookEvent is the gateway's asynchronous envelope. The payment
// entity is nested two levels down, mirroring the gateway's wire format.
type paymentWebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	ErrorDescription string `json:"error_description"`
}

// PaymentWebhook handles asynchronous payment events from the gateway.
// Captured events settle the order even when the customer never returned
// to the storefront callback; failed events record the failure reason.
func PaymentWebhook(svc PaymentEventService, verifier webhookVerifier, guard paymentWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("X-Gateway-Signature")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "gateway signature missing"))
			return
		}
		if !verifier.VerifyWebhookSignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodePaymentVerification, "invalid gateway signature"))
			return
		}

		var event paymentWebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event"))
			return
		}

		entity := event.Payload.Payment.Entity
		eventID := strings.TrimSpace(r.Header.Get("X-Gateway-Event-Id"))
		if eventID == "" {
			eventID = fmt.Sprintf("%s:%s", event.Event, entity.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := handlePaymentEvent(ctx, svc, event.Event, entity); err != nil {
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("gateway event %s processed", eventID))
		}
		responses.WriteSuccess(w, nil)
	}
}

func handlePaymentEvent(ctx context.Context, svc PaymentEventService, eventType string, entity paymentEntity) error {
	switch eventType {
	case eventPaymentCaptured:
		return svc.ConfirmFromGateway(ctx, entity.OrderID, entity.ID)
	case eventPaymentFailed:
		reason := entity.ErrorDescription
		if reason == "" {
			reason = "payment failed at gateway"
		}
		return svc.RecordFailure(ctx, entity.OrderID, reason)
	default:
		// Unsubscribed event types are acknowledged so the gateway stops
		// redelivering them.
		return nil
	}
}
