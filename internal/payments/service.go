package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/internal/inventory"
	"github.com/pratikdungano/vastrahub-backend/internal/orders"
	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/payloads"
)

const (
	versionRetryAttempts = 3
	versionRetryBackoff  = 25 * time.Millisecond
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// SignatureVerifier checks the gateway callback signature. The gateway
// client satisfies this.
type SignatureVerifier interface {
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
}

// StockDecrementer takes stock inside the verification transaction. Online
// orders only commit stock once the payment verifies.
type StockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, requests []inventory.DecrementRequest) ([]inventory.DecrementResult, error)
}

type ledgerDecrementer struct{}

func (ledgerDecrementer) Decrement(ctx context.Context, tx *gorm.DB, requests []inventory.DecrementRequest) ([]inventory.DecrementResult, error) {
	return inventory.DecrementStock(ctx, tx, requests)
}

// VerifyPaymentInput carries the gateway callback fields.
type VerifyPaymentInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Service resolves gateway callbacks: a verified payment moves the order
// from payment_pending to placed and takes stock in the same transaction.
type Service interface {
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) error
	ConfirmFromGateway(ctx context.Context, gatewayOrderID, paymentID string) error
	RecordFailure(ctx context.Context, gatewayOrderID, reason string) error
}

type service struct {
	sessions Repository
	orders   orders.Repository
	tx       txRunner
	outbox   outboxPublisher
	stock    StockDecrementer
	verifier SignatureVerifier
}

// NewService builds the payment verification service.
func NewService(
	sessions Repository,
	ordersRepo orders.Repository,
	tx txRunner,
	publisher outboxPublisher,
	stock StockDecrementer,
	verifier SignatureVerifier,
) (Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("payment session repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		stock = ledgerDecrementer{}
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	return &service{
		sessions: sessions,
		orders:   ordersRepo,
		tx:       tx,
		outbox:   publisher,
		stock:    stock,
		verifier: verifier,
	}, nil
}

// VerifyPayment settles a gateway callback. Replays of an already paid
// session succeed without side effects. If stock ran out while the customer
// was paying, nothing commits and the order stays in payment_pending.
func (s *service) VerifyPayment(ctx context.Context, input VerifyPaymentInput) error {
	if strings.TrimSpace(input.GatewayOrderID) == "" ||
		strings.TrimSpace(input.PaymentID) == "" ||
		strings.TrimSpace(input.Signature) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature required")
	}
	if !s.verifier.VerifyPaymentSignature(input.GatewayOrderID, input.PaymentID, input.Signature) {
		return pkgerrors.New(pkgerrors.CodePaymentVerification, "payment signature mismatch")
	}

	return s.confirm(ctx, input.GatewayOrderID, input.PaymentID)
}

// ConfirmFromGateway settles a capture event delivered on the webhook
// channel. The webhook HMAC is validated at the transport layer, so no
// per-payment signature is checked here.
func (s *service) ConfirmFromGateway(ctx context.Context, gatewayOrderID, paymentID string) error {
	if strings.TrimSpace(gatewayOrderID) == "" || strings.TrimSpace(paymentID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id required")
	}
	return s.confirm(ctx, gatewayOrderID, paymentID)
}

func (s *service) confirm(ctx context.Context, gatewayOrderID, paymentID string) error {
	return s.withVersionRetry(ctx, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			sessions := s.sessions.WithTx(tx)
			session, err := sessions.FindByGatewayOrderID(ctx, gatewayOrderID)
			if err != nil {
				return mapSessionError(err)
			}
			if session.Status == enums.PaymentSessionStatusPaid {
				return nil
			}

			ordersRepo := s.orders.WithTx(tx)
			order, err := ordersRepo.FindOrder(ctx, session.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment")
			}
			if order.Status != enums.OrderStatusPaymentPending {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("order is %s, no longer awaiting payment", order.Status))
			}

			if err := s.takeStock(ctx, tx, order.Items); err != nil {
				return err
			}

			now := time.Now()
			if err := sessions.UpdateSession(ctx, session.ID, map[string]any{
				"status":      enums.PaymentSessionStatusPaid,
				"payment_ref": paymentID,
				"verified_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark session paid")
			}
			if err := ordersRepo.UpdateOrderVersioned(ctx, order.ID, order.Version, map[string]any{
				"status":            enums.OrderStatusPlaced,
				"payment_confirmed": true,
				"paid_at":           now,
			}); err != nil {
				return err
			}

			actor := &outbox.ActorRef{UserID: order.UserID, Role: enums.UserRoleCustomer.String()}
			err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentConfirmed,
				AggregateType: enums.AggregatePayment,
				AggregateID:   session.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.PaymentConfirmedEvent{
					OrderID:        order.ID,
					UserID:         order.UserID,
					GatewayOrderID: session.GatewayOrderID,
					PaymentRef:     paymentID,
					AmountPaise:    session.AmountPaise,
					PaidAt:         now,
				},
			})
			if err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPlaced,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.OrderPlacedEvent{
					OrderID:       order.ID,
					UserID:        order.UserID,
					PaymentMethod: order.PaymentMethod,
					AmountPaise:   order.AmountPaise,
					ItemCount:     len(order.Items),
					PlacedAt:      now,
				},
			})
		})
	})
}

// RecordFailure marks the session failed after a gateway failure callback.
// The order stays in payment_pending; the TTL sweep expires it if no retry
// succeeds. A failure arriving after a successful verification is ignored.
func (s *service) RecordFailure(ctx context.Context, gatewayOrderID, reason string) error {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sessions := s.sessions.WithTx(tx)
		session, err := sessions.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return mapSessionError(err)
		}
		if session.Status == enums.PaymentSessionStatusPaid {
			return nil
		}

		if err := sessions.UpdateSession(ctx, session.ID, map[string]any{
			"status":         enums.PaymentSessionStatusFailed,
			"failure_reason": reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark session failed")
		}

		order, err := s.orders.WithTx(tx).FindOrder(ctx, session.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for payment failure")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   session.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				OrderID:        order.ID,
				UserID:         order.UserID,
				GatewayOrderID: session.GatewayOrderID,
				Reason:         reason,
			},
		})
	})
}

func (s *service) takeStock(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	requests := make([]inventory.DecrementRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, inventory.DecrementRequest{SKU: item.SKU, Qty: item.Qty})
	}
	results, err := s.stock.Decrement(ctx, tx, requests)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if failed := inventory.FailedSKUs(results); len(failed) > 0 {
		// Returning the error rolls back every decrement in this request.
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
			WithDetails(map[string]any{"skus": failed})
	}
	return nil
}

func (s *service) withVersionRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(versionRetryAttempts, retry.NewConstant(versionRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(); err != nil {
			if errors.Is(err, orders.ErrStaleVersion) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, orders.ErrStaleVersion) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order changed concurrently")
	}
	return err
}

func mapSessionError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown gateway order")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session")
}
