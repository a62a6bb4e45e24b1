package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/internal/inventory"
	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/payloads"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
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

// StockRestorer gives units back when an order is cancelled.
type StockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, requests []inventory.RestoreRequest) error
}

type ledgerRestorer struct{}

// NewStockRestorer exposes the default ledger-backed restore implementation.
func NewStockRestorer() StockRestorer {
	return ledgerRestorer{}
}

func (ledgerRestorer) Restore(ctx context.Context, tx *gorm.DB, requests []inventory.RestoreRequest) error {
	return inventory.RestoreStock(ctx, tx, requests)
}

// Service defines the order lifecycle operations shared by every entry
// point. Transition legality lives in the forwardEdges table; this service
// only adds actor rules, stock effects, and event emission.
type Service interface {
	GetUserOrder(ctx context.Context, orderID, userID uuid.UUID) (*OrderDetailView, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetailView, error)
	ListOrders(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*OrderList, error)
	AdvanceStatus(ctx context.Context, input AdvanceStatusInput) error
	CancelByUser(ctx context.Context, input CancelInput) error
	CancelByAdmin(ctx context.Context, input CancelInput) error
	ExpireAbandoned(ctx context.Context, cutoff time.Time) (int, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	stock  StockRestorer
}

// NewService builds the order lifecycle service with its dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, stock StockRestorer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, stock: stock}, nil
}

func (s *service) GetUserOrder(ctx context.Context, orderID, userID uuid.UUID) (*OrderDetailView, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return buildDetailView(order), nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetailView, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return buildDetailView(order), nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListUserOrders(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user orders")
	}
	return list, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters AdminOrderFilters) (*OrderList, error) {
	list, err := s.repo.ListOrders(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// AdvanceStatus moves an order one legal step forward. A user cancellation
// that committed first makes the order immutable for admins except through
// the cancel view, which is the IMMUTABLE_AFTER_USER_CANCELLATION rule.
func (s *service) AdvanceStatus(ctx context.Context, input AdvanceStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.ToStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	return s.withVersionRetry(ctx, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrder(ctx, input.OrderID)
			if err != nil {
				return mapLoadError(err)
			}
			if order.CancelledBy != nil && *order.CancelledBy == enums.CancelPartyUser {
				return pkgerrors.New(pkgerrors.CodeUserCancelled, "order was cancelled by the customer")
			}
			// The payment_pending to placed edge belongs to payment
			// verification. Fulfilment cannot move an unpaid order.
			if order.Status == enums.OrderStatusPaymentPending {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is awaiting payment")
			}
			if !CanAdvance(order.Status, input.ToStatus) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition,
					fmt.Sprintf("cannot move order from %s to %s", order.Status, input.ToStatus))
			}

			now := time.Now()
			updates := map[string]any{"status": input.ToStatus}
			if input.ToStatus == enums.OrderStatusDelivered && order.DeliveredAt == nil {
				updates["delivered_at"] = now
			}
			if err := repo.UpdateOrderVersioned(ctx, order.ID, order.Version, updates); err != nil {
				return err
			}

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.UserRoleAdmin.String()},
				Data: payloads.OrderStatusChangedEvent{
					OrderID:    order.ID,
					UserID:     order.UserID,
					FromStatus: order.Status,
					ToStatus:   input.ToStatus,
					ChangedAt:  now,
				},
			})
		})
	})
}

func (s *service) CancelByUser(ctx context.Context, input CancelInput) error {
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.cancel(ctx, input, enums.CancelPartyUser)
}

func (s *service) CancelByAdmin(ctx context.Context, input CancelInput) error {
	return s.cancel(ctx, input, enums.CancelPartyAdmin)
}

func (s *service) cancel(ctx context.Context, input CancelInput, party enums.CancelParty) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.withVersionRetry(ctx, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindOrder(ctx, input.OrderID)
			if err != nil {
				return mapLoadError(err)
			}
			if party == enums.CancelPartyUser && order.UserID != input.ActorUserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
			}
			if order.Status == enums.OrderStatusCancelled {
				return nil
			}
			if !CanCancel(order.Status) {
				return pkgerrors.New(pkgerrors.CodeInvalidTransition,
					fmt.Sprintf("cannot cancel order in status %s", order.Status))
			}

			now := time.Now()
			if err := repo.UpdateOrderVersioned(ctx, order.ID, order.Version, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_by": party,
				"cancelled_at": now,
			}); err != nil {
				return err
			}

			// Gateway orders still in payment_pending never took stock.
			if order.Status != enums.OrderStatusPaymentPending {
				if err := s.restoreOrderStock(ctx, tx, repo, order.ID); err != nil {
					return err
				}
			}

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCancelled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: actorRole(party)},
				Data: payloads.OrderCancelledEvent{
					OrderID:     order.ID,
					UserID:      order.UserID,
					CancelledBy: party,
					FromStatus:  order.Status,
					CancelledAt: now,
					Reason:      input.Reason,
				},
			})
		})
	})
}

// ExpireAbandoned cancels gateway orders stuck in payment_pending past the
// cutoff. Stock was never decremented for them, so there is nothing to
// restore. One failing order does not stop the sweep. Returns the number of
// orders expired.
func (s *service) ExpireAbandoned(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.FindPaymentPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find abandoned orders")
	}

	expired := 0
	var errs []error
	for _, order := range stale {
		order := order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			now := time.Now()
			if err := repo.UpdateOrderVersioned(ctx, order.ID, order.Version, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_by": enums.CancelPartyAdmin,
				"cancelled_at": now,
			}); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaymentExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderPaymentExpiredEvent{
					OrderID:   order.ID,
					UserID:    order.UserID,
					ExpiredAt: now,
				},
			})
		})
		if err != nil {
			if errors.Is(err, ErrStaleVersion) {
				// The order moved since the scan, likely a verified payment.
				continue
			}
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}
	return expired, multierr.Combine(errs...)
}

// withVersionRetry re-runs fn when the optimistic version check loses a
// race. Each attempt reloads the order, so the retry re-evaluates legality
// against the winner's state instead of blindly overwriting.
func (s *service) withVersionRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(versionRetryAttempts, retry.NewConstant(versionRetryBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := fn(); err != nil {
			if errors.Is(err, ErrStaleVersion) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, ErrStaleVersion) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order changed concurrently")
	}
	return err
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func actorRole(party enums.CancelParty) string {
	if party == enums.CancelPartyAdmin {
		return enums.UserRoleAdmin.String()
	}
	return enums.UserRoleCustomer.String()
}

// restoreOrderStock gives every line item's units back inside the same
// transaction that cancels the order.
func (s *service) restoreOrderStock(ctx context.Context, tx *gorm.DB, repo Repository, orderID uuid.UUID) error {
	items, err := repo.FindOrderItems(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
	}
	requests := make([]inventory.RestoreRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, inventory.RestoreRequest{SKU: item.SKU, Qty: item.Qty})
	}
	return s.stock.Restore(ctx, tx, requests)
}
