package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/internal/inventory"
	"github.com/pratikdungano/vastrahub-backend/internal/orders"
	"github.com/pratikdungano/vastrahub-backend/internal/payments"
	"github.com/pratikdungano/vastrahub-backend/pkg/config"
	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/gateway"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/payloads"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Refunder reverses a captured payment through the gateway. The gateway
// client satisfies this.
type Refunder interface {
	CreateRefund(ctx context.Context, paymentID string, amountPaise int64, notes map[string]string) (*gateway.Refund, error)
}

// RequestReturnInput opens a return on a delivered order.
type RequestReturnInput struct {
	OrderID     uuid.UUID
	UserID      uuid.UUID
	Type        enums.ReturnType
	Reason      string
	Photos      []string
	RefundRoute *types.RefundRoute
}

// ActionInput moves a return one step through the workflow.
type ActionInput struct {
	ReturnID    uuid.UUID
	ToStatus    enums.ReturnStatus
	ActorUserID uuid.UUID
	Note        *string
}

// Service runs the return workflow. Customers open requests; every later
// step is an admin decision. Stock comes back at received, money at
// refunded.
type Service interface {
	RequestReturn(ctx context.Context, input RequestReturnInput) (*models.ReturnRequest, error)
	ActOnReturn(ctx context.Context, input ActionInput) error
	ListReturns(ctx context.Context, params pagination.Params, filters ListFilters) (*ReturnList, error)
}

type service struct {
	repo     Repository
	orders   orders.Repository
	sessions payments.Repository
	tx       txRunner
	outbox   outboxPublisher
	stock    orders.StockRestorer
	refunder Refunder
	cfg      config.OrdersConfig
}

// NewService builds the return workflow service.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	sessions payments.Repository,
	tx txRunner,
	publisher outboxPublisher,
	stock orders.StockRestorer,
	refunder Refunder,
	cfg config.OrdersConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("payment session repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		stock = orders.NewStockRestorer()
	}
	if refunder == nil {
		return nil, fmt.Errorf("refunder required")
	}
	return &service{
		repo:     repo,
		orders:   ordersRepo,
		sessions: sessions,
		tx:       tx,
		outbox:   publisher,
		stock:    stock,
		refunder: refunder,
		cfg:      cfg,
	}, nil
}

// RequestReturn opens the single return allowed per order. Eligibility is
// delivered status plus the return window measured from delivery. COD
// requests must name a payout route up front; gateway orders are refunded
// through the gateway and carry no route.
func (s *service) RequestReturn(ctx context.Context, input RequestReturnInput) (*models.ReturnRequest, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid return type")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "return reason required")
	}
	if len(input.Photos) > s.cfg.MaxReturnPhotos {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("at most %d photos allowed", s.cfg.MaxReturnPhotos))
	}

	var created *models.ReturnRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindOrder(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusDelivered || order.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeReturnNotEligible, "only delivered orders can be returned")
		}
		now := time.Now()
		if now.Sub(*order.DeliveredAt) > s.cfg.ReturnWindow {
			return pkgerrors.New(pkgerrors.CodeReturnNotEligible, "return window has elapsed")
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByOrderID(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeReturnNotEligible, "a return was already requested for this order")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing return")
		}

		route, err := resolveRefundRoute(order, input)
		if err != nil {
			return err
		}

		request := &models.ReturnRequest{
			OrderID:     order.ID,
			Type:        input.Type,
			Status:      enums.ReturnStatusRequested,
			Reason:      input.Reason,
			Photos:      types.StringList(input.Photos),
			RefundRoute: route,
		}
		if _, err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist return request")
		}
		if err := repo.AppendEvent(ctx, &models.ReturnEvent{
			ReturnRequestID: request.ID,
			ToStatus:        enums.ReturnStatusRequested,
			Actor:           enums.UserRoleCustomer,
			ActorID:         input.UserID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append return event")
		}

		created = request
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnRequested,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.ReturnRequestedEvent{
				ReturnRequestID: request.ID,
				OrderID:         order.ID,
				UserID:          order.UserID,
				Type:            input.Type,
				Reason:          input.Reason,
				RequestedAt:     now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ActOnReturn moves a return one legal step. Received restores stock;
// refunded pays the money back, through the gateway for online orders. Every
// step lands one append-only timeline event.
func (s *service) ActOnReturn(ctx context.Context, input ActionInput) error {
	if input.ReturnID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "return id required")
	}
	if !input.ToStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByID(ctx, input.ReturnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "return request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return request")
		}
		if !CanAdvance(request.Status, input.ToStatus) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("cannot move return from %s to %s", request.Status, input.ToStatus))
		}

		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.FindOrder(ctx, request.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for return")
		}

		now := time.Now()
		updates := map[string]any{"status": input.ToStatus}
		if input.ToStatus == enums.ReturnStatusRefunded {
			updates["refunded_at"] = now
		}

		// The status-guarded write goes first. When two admins race the same
		// step, the loser's update matches zero rows and the transaction
		// rolls back before any stock or money moves twice.
		if err := repo.UpdateStatus(ctx, request.ID, request.Status, updates); err != nil {
			if errors.Is(err, ErrStatusChanged) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "return request changed, reload and retry")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return request")
		}

		if input.ToStatus == enums.ReturnStatusReceived {
			if err := s.restoreOrderStock(ctx, tx, order); err != nil {
				return err
			}
		}
		if input.ToStatus == enums.ReturnStatusRefunded {
			// A failed gateway call rolls the status write back with the
			// transaction.
			if err := s.initiateRefund(ctx, tx, order); err != nil {
				return err
			}
		}
		fromStatus := request.Status
		if err := repo.AppendEvent(ctx, &models.ReturnEvent{
			ReturnRequestID: request.ID,
			FromStatus:      &fromStatus,
			ToStatus:        input.ToStatus,
			Actor:           enums.UserRoleAdmin,
			ActorID:         input.ActorUserID,
			Note:            input.Note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append return event")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.UserRoleAdmin.String()}
		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReturnStatusChanged,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.ReturnStatusChangedEvent{
				ReturnRequestID: request.ID,
				OrderID:         order.ID,
				UserID:          order.UserID,
				FromStatus:      fromStatus,
				ToStatus:        input.ToStatus,
				ChangedAt:       now,
			},
		})
		if err != nil || input.ToStatus != enums.ReturnStatusRefunded {
			return err
		}

		var routeType *enums.RefundRouteType
		if request.RefundRoute != nil {
			routeType = &request.RefundRoute.Type
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundInitiated,
			AggregateType: enums.AggregateReturnRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.RefundInitiatedEvent{
				ReturnRequestID: request.ID,
				OrderID:         order.ID,
				UserID:          order.UserID,
				AmountPaise:     order.AmountPaise,
				RouteType:       routeType,
				GatewayRefund:   order.PaymentMethod == enums.PaymentMethodOnline,
				InitiatedAt:     now,
			},
		})
	})
}

func (s *service) ListReturns(ctx context.Context, params pagination.Params, filters ListFilters) (*ReturnList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	return list, nil
}

func (s *service) restoreOrderStock(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	requests := make([]inventory.RestoreRequest, 0, len(order.Items))
	for _, item := range order.Items {
		requests = append(requests, inventory.RestoreRequest{SKU: item.SKU, Qty: item.Qty})
	}
	if err := s.stock.Restore(ctx, tx, requests); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
	}
	return nil
}

// initiateRefund reverses the payment for online orders. COD refunds are
// paid out manually against the route captured at request time, so there is
// nothing to call.
func (s *service) initiateRefund(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil
	}
	session, err := s.sessions.WithTx(tx).FindByOrderID(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment session for refund")
	}
	if session.PaymentRef == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "payment session has no captured payment")
	}
	_, err = s.refunder.CreateRefund(ctx, *session.PaymentRef, order.AmountPaise, map[string]string{
		"order_id": order.ID.String(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiate gateway refund")
	}
	return nil
}

// resolveRefundRoute captures the payout destination for COD orders. Online
// orders refund through the gateway against the captured payment, so no route
// is collected. Replacements can still end in a refund when no stock is left,
// so COD requests of both types must carry a route up front.
func resolveRefundRoute(order *models.Order, input RequestReturnInput) (*types.RefundRoute, error) {
	if order.PaymentMethod == enums.PaymentMethodOnline {
		return nil, nil
	}
	if input.RefundRoute == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingRefundRoute, "cod refunds need a upi id or bank account")
	}
	if err := input.RefundRoute.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid refund route")
	}
	return input.RefundRoute, nil
}
