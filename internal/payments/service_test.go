package payments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/internal/inventory"
	"github.com/pratikdungano/vastrahub-backend/internal/orders"
	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubSessions struct {
	session *models.PaymentSession
	updates map[string]any
}

func (s *stubSessions) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubSessions) CreateSession(ctx context.Context, session *models.PaymentSession) error {
	s.session = session
	return nil
}

func (s *stubSessions) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentSession, error) {
	if s.session == nil || s.session.GatewayOrderID != gatewayOrderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.session
	return &copied, nil
}

func (s *stubSessions) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error) {
	if s.session == nil || s.session.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.session
	return &copied, nil
}

func (s *stubSessions) UpdateSession(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error {
	if s.session == nil || s.session.ID != sessionID {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	if status, ok := updates["status"].(enums.PaymentSessionStatus); ok {
		s.session.Status = status
	}
	return nil
}

type stubOrdersRepo struct {
	order   *models.Order
	updates map[string]any
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return s }

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	return order, nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.order
	return &copied, nil
}

func (s *stubOrdersRepo) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	return nil, nil
}

func (s *stubOrdersRepo) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return nil, nil
}

func (s *stubOrdersRepo) ListOrders(ctx context.Context, params pagination.Params, filters orders.AdminOrderFilters) (*orders.OrderList, error) {
	return nil, nil
}

func (s *stubOrdersRepo) UpdateOrderVersioned(ctx context.Context, orderID uuid.UUID, version int64, updates map[string]any) error {
	if s.order == nil || s.order.ID != orderID {
		return gorm.ErrRecordNotFound
	}
	if version != s.order.Version {
		return orders.ErrStaleVersion
	}
	s.updates = updates
	s.order.Version++
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		s.order.Status = status
	}
	return nil
}

func (s *stubOrdersRepo) FindPaymentPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

type stubDecrementer struct {
	requests []inventory.DecrementRequest
	fail     map[string]bool
}

func (s *stubDecrementer) Decrement(ctx context.Context, tx *gorm.DB, requests []inventory.DecrementRequest) ([]inventory.DecrementResult, error) {
	s.requests = append(s.requests, requests...)
	results := make([]inventory.DecrementResult, 0, len(requests))
	for _, req := range requests {
		res := inventory.DecrementResult{SKU: req.SKU, Decremented: !s.fail[req.SKU]}
		if !res.Decremented {
			res.Reason = "insufficient stock"
		}
		results = append(results, res)
	}
	return results, nil
}

type stubVerifier struct {
	ok bool
}

func (s stubVerifier) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	return s.ok
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusPaymentPending,
		PaymentMethod: enums.PaymentMethodOnline,
		SubtotalPaise: 189800,
		AmountPaise:   189800,
		ShippingAddress: types.ShippingAddress{
			Name: "Asha Verma", Phone: "9876543210", Line1: "14 MG Road",
			City: "Pune", State: "Maharashtra", Pincode: "411001",
		},
		Version: 1,
		Items: []models.OrderItem{
			{SKU: "KUR-BLU-M", Qty: 2, UnitPricePaise: 74950, TotalPaise: 149900},
			{SKU: "TSH-BLK-L", Qty: 1, UnitPricePaise: 39900, TotalPaise: 39900},
		},
	}
}

func createdSession(order *models.Order) *models.PaymentSession {
	return &models.PaymentSession{
		ID:             uuid.New(),
		OrderID:        order.ID,
		GatewayOrderID: "order_gw_1",
		AmountPaise:    order.AmountPaise,
		Status:         enums.PaymentSessionStatusCreated,
	}
}

func newPaymentsService(t *testing.T, sessions *stubSessions, ordersRepo *stubOrdersRepo, dec *stubDecrementer, verifier stubVerifier, ob *stubOutbox) Service {
	t.Helper()
	svc, err := NewService(sessions, ordersRepo, stubTxRunner{}, ob, dec, verifier)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func verifiedInput() VerifyPaymentInput {
	return VerifyPaymentInput{GatewayOrderID: "order_gw_1", PaymentID: "pay_001", Signature: "sig"}
}

func TestVerifyPaymentHappyPath(t *testing.T) {
	order := pendingOrder()
	sessions := &stubSessions{session: createdSession(order)}
	ordersRepo := &stubOrdersRepo{order: order}
	dec := &stubDecrementer{}
	ob := &stubOutbox{}
	svc := newPaymentsService(t, sessions, ordersRepo, dec, stubVerifier{ok: true}, ob)

	if err := svc.VerifyPayment(context.Background(), verifiedInput()); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if sessions.updates["status"] != enums.PaymentSessionStatusPaid {
		t.Fatalf("session should be marked paid, got %+v", sessions.updates)
	}
	if sessions.updates["payment_ref"] != "pay_001" {
		t.Fatalf("payment ref not recorded: %+v", sessions.updates)
	}
	if ordersRepo.updates["status"] != enums.OrderStatusPlaced {
		t.Fatalf("order should advance to placed, got %+v", ordersRepo.updates)
	}
	if ordersRepo.updates["payment_confirmed"] != true {
		t.Fatalf("payment_confirmed should flip, got %+v", ordersRepo.updates)
	}
	if len(dec.requests) != 2 {
		t.Fatalf("expected stock decrement for both skus, got %+v", dec.requests)
	}
	if len(ob.events) != 2 {
		t.Fatalf("expected payment confirmed plus order placed, got %+v", ob.events)
	}
	if ob.events[0].EventType != enums.EventPaymentConfirmed || ob.events[1].EventType != enums.EventOrderPlaced {
		t.Fatalf("unexpected event types: %s, %s", ob.events[0].EventType, ob.events[1].EventType)
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	order := pendingOrder()
	sessions := &stubSessions{session: createdSession(order)}
	ordersRepo := &stubOrdersRepo{order: order}
	svc := newPaymentsService(t, sessions, ordersRepo, &stubDecrementer{}, stubVerifier{ok: false}, &stubOutbox{})

	err := svc.VerifyPayment(context.Background(), verifiedInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodePaymentVerification {
		t.Fatalf("expected payment verification error, got %v", err)
	}
	if sessions.updates != nil || ordersRepo.updates != nil {
		t.Fatalf("bad signature must not touch state")
	}
}

func TestVerifyPaymentReplayIsNoop(t *testing.T) {
	order := pendingOrder()
	session := createdSession(order)
	session.Status = enums.PaymentSessionStatusPaid
	sessions := &stubSessions{session: session}
	ordersRepo := &stubOrdersRepo{order: order}
	dec := &stubDecrementer{}
	ob := &stubOutbox{}
	svc := newPaymentsService(t, sessions, ordersRepo, dec, stubVerifier{ok: true}, ob)

	if err := svc.VerifyPayment(context.Background(), verifiedInput()); err != nil {
		t.Fatalf("replay should succeed: %v", err)
	}
	if len(dec.requests) != 0 || len(ob.events) != 0 || ordersRepo.updates != nil {
		t.Fatalf("replay must not repeat side effects")
	}
}

func TestConfirmFromGatewaySkipsSignatureCheck(t *testing.T) {
	order := pendingOrder()
	sessions := &stubSessions{session: createdSession(order)}
	ordersRepo := &stubOrdersRepo{order: order}
	dec := &stubDecrementer{}
	ob := &stubOutbox{}
	// The verifier would reject, but webhook confirms bypass it.
	svc := newPaymentsService(t, sessions, ordersRepo, dec, stubVerifier{ok: false}, ob)

	if err := svc.ConfirmFromGateway(context.Background(), "order_gw_1", "pay_007"); err != nil {
		t.Fatalf("ConfirmFromGateway: %v", err)
	}
	if sessions.updates["status"] != enums.PaymentSessionStatusPaid {
		t.Fatalf("session should be marked paid, got %+v", sessions.updates)
	}
	if sessions.updates["payment_ref"] != "pay_007" {
		t.Fatalf("payment ref not recorded: %+v", sessions.updates)
	}
	if len(ob.events) != 2 {
		t.Fatalf("expected payment confirmed plus order placed, got %+v", ob.events)
	}
}

func TestConfirmFromGatewayMissingFields(t *testing.T) {
	svc := newPaymentsService(t, &stubSessions{}, &stubOrdersRepo{}, &stubDecrementer{}, stubVerifier{ok: true}, &stubOutbox{})

	err := svc.ConfirmFromGateway(context.Background(), "", "pay_007")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyPaymentUnknownGatewayOrder(t *testing.T) {
	svc := newPaymentsService(t, &stubSessions{}, &stubOrdersRepo{}, &stubDecrementer{}, stubVerifier{ok: true}, &stubOutbox{})

	err := svc.VerifyPayment(context.Background(), verifiedInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestVerifyPaymentAfterExpiry(t *testing.T) {
	order := pendingOrder()
	order.Status = enums.OrderStatusCancelled
	sessions := &stubSessions{session: createdSession(order)}
	svc := newPaymentsService(t, sessions, &stubOrdersRepo{order: order}, &stubDecrementer{}, stubVerifier{ok: true}, &stubOutbox{})

	err := svc.VerifyPayment(context.Background(), verifiedInput())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestVerifyPaymentOutOfStock(t *testing.T) {
	order := pendingOrder()
	sessions := &stubSessions{session: createdSession(order)}
	ordersRepo := &stubOrdersRepo{order: order}
	dec := &stubDecrementer{fail: map[string]bool{"TSH-BLK-L": true}}
	ob := &stubOutbox{}
	svc := newPaymentsService(t, sessions, ordersRepo, dec, stubVerifier{ok: true}, ob)

	err := svc.VerifyPayment(context.Background(), verifiedInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if ordersRepo.updates != nil {
		t.Fatalf("order must stay in payment_pending when stock ran out")
	}
	if len(ob.events) != 0 {
		t.Fatalf("no events when verification aborts")
	}
}

func TestVerifyPaymentMissingFields(t *testing.T) {
	svc := newPaymentsService(t, &stubSessions{}, &stubOrdersRepo{}, &stubDecrementer{}, stubVerifier{ok: true}, &stubOutbox{})

	err := svc.VerifyPayment(context.Background(), VerifyPaymentInput{GatewayOrderID: "order_gw_1"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordFailure(t *testing.T) {
	order := pendingOrder()
	sessions := &stubSessions{session: createdSession(order)}
	ob := &stubOutbox{}
	svc := newPaymentsService(t, sessions, &stubOrdersRepo{order: order}, &stubDecrementer{}, stubVerifier{ok: true}, ob)

	if err := svc.RecordFailure(context.Background(), "order_gw_1", "card declined"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if sessions.updates["status"] != enums.PaymentSessionStatusFailed {
		t.Fatalf("session should be marked failed, got %+v", sessions.updates)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventPaymentFailed {
		t.Fatalf("expected payment failed event, got %+v", ob.events)
	}
}

func TestRecordFailureAfterPaidIsNoop(t *testing.T) {
	order := pendingOrder()
	session := createdSession(order)
	session.Status = enums.PaymentSessionStatusPaid
	sessions := &stubSessions{session: session}
	ob := &stubOutbox{}
	svc := newPaymentsService(t, sessions, &stubOrdersRepo{order: order}, &stubDecrementer{}, stubVerifier{ok: true}, ob)

	if err := svc.RecordFailure(context.Background(), "order_gw_1", "late failure"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if sessions.updates != nil || len(ob.events) != 0 {
		t.Fatalf("late failure must not override a paid session")
	}
}
