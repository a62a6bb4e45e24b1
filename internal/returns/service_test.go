package returns

import (
	"context"
	"testing"
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
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubReturnsRepo struct {
	request *models.ReturnRequest
	updates map[string]any
	events  []*models.ReturnEvent
}

func (s *stubReturnsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubReturnsRepo) Create(ctx context.Context, request *models.ReturnRequest) (*models.ReturnRequest, error) {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	s.request = request
	return request, nil
}

func (s *stubReturnsRepo) FindByID(ctx context.Context, requestID uuid.UUID) (*models.ReturnRequest, error) {
	if s.request == nil || s.request.ID != requestID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.request
	return &copied, nil
}

func (s *stubReturnsRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.ReturnRequest, error) {
	if s.request == nil || s.request.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.request
	return &copied, nil
}

func (s *stubReturnsRepo) UpdateStatus(ctx context.Context, requestID uuid.UUID, from enums.ReturnStatus, updates map[string]any) error {
	if s.request == nil || s.request.ID != requestID || s.request.Status != from {
		return ErrStatusChanged
	}
	s.updates = updates
	if status, ok := updates["status"].(enums.ReturnStatus); ok {
		s.request.Status = status
	}
	return nil
}

func (s *stubReturnsRepo) AppendEvent(ctx context.Context, event *models.ReturnEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubReturnsRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ReturnList, error) {
	return &ReturnList{}, nil
}

type stubOrdersRepo struct {
	order *models.Order
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
	return nil
}

func (s *stubOrdersRepo) FindPaymentPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	return nil, nil
}

type stubSessions struct {
	session *models.PaymentSession
}

func (s *stubSessions) WithTx(tx *gorm.DB) payments.Repository { return s }

func (s *stubSessions) CreateSession(ctx context.Context, session *models.PaymentSession) error {
	s.session = session
	return nil
}

func (s *stubSessions) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.PaymentSession, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubSessions) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.PaymentSession, error) {
	if s.session == nil || s.session.OrderID != orderID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.session
	return &copied, nil
}

func (s *stubSessions) UpdateSession(ctx context.Context, sessionID uuid.UUID, updates map[string]any) error {
	return nil
}

type stubRestorer struct {
	requests []inventory.RestoreRequest
}

func (s *stubRestorer) Restore(ctx context.Context, tx *gorm.DB, requests []inventory.RestoreRequest) error {
	s.requests = append(s.requests, requests...)
	return nil
}

type stubRefunder struct {
	calls []string
	err   error
}

func (s *stubRefunder) CreateRefund(ctx context.Context, paymentID string, amountPaise int64, notes map[string]string) (*gateway.Refund, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.calls = append(s.calls, paymentID)
	return &gateway.Refund{ID: "rfnd_001", PaymentID: paymentID, AmountPaise: amountPaise, Status: "processed"}, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func deliveredOrder(method enums.PaymentMethod, deliveredAgo time.Duration) *models.Order {
	deliveredAt := time.Now().Add(-deliveredAgo)
	return &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusDelivered,
		PaymentMethod: method,
		AmountPaise:   44800,
		DeliveredAt:   &deliveredAt,
		Version:       3,
		Items: []models.OrderItem{
			{SKU: "TSH-BLK-L", Qty: 1, UnitPricePaise: 39900, TotalPaise: 39900},
		},
	}
}

type fixture struct {
	repo     *stubReturnsRepo
	orders   *stubOrdersRepo
	sessions *stubSessions
	restorer *stubRestorer
	refunder *stubRefunder
	outbox   *stubOutbox
	svc      Service
}

func newFixture(t *testing.T, order *models.Order) *fixture {
	t.Helper()
	f := &fixture{
		repo:     &stubReturnsRepo{},
		orders:   &stubOrdersRepo{order: order},
		sessions: &stubSessions{},
		restorer: &stubRestorer{},
		refunder: &stubRefunder{},
		outbox:   &stubOutbox{},
	}
	svc, err := NewService(f.repo, f.orders, f.sessions, stubTxRunner{}, f.outbox, f.restorer, f.refunder, config.OrdersConfig{
		ReturnWindow:    168 * time.Hour,
		MaxReturnPhotos: 5,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func codRoute() *types.RefundRoute {
	return &types.RefundRoute{Type: enums.RefundRouteUPI, UPIID: "asha@upi"}
}

func requestInput(order *models.Order) RequestReturnInput {
	return RequestReturnInput{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Type:        enums.ReturnTypeReturn,
		Reason:      "size runs small",
		Photos:      []string{"https://cdn.example/r1.jpg"},
		RefundRoute: codRoute(),
	}
}

func TestRequestReturnCOD(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)

	request, err := f.svc.RequestReturn(context.Background(), requestInput(order))
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	if request.Status != enums.ReturnStatusRequested {
		t.Fatalf("expected requested, got %s", request.Status)
	}
	if request.RefundRoute == nil || request.RefundRoute.UPIID != "asha@upi" {
		t.Fatalf("refund route not captured: %+v", request.RefundRoute)
	}
	if len(f.repo.events) != 1 || f.repo.events[0].ToStatus != enums.ReturnStatusRequested {
		t.Fatalf("expected requested timeline event, got %+v", f.repo.events)
	}
	if f.repo.events[0].FromStatus != nil {
		t.Fatalf("opening event must have no from status")
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventReturnRequested {
		t.Fatalf("expected return requested event, got %+v", f.outbox.events)
	}
}

func TestRequestReturnCODWithoutRoute(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)

	input := requestInput(order)
	input.RefundRoute = nil
	_, err := f.svc.RequestReturn(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeMissingRefundRoute {
		t.Fatalf("expected missing refund route, got %v", err)
	}
}

func TestRequestReturnCODReplacementWithoutRoute(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)

	input := requestInput(order)
	input.Type = enums.ReturnTypeReplacement
	input.RefundRoute = nil
	_, err := f.svc.RequestReturn(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeMissingRefundRoute {
		t.Fatalf("replacements on cod orders still need a payout route, got %v", err)
	}
}

func TestRequestReturnOnlineIgnoresRoute(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodOnline, 24*time.Hour)
	f := newFixture(t, order)

	request, err := f.svc.RequestReturn(context.Background(), requestInput(order))
	if err != nil {
		t.Fatalf("RequestReturn: %v", err)
	}
	if request.RefundRoute != nil {
		t.Fatalf("gateway orders must not store a payout route")
	}
}

func TestRequestReturnWindowElapsed(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 200*time.Hour)
	f := newFixture(t, order)

	_, err := f.svc.RequestReturn(context.Background(), requestInput(order))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReturnNotEligible {
		t.Fatalf("expected not eligible, got %v", err)
	}
}

func TestRequestReturnUndeliveredOrder(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	order.Status = enums.OrderStatusShipped
	f := newFixture(t, order)

	_, err := f.svc.RequestReturn(context.Background(), requestInput(order))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReturnNotEligible {
		t.Fatalf("expected not eligible, got %v", err)
	}
}

func TestRequestReturnSecondRequestRejected(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	f.repo.request = &models.ReturnRequest{ID: uuid.New(), OrderID: order.ID, Status: enums.ReturnStatusApproved}

	_, err := f.svc.RequestReturn(context.Background(), requestInput(order))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeReturnNotEligible {
		t.Fatalf("expected not eligible, got %v", err)
	}
}

func TestRequestReturnWrongOwner(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)

	input := requestInput(order)
	input.UserID = uuid.New()
	_, err := f.svc.RequestReturn(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequestReturnTooManyPhotos(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)

	input := requestInput(order)
	input.Photos = make([]string, 6)
	_, err := f.svc.RequestReturn(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func seededReturn(f *fixture, order *models.Order, status enums.ReturnStatus) *models.ReturnRequest {
	request := &models.ReturnRequest{
		ID:      uuid.New(),
		OrderID: order.ID,
		Type:    enums.ReturnTypeReturn,
		Status:  status,
		Reason:  "size runs small",
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		request.RefundRoute = codRoute()
	}
	f.repo.request = request
	return request
}

func TestActOnReturnApprove(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusRequested)

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusApproved, ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ActOnReturn: %v", err)
	}
	if f.repo.request.Status != enums.ReturnStatusApproved {
		t.Fatalf("expected approved, got %s", f.repo.request.Status)
	}
	if len(f.repo.events) != 1 || *f.repo.events[0].FromStatus != enums.ReturnStatusRequested {
		t.Fatalf("expected timeline event from requested, got %+v", f.repo.events)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventReturnStatusChanged {
		t.Fatalf("expected status changed event, got %+v", f.outbox.events)
	}
	if len(f.restorer.requests) != 0 {
		t.Fatalf("approval must not touch stock")
	}
}

func TestActOnReturnSkippedStepRejected(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusRequested)

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusReceived, ActorUserID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestActOnReturnRejectAfterPickupScheduled(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusPickupScheduled)

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusRejected, ActorUserID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("rejection is only legal before logistics, got %v", err)
	}
}

func TestActOnReturnReceivedRestoresStock(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusPicked)

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusReceived, ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ActOnReturn: %v", err)
	}
	if len(f.restorer.requests) != 1 || f.restorer.requests[0].SKU != "TSH-BLK-L" {
		t.Fatalf("expected stock restore at received, got %+v", f.restorer.requests)
	}
}

func TestActOnReturnRefundCOD(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusReceived)

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusRefunded, ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ActOnReturn: %v", err)
	}
	if len(f.refunder.calls) != 0 {
		t.Fatalf("cod refunds do not go through the gateway")
	}
	if _, ok := f.repo.updates["refunded_at"]; !ok {
		t.Fatalf("refunded_at should be stamped, got %+v", f.repo.updates)
	}
	if len(f.outbox.events) != 2 {
		t.Fatalf("expected status changed plus refund initiated, got %+v", f.outbox.events)
	}
	if f.outbox.events[1].EventType != enums.EventRefundInitiated {
		t.Fatalf("expected refund initiated, got %s", f.outbox.events[1].EventType)
	}
}

func TestActOnReturnRefundOnline(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodOnline, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusReceived)
	paymentRef := "pay_001"
	f.sessions.session = &models.PaymentSession{
		ID: uuid.New(), OrderID: order.ID, GatewayOrderID: "order_gw_1",
		AmountPaise: order.AmountPaise, Status: enums.PaymentSessionStatusPaid, PaymentRef: &paymentRef,
	}

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusRefunded, ActorUserID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ActOnReturn: %v", err)
	}
	if len(f.refunder.calls) != 1 || f.refunder.calls[0] != "pay_001" {
		t.Fatalf("expected gateway refund against pay_001, got %+v", f.refunder.calls)
	}
}

func TestActOnReturnRefundGatewayFailure(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodOnline, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusReceived)
	paymentRef := "pay_001"
	f.sessions.session = &models.PaymentSession{
		ID: uuid.New(), OrderID: order.ID, GatewayOrderID: "order_gw_1",
		AmountPaise: order.AmountPaise, Status: enums.PaymentSessionStatusPaid, PaymentRef: &paymentRef,
	}
	f.refunder.err = pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusRefunded, ActorUserID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(f.outbox.events) != 0 {
		t.Fatalf("failed refund must not emit events")
	}
}

// staleReadRepo hands every reader the same pre-transition snapshot, the way
// two admin requests racing under read committed both see the row before
// either commits.
type staleReadRepo struct {
	*stubReturnsRepo
	snapshot models.ReturnRequest
}

func (s *staleReadRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *staleReadRepo) FindByID(ctx context.Context, requestID uuid.UUID) (*models.ReturnRequest, error) {
	if s.snapshot.ID != requestID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := s.snapshot
	return &copied, nil
}

func TestActOnReturnConcurrentRefundSingleGatewayCall(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodOnline, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusReceived)
	paymentRef := "pay_001"
	f.sessions.session = &models.PaymentSession{
		ID: uuid.New(), OrderID: order.ID, GatewayOrderID: "order_gw_1",
		AmountPaise: order.AmountPaise, Status: enums.PaymentSessionStatusPaid, PaymentRef: &paymentRef,
	}

	stale := &staleReadRepo{stubReturnsRepo: f.repo, snapshot: *request}
	svc, err := NewService(stale, f.orders, f.sessions, stubTxRunner{}, f.outbox, f.restorer, f.refunder, config.OrdersConfig{
		ReturnWindow:    168 * time.Hour,
		MaxReturnPhotos: 5,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	input := ActionInput{ReturnID: request.ID, ToStatus: enums.ReturnStatusRefunded, ActorUserID: uuid.New()}
	if err := svc.ActOnReturn(context.Background(), input); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	err = svc.ActOnReturn(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("second refund should conflict, got %v", err)
	}
	if len(f.refunder.calls) != 1 {
		t.Fatalf("gateway refund must fire exactly once, got %d", len(f.refunder.calls))
	}
}

func TestActOnReturnSameStatusRejected(t *testing.T) {
	order := deliveredOrder(enums.PaymentMethodCOD, 24*time.Hour)
	f := newFixture(t, order)
	request := seededReturn(f, order, enums.ReturnStatusApproved)

	err := f.svc.ActOnReturn(context.Background(), ActionInput{
		ReturnID: request.ID, ToStatus: enums.ReturnStatusApproved, ActorUserID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInvalidTransition {
		t.Fatalf("repeating a step must be rejected, got %v", err)
	}
	if len(f.repo.events) != 0 || len(f.outbox.events) != 0 {
		t.Fatalf("rejected step must not land events")
	}
}

func TestReturnTransitionsTable(t *testing.T) {
	cases := []struct {
		from, to enums.ReturnStatus
		want     bool
	}{
		{enums.ReturnStatusRequested, enums.ReturnStatusApproved, true},
		{enums.ReturnStatusRequested, enums.ReturnStatusRejected, true},
		{enums.ReturnStatusApproved, enums.ReturnStatusRejected, true},
		{enums.ReturnStatusApproved, enums.ReturnStatusPickupScheduled, true},
		{enums.ReturnStatusPickupScheduled, enums.ReturnStatusPicked, true},
		{enums.ReturnStatusPicked, enums.ReturnStatusReceived, true},
		{enums.ReturnStatusReceived, enums.ReturnStatusRefunded, true},
		{enums.ReturnStatusPicked, enums.ReturnStatusRejected, false},
		{enums.ReturnStatusRequested, enums.ReturnStatusRefunded, false},
		{enums.ReturnStatusRefunded, enums.ReturnStatusApproved, false},
		{enums.ReturnStatusRejected, enums.ReturnStatusApproved, false},
	}
	for _, tc := range cases {
		if got := CanAdvance(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanAdvance(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}
