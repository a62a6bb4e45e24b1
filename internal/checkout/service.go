package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/internal/catalog"
	"github.com/pratikdungano/vastrahub-backend/internal/inventory"
	"github.com/pratikdungano/vastrahub-backend/internal/orders"
	"github.com/pratikdungano/vastrahub-backend/pkg/config"
	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/gateway"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox"
	"github.com/pratikdungano/vastrahub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockDecrementer takes stock inside the placement transaction.
type StockDecrementer interface {
	Decrement(ctx context.Context, tx *gorm.DB, requests []inventory.DecrementRequest) ([]inventory.DecrementResult, error)
}

type ledgerDecrementer struct{}

func (ledgerDecrementer) Decrement(ctx context.Context, tx *gorm.DB, requests []inventory.DecrementRequest) ([]inventory.DecrementResult, error) {
	return inventory.DecrementStock(ctx, tx, requests)
}

// GatewaySessions opens payment sessions for online orders.
type GatewaySessions interface {
	CreateOrder(ctx context.Context, params gateway.OrderCreateParams) (*gateway.GatewayOrder, error)
	NewReceipt(prefix string) string
	KeyID() string
}

// PaymentSessionWriter persists the local session row inside the
// placement transaction.
type PaymentSessionWriter interface {
	CreateSession(ctx context.Context, tx *gorm.DB, session *models.PaymentSession) error
}

type gormSessionWriter struct{}

func (gormSessionWriter) CreateSession(ctx context.Context, tx *gorm.DB, session *models.PaymentSession) error {
	return tx.WithContext(ctx).Create(session).Error
}

// Service executes checkout orchestration: snapshot prices, take stock for
// COD, open a gateway session for online payment.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error)
}

type service struct {
	tx         txRunner
	ordersRepo orders.Repository
	catalog    catalog.Repository
	stock      StockDecrementer
	gateway    GatewaySessions
	sessions   PaymentSessionWriter
	outbox     outboxPublisher
	cfg        config.OrdersConfig
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	catalogRepo catalog.Repository,
	stock StockDecrementer,
	gw GatewaySessions,
	sessions PaymentSessionWriter,
	publisher outboxPublisher,
	cfg config.OrdersConfig,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if stock == nil {
		stock = ledgerDecrementer{}
	}
	if gw == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if sessions == nil {
		sessions = gormSessionWriter{}
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:         tx,
		ordersRepo: ordersRepo,
		catalog:    catalogRepo,
		stock:      stock,
		gateway:    gw,
		sessions:   sessions,
		outbox:     publisher,
		cfg:        cfg,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	skus := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		skus = append(skus, item.SKU)
	}
	snapshots, err := s.catalog.FindForCheckout(ctx, skus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog snapshots")
	}

	lineItems, subtotal, err := buildLineItems(input.Items, snapshots)
	if err != nil {
		return nil, err
	}

	deliveryFee := s.cfg.DeliveryFeePaise
	if subtotal >= s.cfg.FreeDeliveryOver {
		deliveryFee = 0
	}
	amount := subtotal + deliveryFee

	order := &models.Order{
		UserID:           userID,
		PaymentMethod:    input.PaymentMethod,
		SubtotalPaise:    subtotal,
		DeliveryFeePaise: deliveryFee,
		AmountPaise:      amount,
		ShippingAddress:  input.Address,
		Version:          1,
		Items:            lineItems,
	}

	if input.PaymentMethod == enums.PaymentMethodCOD {
		return s.placeCOD(ctx, order)
	}
	return s.placeOnline(ctx, order)
}

// placeCOD settles payment at creation: stock is taken and the order starts
// at placed in a single transaction.
func (s *service) placeCOD(ctx context.Context, order *models.Order) (*PlaceOrderResult, error) {
	order.Status = enums.OrderStatusPlaced
	order.PaymentConfirmed = true

	var result *PlaceOrderResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.takeStock(ctx, tx, order.Items); err != nil {
			return err
		}

		repo := s.ordersRepo.WithTx(tx)
		created, err := repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		if err := s.emitPlaced(ctx, tx, created); err != nil {
			return err
		}

		result = &PlaceOrderResult{
			OrderID:          created.ID,
			Status:           created.Status,
			SubtotalPaise:    created.SubtotalPaise,
			DeliveryFeePaise: created.DeliveryFeePaise,
			AmountPaise:      created.AmountPaise,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// placeOnline persists the order in payment_pending without touching stock;
// the decrement happens only after the gateway callback verifies. The
// gateway session opens before the transaction so a failed commit leaves
// nothing but an unused session on the gateway side.
func (s *service) placeOnline(ctx context.Context, order *models.Order) (*PlaceOrderResult, error) {
	order.Status = enums.OrderStatusPaymentPending
	order.PaymentConfirmed = false

	receipt := s.gateway.NewReceipt("vh")
	session, err := s.gateway.CreateOrder(ctx, gateway.OrderCreateParams{
		AmountPaise: order.AmountPaise,
		Receipt:     receipt,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiate gateway payment")
	}

	var result *PlaceOrderResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)
		created, err := repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		ps := &models.PaymentSession{
			OrderID:        created.ID,
			GatewayOrderID: session.ID,
			AmountPaise:    created.AmountPaise,
			Status:         enums.PaymentSessionStatusCreated,
		}
		if err := s.sessions.CreateSession(ctx, tx, ps); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment session")
		}

		result = &PlaceOrderResult{
			OrderID:          created.ID,
			Status:           created.Status,
			SubtotalPaise:    created.SubtotalPaise,
			DeliveryFeePaise: created.DeliveryFeePaise,
			AmountPaise:      created.AmountPaise,
			Gateway: &GatewaySession{
				GatewayOrderID: session.ID,
				KeyID:          s.gateway.KeyID(),
				AmountPaise:    created.AmountPaise,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) takeStock(ctx context.Context, tx *gorm.DB, items []models.OrderItem) error {
	requests := make([]inventory.DecrementRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, inventory.DecrementRequest{SKU: item.SKU, Qty: item.Qty})
	}
	results, err := s.stock.Decrement(ctx, tx, requests)
	if err != nil {
		return err
	}
	if failed := inventory.FailedSKUs(results); len(failed) > 0 {
		// Returning the error rolls back every decrement in this request.
		return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
			"skus": failed,
		})
	}
	return nil
}

func (s *service) emitPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: enums.UserRoleCustomer.String()},
		Data: payloads.OrderPlacedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			AmountPaise:   order.AmountPaise,
			ItemCount:     len(order.Items),
			PlacedAt:      time.Now(),
		},
	})
}

func validateInput(input PlaceOrderInput) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	seen := make(map[string]bool, len(input.Items))
	for _, item := range input.Items {
		sku := strings.TrimSpace(item.SKU)
		if sku == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "item sku required")
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity for sku %s", sku))
		}
		if seen[sku] {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("duplicate sku %s", sku))
		}
		seen[sku] = true
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if err := input.Address.Validate(); err != nil {
		return err
	}
	return nil
}

func buildLineItems(items []PlaceOrderItem, snapshots map[string]catalog.CheckoutSKU) ([]models.OrderItem, int64, error) {
	lineItems := make([]models.OrderItem, 0, len(items))
	var subtotal int64
	var missing, short []string
	for _, item := range items {
		snap, ok := snapshots[item.SKU]
		if !ok || !snap.IsActive {
			missing = append(missing, item.SKU)
			continue
		}
		if item.Qty > snap.AvailableQty {
			short = append(short, item.SKU)
			continue
		}
		unitPaise := snap.PriceRupees.Mul(decimal.NewFromInt(100)).IntPart()
		total := unitPaise * int64(item.Qty)
		subtotal += total
		lineItems = append(lineItems, models.OrderItem{
			ProductID:      snap.ProductID,
			SKU:            snap.SKU,
			Title:          snap.Title,
			Size:           snap.Size,
			Qty:            item.Qty,
			UnitPricePaise: unitPaise,
			TotalPaise:     total,
		})
	}
	if len(missing) > 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown or inactive skus").WithDetails(map[string]any{
			"skus": missing,
		})
	}
	if len(short) > 0 {
		return nil, 0, pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").WithDetails(map[string]any{
			"skus": short,
		})
	}
	return lineItems, subtotal, nil
}
