package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

// AdminOrderFilters describe the inputs supported by the admin orders list.
type AdminOrderFilters struct {
	Status        *enums.OrderStatus
	PaymentMethod *enums.PaymentMethod
	UserID        *uuid.UUID
	DateFrom      *time.Time
	DateTo        *time.Time
}

// OrderSummary exposes the aggregated fields returned in order lists.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountPaise   int64               `json:"amount_paise"`
	TotalItems    int                 `json:"total_items"`
	HasReturn     bool                `json:"has_return"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderItemView is the line item snapshot returned in order detail.
type OrderItemView struct {
	ProductID      uuid.UUID         `json:"product_id"`
	SKU            string            `json:"sku"`
	Title          string            `json:"title"`
	Size           enums.ApparelSize `json:"size"`
	Qty            int               `json:"qty"`
	UnitPricePaise int64             `json:"unit_price_paise"`
	TotalPaise     int64             `json:"total_paise"`
}

// ReturnEventView is one timeline entry on the order's return request.
type ReturnEventView struct {
	FromStatus *enums.ReturnStatus `json:"from_status,omitempty"`
	ToStatus   enums.ReturnStatus  `json:"to_status"`
	Actor      enums.UserRole      `json:"actor"`
	Note       *string             `json:"note,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ReturnView summarizes the return request attached to an order.
type ReturnView struct {
	ID          uuid.UUID          `json:"id"`
	Type        enums.ReturnType   `json:"type"`
	Status      enums.ReturnStatus `json:"status"`
	Reason      string             `json:"reason"`
	RequestedAt time.Time          `json:"requested_at"`
	RefundedAt  *time.Time         `json:"refunded_at,omitempty"`
	Timeline    []ReturnEventView  `json:"timeline"`
}

// OrderDetailView is the full aggregate returned by detail endpoints.
type OrderDetailView struct {
	ID               uuid.UUID             `json:"id"`
	UserID           uuid.UUID             `json:"user_id"`
	Status           enums.OrderStatus     `json:"status"`
	PaymentMethod    enums.PaymentMethod   `json:"payment_method"`
	PaymentConfirmed bool                  `json:"payment_confirmed"`
	SubtotalPaise    int64                 `json:"subtotal_paise"`
	DeliveryFeePaise int64                 `json:"delivery_fee_paise"`
	AmountPaise      int64                 `json:"amount_paise"`
	ShippingAddress  types.ShippingAddress `json:"shipping_address"`
	CancelledBy      *enums.CancelParty    `json:"cancelled_by,omitempty"`
	CancelledAt      *time.Time            `json:"cancelled_at,omitempty"`
	DeliveredAt      *time.Time            `json:"delivered_at,omitempty"`
	PaidAt           *time.Time            `json:"paid_at,omitempty"`
	Items            []OrderItemView       `json:"items"`
	Return           *ReturnView           `json:"return,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

func buildDetailView(order *models.Order) *OrderDetailView {
	view := &OrderDetailView{
		ID:               order.ID,
		UserID:           order.UserID,
		Status:           order.Status,
		PaymentMethod:    order.PaymentMethod,
		PaymentConfirmed: order.PaymentConfirmed,
		SubtotalPaise:    order.SubtotalPaise,
		DeliveryFeePaise: order.DeliveryFeePaise,
		AmountPaise:      order.AmountPaise,
		ShippingAddress:  order.ShippingAddress,
		CancelledBy:      order.CancelledBy,
		CancelledAt:      order.CancelledAt,
		DeliveredAt:      order.DeliveredAt,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, OrderItemView{
			ProductID:      item.ProductID,
			SKU:            item.SKU,
			Title:          item.Title,
			Size:           item.Size,
			Qty:            item.Qty,
			UnitPricePaise: item.UnitPricePaise,
			TotalPaise:     item.TotalPaise,
		})
	}
	if rr := order.ReturnRequest; rr != nil {
		ret := &ReturnView{
			ID:          rr.ID,
			Type:        rr.Type,
			Status:      rr.Status,
			Reason:      rr.Reason,
			RequestedAt: rr.RequestedAt,
			RefundedAt:  rr.RefundedAt,
		}
		for _, ev := range rr.Events {
			ret.Timeline = append(ret.Timeline, ReturnEventView{
				FromStatus: ev.FromStatus,
				ToStatus:   ev.ToStatus,
				Actor:      ev.Actor,
				Note:       ev.Note,
				CreatedAt:  ev.CreatedAt,
			})
		}
		view.Return = ret
	}
	return view
}

// AdvanceStatusInput captures an admin moving an order one step forward.
type AdvanceStatusInput struct {
	OrderID     uuid.UUID
	ToStatus    enums.OrderStatus
	ActorUserID uuid.UUID
}

// CancelInput captures either party cancelling an order.
type CancelInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	Reason      string
}
