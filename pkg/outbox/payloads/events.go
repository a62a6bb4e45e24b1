package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// OrderPlacedEvent signals a newly committed order with stock decremented.
type OrderPlacedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	AmountPaise   int64               `json:"amount_paise"`
	ItemCount     int                 `json:"item_count"`
	PlacedAt      time.Time           `json:"placed_at"`
}

// OrderStatusChangedEvent is emitted on every forward status transition.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// OrderCancelledEvent is emitted whenever an order reaches cancelled,
// whichever party pulled the trigger.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	UserID      uuid.UUID         `json:"user_id"`
	CancelledBy enums.CancelParty `json:"cancelled_by"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	CancelledAt time.Time         `json:"cancelled_at"`
	Reason      string            `json:"reason,omitempty"`
}

// OrderPaymentExpiredEvent reports a gateway order abandoned before payment.
type OrderPaymentExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// PaymentConfirmedEvent is emitted once a gateway payment verifies.
type PaymentConfirmedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	UserID         uuid.UUID `json:"user_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	PaymentRef     string    `json:"payment_ref"`
	AmountPaise    int64     `json:"amount_paise"`
	PaidAt         time.Time `json:"paid_at"`
}

// PaymentFailedEvent is emitted when the gateway reports a failed attempt.
type PaymentFailedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	UserID         uuid.UUID `json:"user_id"`
	GatewayOrderID string    `json:"gateway_order_id"`
	Reason         string    `json:"reason,omitempty"`
}

// ReturnRequestedEvent signals a customer opened a return.
type ReturnRequestedEvent struct {
	ReturnRequestID uuid.UUID        `json:"return_request_id"`
	OrderID         uuid.UUID        `json:"order_id"`
	UserID          uuid.UUID        `json:"user_id"`
	Type            enums.ReturnType `json:"type"`
	Reason          string           `json:"reason"`
	RequestedAt     time.Time        `json:"requested_at"`
}

// ReturnStatusChangedEvent is emitted on every return workflow transition.
type ReturnStatusChangedEvent struct {
	ReturnRequestID uuid.UUID          `json:"return_request_id"`
	OrderID         uuid.UUID          `json:"order_id"`
	UserID          uuid.UUID          `json:"user_id"`
	FromStatus      enums.ReturnStatus `json:"from_status"`
	ToStatus        enums.ReturnStatus `json:"to_status"`
	ChangedAt       time.Time          `json:"changed_at"`
}

// RefundInitiatedEvent carries enough for finance to reconcile the payout.
type RefundInitiatedEvent struct {
	ReturnRequestID uuid.UUID              `json:"return_request_id"`
	OrderID         uuid.UUID              `json:"order_id"`
	UserID          uuid.UUID              `json:"user_id"`
	AmountPaise     int64                  `json:"amount_paise"`
	RouteType       *enums.RefundRouteType `json:"route_type,omitempty"`
	GatewayRefund   bool                   `json:"gateway_refund"`
	InitiatedAt     time.Time              `json:"initiated_at"`
}
