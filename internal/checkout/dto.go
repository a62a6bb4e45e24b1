package checkout

import (
	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

// PlaceOrderItem is one requested line in a checkout.
type PlaceOrderItem struct {
	SKU string
	Qty int
}

// PlaceOrderInput carries everything a checkout needs.
type PlaceOrderInput struct {
	Items         []PlaceOrderItem
	Address       types.ShippingAddress
	PaymentMethod enums.PaymentMethod
}

// GatewaySession is returned for online orders so the storefront can open
// the payment widget. KeyID is the gateway's public key.
type GatewaySession struct {
	GatewayOrderID string `json:"gateway_order_id"`
	KeyID          string `json:"key_id"`
	AmountPaise    int64  `json:"amount_paise"`
}

// PlaceOrderResult reports the committed order. Gateway is nil for COD.
type PlaceOrderResult struct {
	OrderID          uuid.UUID         `json:"order_id"`
	Status           enums.OrderStatus `json:"status"`
	SubtotalPaise    int64             `json:"subtotal_paise"`
	DeliveryFeePaise int64             `json:"delivery_fee_paise"`
	AmountPaise      int64             `json:"amount_paise"`
	Gateway          *GatewaySession   `json:"gateway,omitempty"`
}
