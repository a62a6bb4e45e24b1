package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

// Order is the customer order aggregate. Items, shipping address and money
// fields are immutable snapshots taken at creation; only status, payment and
// return bookkeeping change afterwards. Version backs the optimistic lock on
// every status write.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Status           enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'placed'"`
	PaymentMethod    enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentConfirmed bool                  `gorm:"column:payment_confirmed;not null;default:false"`
	SubtotalPaise    int64                 `gorm:"column:subtotal_paise;not null"`
	DeliveryFeePaise int64                 `gorm:"column:delivery_fee_paise;not null;default:0"`
	AmountPaise      int64                 `gorm:"column:amount_paise;not null"`
	ShippingAddress  types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	CancelledBy      *enums.CancelParty    `gorm:"column:cancelled_by;type:cancel_party"`
	CancelledAt      *time.Time            `gorm:"column:cancelled_at"`
	DeliveredAt      *time.Time            `gorm:"column:delivered_at"`
	PaidAt           *time.Time            `gorm:"column:paid_at"`
	Version          int64                 `gorm:"column:version;not null;default:1"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaymentSession   *PaymentSession       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ReturnRequest    *ReturnRequest        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
