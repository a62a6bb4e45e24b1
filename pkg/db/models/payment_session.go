package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// PaymentSession tracks one gateway checkout session for an order. The
// gateway order id is unique so a replayed callback lands on the same row.
type PaymentSession struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID                  `gorm:"column:order_id;type:uuid;not null;index"`
	GatewayOrderID string                     `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	AmountPaise    int64                      `gorm:"column:amount_paise;not null"`
	Status         enums.PaymentSessionStatus `gorm:"column:status;type:payment_session_status;not null;default:'created'"`
	PaymentRef     *string                    `gorm:"column:payment_ref"`
	FailureReason  *string                    `gorm:"column:failure_reason"`
	VerifiedAt     *time.Time                 `gorm:"column:verified_at"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
