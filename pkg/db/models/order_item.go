package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// OrderItem captures the snapshot of each line within an order. Price and
// title are copied from the catalog at placement so later edits never leak in.
type OrderItem struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	SKU            string            `gorm:"column:sku;not null"`
	Title          string            `gorm:"column:title;not null"`
	Size           enums.ApparelSize `gorm:"column:size;type:apparel_size;not null"`
	Qty            int               `gorm:"column:qty;not null"`
	UnitPricePaise int64             `gorm:"column:unit_price_paise;not null"`
	TotalPaise     int64             `gorm:"column:total_paise;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}
