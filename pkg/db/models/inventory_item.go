package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// InventoryItem tracks the stock counter per SKU. InStock is maintained in
// the same UPDATE that moves AvailableQty so readers never see the flag and
// the counter disagree.
type InventoryItem struct {
	SKU          string            `gorm:"column:sku;primaryKey"`
	ProductID    uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	Size         enums.ApparelSize `gorm:"column:size;type:apparel_size;not null"`
	AvailableQty int               `gorm:"column:available_qty;not null;default:0"`
	InStock      bool              `gorm:"column:in_stock;not null;default:false"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
