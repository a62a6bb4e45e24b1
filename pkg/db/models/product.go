package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
)

// Product is the catalog read model consulted at checkout. Prices are rupees
// as numeric; the paise snapshot on order items is derived at placement.
type Product struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title          string                `gorm:"column:title;not null"`
	Category       enums.ProductCategory `gorm:"column:category;type:product_category;not null"`
	Brand          *string               `gorm:"column:brand"`
	PriceRupees    decimal.Decimal       `gorm:"column:price_rupees;type:numeric(10,2);not null"`
	CompareAtPrice *decimal.Decimal      `gorm:"column:compare_at_price;type:numeric(10,2)"`
	IsActive       bool                  `gorm:"column:is_active;not null;default:true"`
	Inventory      []InventoryItem       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
