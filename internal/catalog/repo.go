package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
)

// CheckoutSKU is the catalog snapshot checkout reads per line item. Price is
// rupees; the paise conversion happens at order placement.
type CheckoutSKU struct {
	SKU          string
	ProductID    uuid.UUID
	Title        string
	Size         enums.ApparelSize
	PriceRupees  decimal.Decimal
	AvailableQty int
	IsActive     bool
}

// ProductSummary is the storefront listing row.
type ProductSummary struct {
	ID          uuid.UUID             `json:"id"`
	Title       string                `json:"title"`
	Category    enums.ProductCategory `json:"category"`
	Brand       *string               `json:"brand,omitempty"`
	PriceRupees decimal.Decimal       `json:"price_rupees"`
	InStock     bool                  `json:"in_stock"`
	CreatedAt   time.Time             `json:"created_at"`
}

// ProductList wraps a product page plus the next cursor.
type ProductList struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ListFilters narrows the storefront listing.
type ListFilters struct {
	Category *enums.ProductCategory
}

// Repository reads the product catalog. Writes happen through the admin
// tooling outside this service; checkout only consumes snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForCheckout(ctx context.Context, skus []string) (map[string]CheckoutSKU, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindForCheckout(ctx context.Context, skus []string) (map[string]CheckoutSKU, error) {
	if len(skus) == 0 {
		return map[string]CheckoutSKU{}, nil
	}

	var items []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("sku IN ?", skus).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
	}
	var products []models.Product
	if len(productIDs) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", productIDs).Find(&products).Error; err != nil {
			return nil, err
		}
	}
	productsByID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	result := make(map[string]CheckoutSKU, len(items))
	for _, item := range items {
		product, ok := productsByID[item.ProductID]
		if !ok {
			continue
		}
		result[item.SKU] = CheckoutSKU{
			SKU:          item.SKU,
			ProductID:    item.ProductID,
			Title:        product.Title,
			Size:         item.Size,
			PriceRupees:  product.PriceRupees,
			AvailableQty: item.AvailableQty,
			IsActive:     product.IsActive,
		}
	}
	return result, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Inventory").
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) ListActive(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if filters.Category != nil {
		query = query.Where("category = ?", *filters.Category)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := query.Preload("Inventory").
		Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	list := &ProductList{}
	if len(rows) > normalized {
		next := rows[normalized]
		rows = rows[:normalized]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID})
	}

	list.Products = make([]ProductSummary, 0, len(rows))
	for _, p := range rows {
		inStock := false
		for _, item := range p.Inventory {
			if item.InStock {
				inStock = true
				break
			}
		}
		list.Products = append(list.Products, ProductSummary{
			ID:          p.ID,
			Title:       p.Title,
			Category:    p.Category,
			Brand:       p.Brand,
			PriceRupees: p.PriceRupees,
			InStock:     inStock,
			CreatedAt:   p.CreatedAt,
		})
	}
	return list, nil
}
