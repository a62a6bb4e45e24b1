package inventory

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
)

// DecrementRequest asks for a stock decrement on one SKU.
type DecrementRequest struct {
	SKU string
	Qty int
}

// DecrementResult reports the outcome for one SKU. Decremented is false when
// the row had fewer units than requested; Reason carries the detail.
type DecrementResult struct {
	SKU         string
	Decremented bool
	Reason      string
}

// RestoreRequest gives stock back for one SKU.
type RestoreRequest struct {
	SKU string
	Qty int
}

// DecrementStock atomically takes stock for each SKU inside the supplied
// transaction. The guard `available_qty >= qty` and the in_stock flag move in
// the same UPDATE, so concurrent placements can never overdraw a counter or
// leave the flag stale. A failed SKU does not stop the loop; the caller
// inspects the results and rolls the transaction back for all-or-nothing
// semantics.
func DecrementStock(ctx context.Context, tx *gorm.DB, requests []DecrementRequest) ([]DecrementResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}
	for _, req := range requests {
		if req.SKU == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required for stock decrement")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for sku %s", req.Qty, req.SKU))
		}
	}

	results := make([]DecrementResult, 0, len(requests))
	for _, req := range requests {
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty - ?,
				in_stock = available_qty - ? > 0,
				updated_at = CURRENT_TIMESTAMP
			WHERE sku = ? AND available_qty >= ?
		`, req.Qty, req.Qty, req.SKU, req.Qty)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}

		result := DecrementResult{SKU: req.SKU, Decremented: res.RowsAffected == 1}
		if !result.Decremented {
			result.Reason = "insufficient stock"
		}
		results = append(results, result)
	}
	return results, nil
}

// RestoreStock gives units back after a cancellation or an inspected return.
// Callers guarantee at-most-once invocation per triggering event through the
// order status and return timeline; the ledger itself does not deduplicate.
func RestoreStock(ctx context.Context, tx *gorm.DB, requests []RestoreRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	for _, req := range requests {
		if req.SKU == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "sku required for stock restore")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid quantity %d for sku %s", req.Qty, req.SKU))
		}
	}

	for _, req := range requests {
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_items
			SET available_qty = available_qty + ?,
				in_stock = TRUE,
				updated_at = CURRENT_TIMESTAMP
			WHERE sku = ?
		`, req.Qty, req.SKU)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown sku %s", req.SKU))
		}
	}
	return nil
}

// FailedSKUs collects the SKUs that could not be decremented.
func FailedSKUs(results []DecrementResult) []string {
	var skus []string
	for _, r := range results {
		if !r.Decremented {
			skus = append(skus, r.SKU)
		}
	}
	return skus
}
