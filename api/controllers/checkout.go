package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/api/middleware"
	"github.com/pratikdungano/vastrahub-backend/api/responses"
	"github.com/pratikdungano/vastrahub-backend/api/validators"
	checkoutsvc "github.com/pratikdungano/vastrahub-backend/internal/checkout"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

// PlaceOrder submits a checkout for the authenticated customer.
func PlaceOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method"))
			return
		}

		items := make([]checkoutsvc.PlaceOrderItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.PlaceOrderItem{
				SKU: strings.TrimSpace(item.SKU),
				Qty: item.Qty,
			})
		}

		result, err := svc.PlaceOrder(r.Context(), userID, checkoutsvc.PlaceOrderInput{
			Items:         items,
			Address:       payload.Address,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type placeOrderRequest struct {
	Items         []placeOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Address       types.ShippingAddress   `json:"address" validate:"required"`
	PaymentMethod string                  `json:"payment_method" validate:"required"`
}

type placeOrderItemRequest struct {
	SKU string `json:"sku" validate:"required"`
	Qty int    `json:"qty" validate:"required,min=1"`
}

func actorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return parsed, nil
}
