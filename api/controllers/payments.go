package controllers

import (
	"net/http"
	"strings"

	"github.com/pratikdungano/vastrahub-backend/api/responses"
	"github.com/pratikdungano/vastrahub-backend/api/validators"
	"github.com/pratikdungano/vastrahub-backend/internal/payments"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
)

// VerifyPayment settles the storefront's post-payment callback. The widget
// hands the customer back with the gateway's order id, payment id and
// signature; a verified triple moves the order to placed.
func VerifyPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		if _, err := actorFromContext(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := payments.VerifyPaymentInput{
			GatewayOrderID: strings.TrimSpace(payload.GatewayOrderID),
			PaymentID:      strings.TrimSpace(payload.PaymentID),
			Signature:      strings.TrimSpace(payload.Signature),
		}
		if err := svc.VerifyPayment(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type verifyPaymentRequest struct {
	GatewayOrderID string `json:"gateway_order_id" validate:"required"`
	PaymentID      string `json:"payment_id" validate:"required"`
	Signature      string `json:"signature" validate:"required"`
}
