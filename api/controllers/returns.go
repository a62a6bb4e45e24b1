package controllers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/api/responses"
	"github.com/pratikdungano/vastrahub-backend/api/validators"
	"github.com/pratikdungano/vastrahub-backend/internal/returns"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/logger"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
	"github.com/pratikdungano/vastrahub-backend/pkg/types"
)

// maxFreeTextLen caps customer and admin supplied text before it reaches
// storage or notifications.
const maxFreeTextLen = 500

// RequestReturn opens a return for one of the customer's delivered orders.
func RequestReturn(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		userID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload requestReturnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		returnType, err := enums.ParseReturnType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}

		request, err := svc.RequestReturn(r.Context(), returns.RequestReturnInput{
			OrderID:     orderID,
			UserID:      userID,
			Type:        returnType,
			Reason:      validators.SanitizeString(payload.Reason, maxFreeTextLen),
			Photos:      payload.Photos,
			RefundRoute: payload.RefundRoute,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// AdminListReturns returns the return queue, optionally filtered by status.
func AdminListReturns(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		var filters returns.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseReturnStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", raw)))
				return
			}
			filters.Status = &status
		}

		list, err := svc.ListReturns(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminReturnAction moves a return one step through the workflow.
func AdminReturnAction(svc returns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "returns service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rawReturnID := strings.TrimSpace(chi.URLParam(r, "returnId"))
		if rawReturnID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "return id is required"))
			return
		}
		returnID, err := uuid.Parse(rawReturnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid return id"))
			return
		}

		var payload returnActionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		toStatus, err := enums.ParseReturnStatus(strings.TrimSpace(payload.ToStatus))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to_status"))
			return
		}

		input := returns.ActionInput{
			ReturnID:    returnID,
			ToStatus:    toStatus,
			ActorUserID: actorID,
		}
		if payload.Note != nil {
			note := validators.SanitizeString(*payload.Note, maxFreeTextLen)
			input.Note = &note
		}
		if err := svc.ActOnReturn(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type requestReturnRequest struct {
	Type        string             `json:"type" validate:"required"`
	Reason      string             `json:"reason" validate:"required"`
	Photos      []string           `json:"photos,omitempty"`
	RefundRoute *types.RefundRoute `json:"refund_route,omitempty"`
}

type returnActionRequest struct {
	ToStatus string  `json:"to_status" validate:"required"`
	Note     *string `json:"note,omitempty"`
}
