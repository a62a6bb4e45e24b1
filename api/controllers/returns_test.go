package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pratikdungano/vastrahub-backend/internal/returns"
	"github.com/pratikdungano/vastrahub-backend/pkg/db/models"
	"github.com/pratikdungano/vastrahub-backend/pkg/enums"
	pkgerrors "github.com/pratikdungano/vastrahub-backend/pkg/errors"
	"github.com/pratikdungano/vastrahub-backend/pkg/pagination"
)

type stubReturnsService struct {
	requestFn func(ctx context.Context, input returns.RequestReturnInput) (*models.ReturnRequest, error)
	actionFn  func(ctx context.Context, input returns.ActionInput) error
	listFn    func(ctx context.Context, params pagination.Params, filters returns.ListFilters) (*returns.ReturnList, error)
}

func (s *stubReturnsService) RequestReturn(ctx context.Context, input returns.RequestReturnInput) (*models.ReturnRequest, error) {
	if s.requestFn != nil {
		return s.requestFn(ctx, input)
	}
	return &models.ReturnRequest{}, nil
}

func (s *stubReturnsService) ActOnReturn(ctx context.Context, input returns.ActionInput) error {
	if s.actionFn != nil {
		return s.actionFn(ctx, input)
	}
	return nil
}

func (s *stubReturnsService) ListReturns(ctx context.Context, params pagination.Params, filters returns.ListFilters) (*returns.ReturnList, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params, filters)
	}
	return &returns.ReturnList{}, nil
}

func returnRequestBody() string {
	return `{
		"type": "return",
		"reason": "kurta arrived with a torn sleeve",
		"photos": ["https://cdn.vastrahub.in/returns/1.jpg"],
		"refund_route": {"type": "upi", "upi_id": "asha@okhdfc"}
	}`
}

func TestRequestReturnOpensRequest(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	var captured returns.RequestReturnInput
	svc := &stubReturnsService{
		requestFn: func(_ context.Context, input returns.RequestReturnInput) (*models.ReturnRequest, error) {
			captured = input
			return &models.ReturnRequest{ID: uuid.New(), Status: enums.ReturnStatusRequested}, nil
		},
	}

	resp := httptest.NewRecorder()
	RequestReturn(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/return", returnRequestBody(), userID, orderID.String()))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID || captured.UserID != userID {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.Type != enums.ReturnTypeReturn {
		t.Fatalf("expected return type got %s", captured.Type)
	}
	if captured.RefundRoute == nil || captured.RefundRoute.UPIID != "asha@okhdfc" {
		t.Fatalf("expected refund route got %+v", captured.RefundRoute)
	}
	if len(captured.Photos) != 1 {
		t.Fatalf("expected 1 photo got %d", len(captured.Photos))
	}
}

func TestRequestReturnRejectsUnknownType(t *testing.T) {
	orderID := uuid.New()
	svc := &stubReturnsService{}
	body := `{"type": "exchange", "reason": "wrong colour"}`

	resp := httptest.NewRecorder()
	RequestReturn(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/return", body, uuid.New(), orderID.String()))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRequestReturnSurfacesNotEligible(t *testing.T) {
	orderID := uuid.New()
	svc := &stubReturnsService{
		requestFn: func(context.Context, returns.RequestReturnInput) (*models.ReturnRequest, error) {
			return nil, pkgerrors.New(pkgerrors.CodeReturnNotEligible, "return window closed")
		},
	}

	resp := httptest.NewRecorder()
	RequestReturn(svc, nil).ServeHTTP(resp, adminRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/return", returnRequestBody(), uuid.New(), orderID.String()))

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestAdminListReturnsFiltersByStatus(t *testing.T) {
	var captured returns.ListFilters
	svc := &stubReturnsService{
		listFn: func(_ context.Context, params pagination.Params, filters returns.ListFilters) (*returns.ReturnList, error) {
			captured = filters
			return &returns.ReturnList{}, nil
		},
	}

	resp := httptest.NewRecorder()
	AdminListReturns(svc, nil).ServeHTTP(resp, adminRequest(http.MethodGet, "/api/v1/admin/returns?status=approved", "", uuid.New(), ""))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.Status == nil || *captured.Status != enums.ReturnStatusApproved {
		t.Fatalf("expected approved filter got %+v", captured.Status)
	}
}

func TestAdminListReturnsRejectsBadStatus(t *testing.T) {
	svc := &stubReturnsService{}
	resp := httptest.NewRecorder()
	AdminListReturns(svc, nil).ServeHTTP(resp, adminRequest(http.MethodGet, "/api/v1/admin/returns?status=maybe", "", uuid.New(), ""))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func returnActionTestRequest(body string, actorID uuid.UUID, returnID string) *http.Request {
	req := authedRequest(http.MethodPost, "/api/v1/admin/returns/"+returnID+"/action", body, actorID)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("returnId", returnID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestAdminReturnAction(t *testing.T) {
	actorID := uuid.New()
	returnID := uuid.New()
	var captured returns.ActionInput
	svc := &stubReturnsService{
		actionFn: func(_ context.Context, input returns.ActionInput) error {
			captured = input
			return nil
		},
	}

	body := `{"to_status": "approved", "note": "photos confirm the defect"}`
	resp := httptest.NewRecorder()
	AdminReturnAction(svc, nil).ServeHTTP(resp, returnActionTestRequest(body, actorID, returnID.String()))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.ReturnID != returnID || captured.ActorUserID != actorID {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.ToStatus != enums.ReturnStatusApproved {
		t.Fatalf("expected approved got %s", captured.ToStatus)
	}
	if captured.Note == nil || *captured.Note != "photos confirm the defect" {
		t.Fatalf("expected note got %+v", captured.Note)
	}
}

func TestAdminReturnActionRejectsUnknownStatus(t *testing.T) {
	returnID := uuid.New()
	svc := &stubReturnsService{}
	resp := httptest.NewRecorder()
	AdminReturnAction(svc, nil).ServeHTTP(resp, returnActionTestRequest(`{"to_status": "shredded"}`, uuid.New(), returnID.String()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminReturnActionSurfacesMissingRefundRoute(t *testing.T) {
	returnID := uuid.New()
	svc := &stubReturnsService{
		actionFn: func(context.Context, returns.ActionInput) error {
			return pkgerrors.New(pkgerrors.CodeMissingRefundRoute, "no refund route on file for cod order")
		},
	}
	resp := httptest.NewRecorder()
	AdminReturnAction(svc, nil).ServeHTTP(resp, returnActionTestRequest(`{"to_status": "refunded"}`, uuid.New(), returnID.String()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
