package cancelorder

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/go-chi/chi/v5"
)

type stubService struct {
	gotOrderID int64
	err        error
}

func (s *stubService) CancelOrder(_ context.Context, orderID int64, _ actor.Actor) (order.Order, error) {
	s.gotOrderID = orderID
	if s.err != nil {
		return order.Order{}, s.err
	}

	return order.Order{ID: orderID, Status: order.StatusCancelled}, nil
}

func newRequest(t *testing.T, id string, act *actor.Actor) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPut, "/api/orders/"+id+"/cancel", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	if act != nil {
		req = req.WithContext(auth.WithActor(req.Context(), *act))
	}

	return req
}

func TestCancelOrder(t *testing.T) {
	svc := &stubService{}
	act := actor.Actor{ID: 7, Role: actor.RoleUser}
	rec := httptest.NewRecorder()

	CancelOrder(rec, newRequest(t, "42", &act), svc)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.gotOrderID != 42 {
		t.Errorf("expected order id 42 to reach the service, got %d", svc.gotOrderID)
	}
}

func TestCancelOrderInvalidID(t *testing.T) {
	act := actor.Actor{ID: 7, Role: actor.RoleUser}
	rec := httptest.NewRecorder()

	CancelOrder(rec, newRequest(t, "abc", &act), &stubService{})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCancelOrderAfterShippingIsConflict(t *testing.T) {
	svc := &stubService{err: fmt.Errorf("%w: cannot cancel order in status shipped", order.ErrInvalidTransition)}
	act := actor.Actor{ID: 7, Role: actor.RoleUser}
	rec := httptest.NewRecorder()

	CancelOrder(rec, newRequest(t, "42", &act), svc)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	svc := &stubService{err: order.ErrNotFound}
	act := actor.Actor{ID: 7, Role: actor.RoleUser}
	rec := httptest.NewRecorder()

	CancelOrder(rec, newRequest(t, "42", &act), svc)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
