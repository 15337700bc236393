package cancelorder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/httperr"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/go-chi/chi/v5"
)

var errInvalidOrderID = errors.New("invalid order id")

// service is an interface for the service layer.
type service interface {
	CancelOrder(ctx context.Context, orderID int64, act actor.Actor) (order.Order, error)
}

// CancelOrder handles user/admin cancellation; the service releases the
// reserved stock as part of the cancellation.
func CancelOrder(w http.ResponseWriter, r *http.Request, service service) {
	act, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)

		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orderID <= 0 {
		httperr.WriteStatus(w, http.StatusBadRequest, errInvalidOrderID)

		return
	}

	cancelled, err := service.CancelOrder(r.Context(), orderID, act)
	if err != nil {
		httperr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(cancelled); err != nil {
		httperr.Write(w, r, err)
	}
}
