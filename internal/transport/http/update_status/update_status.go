package updatestatus

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
	"github.com/go-playground/validator/v10"
)

var errInvalidOrderID = errors.New("invalid order id")

// service is an interface for the service layer.
type service interface {
	UpdateOrderStatus(
		ctx context.Context,
		orderID int64,
		newStatus order.Status,
		act actor.Actor,
	) (order.Order, error)
}

// updateStatusRequest represents a vendor/admin status transition request.
type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Validate validates the update status request.
func (r *updateStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

// UpdateStatus handles forward-only fulfillment transitions.
func UpdateStatus(w http.ResponseWriter, r *http.Request, service service) {
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

	req := updateStatusRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}
	if err := req.Validate(); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}

	newStatus, err := order.ParseStatus(req.Status)
	if err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}

	updated, err := service.UpdateOrderStatus(r.Context(), orderID, newStatus, act)
	if err != nil {
		httperr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(updated); err != nil {
		httperr.Write(w, r, err)
	}
}
