package beginpayment

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/httperr"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	BeginExternalPayment(ctx context.Context, orderID int64, act actor.Actor) (*payment.Intent, error)
}

// beginPaymentRequest represents a begin external payment request.
type beginPaymentRequest struct {
	OrderID int64 `json:"orderId" validate:"gt=0"`
}

// Validate validates the begin payment request.
func (r *beginPaymentRequest) Validate() error {
	return validator.New().Struct(r)
}

// BeginPayment handles the create-intent phase of the gateway round trip
// and returns the approval handle for the client-side redirect.
func BeginPayment(w http.ResponseWriter, r *http.Request, service service) {
	act, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)

		return
	}

	req := beginPaymentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}
	if err := req.Validate(); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}

	intent, err := service.BeginExternalPayment(r.Context(), req.OrderID, act)
	if err != nil {
		httperr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(intent); err != nil {
		httperr.Write(w, r, err)
	}
}
