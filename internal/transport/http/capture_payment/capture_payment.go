package capturepayment

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/httperr"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	FinalizePayment(
		ctx context.Context,
		orderID int64,
		approvalToken string,
		act actor.Actor,
	) (order.Order, error)
}

// capturePaymentRequest represents a capture request. The approval token is
// the handle the gateway redirects back with; when absent the intent
// recorded on the order is captured.
type capturePaymentRequest struct {
	OrderID       int64  `json:"orderId" validate:"gt=0"`
	ApprovalToken string `json:"approvalToken"`
}

// Validate validates the capture payment request.
func (r *capturePaymentRequest) Validate() error {
	return validator.New().Struct(r)
}

// CapturePayment handles the capture phase and returns the confirmed order.
func CapturePayment(w http.ResponseWriter, r *http.Request, service service) {
	act, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)

		return
	}

	req := capturePaymentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}
	if err := req.Validate(); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}

	confirmed, err := service.FinalizePayment(r.Context(), req.OrderID, req.ApprovalToken, act)
	if err != nil {
		httperr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(confirmed); err != nil {
		httperr.Write(w, r, err)
	}
}
