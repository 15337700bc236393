package placeorder

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	"github.com/corray333/backend-labs/checkout/internal/transport/http/httperr"
	"github.com/corray333/backend-labs/checkout/pkg/http/middleware/auth"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	PlaceOrder(
		ctx context.Context,
		userID int64,
		shippingAddressID int64,
		method payment.Method,
	) (order.Order, error)
}

// placeOrderRequest represents a place order request.
type placeOrderRequest struct {
	ShippingAddressID int64  `json:"shippingAddressId" validate:"gt=0"`
	PaymentMethod     string `json:"paymentMethod"     validate:"required,oneof=gateway cash_on_delivery"`
}

// Validate validates the place order request.
func (r *placeOrderRequest) Validate() error {
	return validator.New().Struct(r)
}

// PlaceOrder handles order placement from the caller's current cart.
func PlaceOrder(w http.ResponseWriter, r *http.Request, service service) {
	act, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)

		return
	}

	req := placeOrderRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}
	if err := req.Validate(); err != nil {
		httperr.WriteStatus(w, http.StatusBadRequest, err)

		return
	}

	placed, err := service.PlaceOrder(
		r.Context(),
		act.ID,
		req.ShippingAddressID,
		payment.Method(req.PaymentMethod),
	)
	if err != nil {
		httperr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(placed); err != nil {
		httperr.Write(w, r, err)
	}
}
