package httperr

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/checkout/internal/gateway"
	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/cart"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
	"github.com/corray333/backend-labs/checkout/internal/service/services/checkoutsvc"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Write maps service errors onto HTTP status codes and writes a JSON error
// body. Unknown errors become 500s with a generic message so internals are
// not leaked to clients.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	slog.ErrorContext(r.Context(), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// WriteStatus writes a JSON error body with an explicit status. Used for
// request decoding and validation failures.
func WriteStatus(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, checkoutsvc.ErrNoPaymentIntent),
		errors.Is(err, checkoutsvc.ErrWrongPaymentMethod),
		errors.Is(err, order.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, actor.ErrForbidden),
		errors.Is(err, checkoutsvc.ErrAddressNotOwned):
		return http.StatusForbidden
	case errors.Is(err, product.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, checkoutsvc.ErrAlreadyPaid),
		errors.Is(err, checkoutsvc.ErrIntentMismatch),
		errors.Is(err, checkoutsvc.ErrNotPaid):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrDeclined):
		return http.StatusPaymentRequired
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
