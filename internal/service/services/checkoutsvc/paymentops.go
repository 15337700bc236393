package checkoutsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/corray333/backend-labs/checkout/internal/gateway"
	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
)

// BeginExternalPayment creates a payment intent for the order's total and
// records the intent id so the later capture can be correlated. The order's
// status is untouched; calling this again simply replaces an abandoned
// intent with a fresh one.
func (s *CheckoutService) BeginExternalPayment(
	ctx context.Context,
	orderID int64,
	act actor.Actor,
) (*payment.Intent, error) {
	work := s.newUOW()

	o, err := work.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !act.CanActOn(o.UserID) {
		return nil, actor.ErrForbidden
	}
	if !payment.Method(o.PaymentMethod).RequiresApproval() {
		return nil, ErrWrongPaymentMethod
	}
	if o.PaymentStatus == order.PaymentStatusPaid {
		return nil, ErrAlreadyPaid
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("%w: cannot start payment for order in status %s", order.ErrInvalidTransition, o.Status)
	}

	intent, err := s.gateway.CreateIntent(ctx, o.TotalCents, o.Currency)
	if err != nil {
		return nil, err
	}

	if err := work.OrderRepository().SetPaymentIntent(ctx, o.ID, intent.ID); err != nil {
		return nil, err
	}

	return intent, nil
}

// FinalizePayment captures the approved intent and confirms the order.
//
// Capturing twice for the same order is a no-op returning the prior result:
// a paid order short-circuits before any gateway call, and the adapter folds
// a gateway-side duplicate capture into the original transaction id.
//
// A declined capture marks the payment failed but releases nothing — the
// order keeps its reserved stock until someone decides to cancel, since a
// retry with another payment method may still succeed.
func (s *CheckoutService) FinalizePayment(
	ctx context.Context,
	orderID int64,
	approvalToken string,
	act actor.Actor,
) (order.Order, error) {
	work := s.newUOW()
	orders := work.OrderRepository()

	o, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !act.CanActOn(o.UserID) {
		return order.Order{}, actor.ErrForbidden
	}

	if o.PaymentStatus == order.PaymentStatusPaid && o.ExternalTxnID != "" {
		return s.withLines(ctx, work, *o)
	}

	// Capture only confirms a live pending order. A cancelled order has
	// already released its stock and must stay cancelled no matter how
	// late the approval redirect arrives.
	if o.Status != order.StatusPending {
		return order.Order{}, fmt.Errorf("%w: cannot capture payment for order in status %s", order.ErrInvalidTransition, o.Status)
	}

	intentID := approvalToken
	switch {
	case intentID == "":
		intentID = o.PaymentIntentID
	case o.PaymentIntentID != "" && intentID != o.PaymentIntentID:
		return order.Order{}, ErrIntentMismatch
	}
	if intentID == "" {
		return order.Order{}, ErrNoPaymentIntent
	}

	result, err := s.gateway.Capture(ctx, intentID)
	if err != nil {
		if errors.Is(err, gateway.ErrDeclined) {
			if markErr := orders.SetPaymentResult(
				ctx, o.ID, order.StatusPending, order.PaymentStatusFailed, "",
			); markErr != nil {
				return order.Order{}, markErr
			}
		}

		return order.Order{}, err
	}

	if err := orders.SetPaymentResult(
		ctx, o.ID, order.StatusConfirmed, order.PaymentStatusPaid, result.TransactionID,
	); err != nil {
		return order.Order{}, err
	}

	o.Status = order.StatusConfirmed
	o.PaymentStatus = order.PaymentStatusPaid
	o.ExternalTxnID = result.TransactionID

	confirmed, err := s.withLines(ctx, work, *o)
	if err != nil {
		return order.Order{}, err
	}

	// Best effort: a failed notification never unwinds a paid order.
	if s.notifier != nil {
		if err := s.notifier.NotifyOrderConfirmed(ctx, confirmed); err != nil {
			slog.Error("Failed to dispatch order confirmation",
				"order_id", confirmed.ID,
				"order_number", confirmed.OrderNumber,
				"error", err,
			)
		}
	}

	return confirmed, nil
}

// RefundOrder returns captured funds for an order. Admin-only; this is the
// explicit second step after cancelling an already-paid order.
func (s *CheckoutService) RefundOrder(
	ctx context.Context,
	orderID int64,
	act actor.Actor,
) (order.Order, error) {
	if act.Role != actor.RoleAdmin {
		return order.Order{}, actor.ErrForbidden
	}

	work := s.newUOW()
	orders := work.OrderRepository()

	o, err := orders.GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.PaymentStatus != order.PaymentStatusPaid || o.ExternalTxnID == "" {
		return order.Order{}, ErrNotPaid
	}

	result, err := s.gateway.Refund(ctx, o.ExternalTxnID, o.TotalCents)
	if err != nil {
		return order.Order{}, err
	}

	if err := orders.SetPaymentResult(
		ctx, o.ID, o.Status, order.PaymentStatusRefunded, o.ExternalTxnID,
	); err != nil {
		return order.Order{}, fmt.Errorf("refund %s succeeded but order update failed: %w", result.RefundID, err)
	}

	o.PaymentStatus = order.PaymentStatusRefunded

	return s.withLines(ctx, work, *o)
}

// withLines returns the order with its lines attached.
func (s *CheckoutService) withLines(ctx context.Context, work unitOfWork, o order.Order) (order.Order, error) {
	lines, err := work.OrderLineRepository().ListByOrderIDs(ctx, []int64{o.ID})
	if err != nil {
		return order.Order{}, err
	}
	o.Lines = lines

	return o, nil
}
