package checkoutsvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/actor"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
)

// CancelOrder cancels an order strictly before it ships and releases the
// reserved stock. The release is a compensating action in its own short
// transaction, independent of the original placement.
func (s *CheckoutService) CancelOrder(
	ctx context.Context,
	orderID int64,
	act actor.Actor,
) (order.Order, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin cancellation transaction: %w", err)
	}
	defer func() {
		_ = work.Rollback(ctx)
	}()

	o, err := work.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !act.CanActOn(o.UserID) {
		return order.Order{}, actor.ErrForbidden
	}
	if !o.Status.CanCancel() {
		return order.Order{}, fmt.Errorf("%w: cannot cancel order in status %s", order.ErrInvalidTransition, o.Status)
	}

	lines, err := work.OrderLineRepository().ListByOrderIDs(ctx, []int64{o.ID})
	if err != nil {
		return order.Order{}, err
	}

	if err := work.OrderRepository().UpdateStatus(ctx, o.ID, order.StatusCancelled, nil, nil); err != nil {
		return order.Order{}, err
	}

	for i := range lines {
		if err := work.InventoryRepository().Release(ctx, lines[i].ProductID, lines[i].Quantity); err != nil {
			return order.Order{}, err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit cancellation transaction: %w", err)
	}

	if o.PaymentStatus == order.PaymentStatusPaid {
		slog.Warn("Cancelled order has a captured payment awaiting refund",
			"order_id", o.ID,
			"order_number", o.OrderNumber,
			"external_txn_id", o.ExternalTxnID,
		)
	}

	o.Status = order.StatusCancelled
	o.Lines = lines

	return *o, nil
}

// UpdateOrderStatus moves an order one step forward along the fulfillment
// path. Vendor/admin only; shipped and delivered transitions stamp their
// timestamps exactly once. Invalid transitions are rejected, not clamped.
func (s *CheckoutService) UpdateOrderStatus(
	ctx context.Context,
	orderID int64,
	newStatus order.Status,
	act actor.Actor,
) (order.Order, error) {
	if !act.CanManageOrders() {
		return order.Order{}, actor.ErrForbidden
	}

	work := s.newUOW()

	o, err := work.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !o.Status.CanTransitionTo(newStatus) {
		return order.Order{}, fmt.Errorf(
			"%w: %s -> %s", order.ErrInvalidTransition, o.Status, newStatus,
		)
	}

	now := time.Now().UTC()
	var shippedAt, deliveredAt *time.Time
	switch newStatus {
	case order.StatusShipped:
		shippedAt = &now
	case order.StatusDelivered:
		deliveredAt = &now
	}

	if err := work.OrderRepository().UpdateStatus(ctx, o.ID, newStatus, shippedAt, deliveredAt); err != nil {
		return order.Order{}, err
	}

	o.Status = newStatus
	if shippedAt != nil && o.ShippedAt == nil {
		o.ShippedAt = shippedAt
	}
	if deliveredAt != nil && o.DeliveredAt == nil {
		o.DeliveredAt = deliveredAt
	}

	return s.withLines(ctx, work, *o)
}

// GetOrder fetches one order with lines. Owners and admins always may;
// vendors may when the order contains one of their lines.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64, act actor.Actor) (order.Order, error) {
	work := s.newUOW()

	o, err := work.OrderRepository().GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}

	full, err := s.withLines(ctx, work, *o)
	if err != nil {
		return order.Order{}, err
	}

	if act.CanActOn(o.UserID) {
		return full, nil
	}
	if act.Role == actor.RoleVendor {
		for i := range full.Lines {
			if full.Lines[i].VendorID == act.ID {
				return full, nil
			}
		}
	}

	return order.Order{}, actor.ErrForbidden
}

// ListOrders returns orders matching the filter. Non-admin callers are
// always scoped to their own orders regardless of the requested filter.
func (s *CheckoutService) ListOrders(
	ctx context.Context,
	filter order.QueryOrdersModel,
	act actor.Actor,
) ([]order.Order, error) {
	if act.Role != actor.RoleAdmin {
		filter.UserIds = []int64{act.ID}
	}

	work := s.newUOW()

	orders, err := work.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	orderIDs := make([]int64, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	lines, err := work.OrderLineRepository().ListByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	for i := range orders {
		for _, line := range lines {
			if line.OrderID == orders[i].ID {
				orders[i].Lines = append(orders[i].Lines, line)
			}
		}
	}

	return orders, nil
}
