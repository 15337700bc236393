package checkoutsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/cart"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderline"
	"github.com/corray333/backend-labs/checkout/internal/service/models/payment"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

// PlaceOrder converts the user's cart into a pending order inside one
// transaction: live repricing, stock reservation, order + line snapshot,
// cart deletion. Any failure rolls the whole thing back; the caller may
// retry from scratch against fresh stock.
func (s *CheckoutService) PlaceOrder(
	ctx context.Context,
	userID int64,
	shippingAddressID int64,
	method payment.Method,
) (order.Order, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to begin placement transaction: %w", err)
	}
	defer func() {
		_ = work.Rollback(ctx)
	}()

	owned, err := work.AddressRepository().BelongsToUser(ctx, shippingAddressID, userID)
	if err != nil {
		return order.Order{}, err
	}
	if !owned {
		return order.Order{}, ErrAddressNotOwned
	}

	snapshot, err := work.CartRepository().Snapshot(ctx, userID)
	if err != nil {
		return order.Order{}, err
	}
	if len(snapshot.Lines) == 0 {
		return order.Order{}, cart.ErrEmptyCart
	}

	// Reserve stock line by line. The conditional decrement re-checks
	// stock at commit time, which closes the window between the cart
	// view and the purchase.
	for i := range snapshot.Lines {
		line := &snapshot.Lines[i]
		ok, err := work.InventoryRepository().TryReserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return order.Order{}, err
		}
		if !ok {
			return order.Order{}, fmt.Errorf("%w: product %d", product.ErrInsufficientStock, line.ProductID)
		}
	}

	now := time.Now().UTC()
	subtotal := snapshot.SubtotalCents()
	discount := snapshot.DiscountCents()
	tax := s.pricing.TaxCents(subtotal)

	newOrder := order.Order{
		OrderNumber:       order.NewOrderNumber(now),
		UserID:            userID,
		ShippingAddressID: shippingAddressID,
		Status:            order.StatusPending,
		PaymentStatus:     order.PaymentStatusPending,
		PaymentMethod:     method.String(),
		SubtotalCents:     subtotal,
		ShippingCents:     s.pricing.ShippingFlatCents,
		TaxCents:          tax,
		DiscountCents:     discount,
		TotalCents:        subtotal + s.pricing.ShippingFlatCents + tax - discount,
		Currency:          currency.CurrencyUSD,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := newOrder.ValidateTotals(); err != nil {
		return order.Order{}, err
	}

	inserted, err := work.OrderRepository().Insert(ctx, newOrder)
	if err != nil {
		return order.Order{}, err
	}

	lines := make([]orderline.OrderLine, len(snapshot.Lines))
	cartLineIDs := make([]int64, len(snapshot.Lines))
	for i := range snapshot.Lines {
		src := &snapshot.Lines[i]
		unitPrice := src.UnitPriceCents()
		lines[i] = orderline.OrderLine{
			OrderID:         inserted.ID,
			ProductID:       src.ProductID,
			VendorID:        src.VendorID,
			ProductTitle:    src.ProductTitle,
			ProductImageURL: src.ProductImageURL,
			Quantity:        src.Quantity,
			UnitPriceCents:  unitPrice,
			LineTotalCents:  unitPrice * int64(src.Quantity),
			PriceCurrency:   inserted.Currency,
			CreatedAt:       now,
		}
		cartLineIDs[i] = src.CartLineID
	}

	insertedLines, err := work.OrderLineRepository().BulkInsert(ctx, lines)
	if err != nil {
		return order.Order{}, err
	}
	inserted.Lines = insertedLines

	if err := work.CartRepository().DeleteLines(ctx, userID, cartLineIDs); err != nil {
		return order.Order{}, err
	}

	if err := work.Commit(ctx); err != nil {
		return order.Order{}, fmt.Errorf("failed to commit placement transaction: %w", err)
	}

	return inserted, nil
}
