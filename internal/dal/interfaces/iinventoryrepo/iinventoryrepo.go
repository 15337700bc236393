package iinventoryrepo

import "context"

// IInventoryRepository owns per-product stock counters.
type IInventoryRepository interface {
	// TryReserve atomically decrements stock by qty if at least qty units
	// remain. It returns false, without error, when stock is insufficient.
	TryReserve(ctx context.Context, productID int64, qty int) (bool, error)

	// Release unconditionally increments stock by qty. It is the
	// compensating action for a reservation.
	Release(ctx context.Context, productID int64, qty int) error
}
