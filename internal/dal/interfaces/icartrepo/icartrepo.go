package icartrepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/cart"
)

// ICartRepository reads and clears a user's active cart.
type ICartRepository interface {
	// Snapshot joins the user's cart lines with live product rows. Prices
	// in the snapshot are current prices, never cached cart prices.
	Snapshot(ctx context.Context, userID int64) (*cart.Snapshot, error)

	// DeleteLines removes the given cart lines. Order placement calls
	// this inside the placement transaction.
	DeleteLines(ctx context.Context, userID int64, lineIDs []int64) error
}
