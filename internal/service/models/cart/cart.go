package cart

import (
	"errors"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
)

// Line is a mutable (product, quantity) pair on a user's active cart.
// Cart lines are never priced at rest; prices are read live at checkout.
type Line struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"userId"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// SnapshotLine is a cart line joined with the live product record at
// checkout time. Everything needed to build an immutable order line.
type SnapshotLine struct {
	CartLineID         int64
	ProductID          int64
	VendorID           int64
	ProductTitle       string
	ProductImageURL    string
	Quantity           int
	ListPriceCents     int64
	DiscountPriceCents *int64
	StockQuantity      int
}

// UnitPriceCents is the effective live price of the snapshot line,
// following the catalog's discount rule.
func (l *SnapshotLine) UnitPriceCents() int64 {
	p := product.Product{
		PriceCents:         l.ListPriceCents,
		DiscountPriceCents: l.DiscountPriceCents,
	}

	return p.CurrentPriceCents()
}

// LineDiscountCents is how much cheaper the effective price is than the
// list price, summed over the quantity.
func (l *SnapshotLine) LineDiscountCents() int64 {
	return (l.ListPriceCents - l.UnitPriceCents()) * int64(l.Quantity)
}

// Snapshot is the read-only, point-in-time view of a user's cart taken
// inside the order-placement transaction.
type Snapshot struct {
	UserID  int64
	TakenAt time.Time
	Lines   []SnapshotLine
}

// SubtotalCents sums effective line prices over all lines.
func (s *Snapshot) SubtotalCents() int64 {
	var sum int64
	for i := range s.Lines {
		sum += s.Lines[i].UnitPriceCents() * int64(s.Lines[i].Quantity)
	}

	return sum
}

// DiscountCents sums the per-line discount against list prices.
func (s *Snapshot) DiscountCents() int64 {
	var sum int64
	for i := range s.Lines {
		sum += s.Lines[i].LineDiscountCents()
	}

	return sum
}
