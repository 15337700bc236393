package product

import "errors"

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product carries the inventory-relevant view of a catalog item. The full
// catalog record is owned by the catalog collaborator.
type Product struct {
	ID                 int64  `json:"id"`
	VendorID           int64  `json:"vendorId"`
	Title              string `json:"title"`
	ImageURL           string `json:"imageUrl"`
	PriceCents         int64  `json:"priceCents"`
	DiscountPriceCents *int64 `json:"discountPriceCents,omitempty"`
	StockQuantity      int    `json:"stockQuantity"`
}

// CurrentPriceCents returns the effective price: the discount price when it
// is present and lower than the list price, the list price otherwise.
func (p *Product) CurrentPriceCents() int64 {
	if p.DiscountPriceCents != nil && *p.DiscountPriceCents < p.PriceCents {
		return *p.DiscountPriceCents
	}

	return p.PriceCents
}
