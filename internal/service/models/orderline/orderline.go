package orderline

import (
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
)

// OrderLine is an immutable snapshot of a cart line taken at order-creation
// time. Product title, image and price are captured here and never follow
// later catalog changes.
type OrderLine struct {
	ID              int64             `json:"id"`
	OrderID         int64             `json:"orderId"`
	ProductID       int64             `json:"productId"`
	VendorID        int64             `json:"vendorId"`
	ProductTitle    string            `json:"productTitle"`
	ProductImageURL string            `json:"productImageUrl"`
	Quantity        int               `json:"quantity"`
	UnitPriceCents  int64             `json:"unitPriceCents"`
	LineTotalCents  int64             `json:"lineTotalCents"`
	PriceCurrency   currency.Currency `json:"priceCurrency"`
	CreatedAt       time.Time         `json:"createdAt"`
}
