package order

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderline"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrTotalMismatch     = errors.New("order total does not match its components")
)

// Order represents a priced, immutable snapshot of a checkout.
type Order struct {
	ID                int64                 `json:"id"`
	OrderNumber       string                `json:"orderNumber"`
	UserID            int64                 `json:"userId"`
	ShippingAddressID int64                 `json:"shippingAddressId"`
	Status            Status                `json:"status"`
	PaymentStatus     PaymentStatus         `json:"paymentStatus"`
	PaymentMethod     string                `json:"paymentMethod"`
	PaymentIntentID   string                `json:"paymentIntentId,omitempty"`
	ExternalTxnID     string                `json:"externalTxnId,omitempty"`
	SubtotalCents     int64                 `json:"subtotalCents"`
	ShippingCents     int64                 `json:"shippingCents"`
	TaxCents          int64                 `json:"taxCents"`
	DiscountCents     int64                 `json:"discountCents"`
	TotalCents        int64                 `json:"totalCents"`
	Currency          currency.Currency     `json:"currency"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
	ShippedAt         *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt       *time.Time            `json:"deliveredAt,omitempty"`
	Lines             []orderline.OrderLine `json:"lines"`
}

// ValidateTotals checks the monetary invariant total = subtotal + shipping + tax - discount.
func (o *Order) ValidateTotals() error {
	if o.SubtotalCents < 0 || o.ShippingCents < 0 || o.TaxCents < 0 || o.DiscountCents < 0 || o.TotalCents < 0 {
		return ErrTotalMismatch
	}
	if o.TotalCents != o.SubtotalCents+o.ShippingCents+o.TaxCents-o.DiscountCents {
		return ErrTotalMismatch
	}

	return nil
}

// NewOrderNumber generates a human-readable order number in the form
// ORD-YYYYMMDD-XXXXXXXX. The date part is UTC, the suffix is 8 uppercase
// hex characters. Global uniqueness is enforced by the store, not here.
func NewOrderNumber(now time.Time) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("order number entropy unavailable: %v", err))
	}

	return fmt.Sprintf("ORD-%s-%s",
		now.UTC().Format("20060102"),
		strings.ToUpper(hex.EncodeToString(buf)),
	)
}
