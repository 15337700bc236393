package order

import (
	"database/sql/driver"
	"errors"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus tracks the payment side independently of fulfillment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var ErrInvalidStatus = errors.New("invalid order status")

// rank orders the happy-path statuses so that only forward transitions
// are possible. Cancelled sits outside the rank and is handled separately.
var rank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransitionTo reports whether the happy-path transition s -> next is
// a strict forward step. Cancellation is not part of the happy path and
// must be requested through CanCancel.
func (s Status) CanTransitionTo(next Status) bool {
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	if !ok {
		return false
	}

	return to == from+1
}

// CanCancel reports whether an order in this status may still be cancelled.
// Orders are cancellable strictly before they ship.
func (s Status) CanCancel() bool {
	r, ok := rank[s]

	return ok && r < rank[StatusShipped]
}

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) Value() (driver.Value, error) {
	return p.String(), nil
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}
