package iorderlinerepo

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/service/models/orderline"
)

// IOrderLineRepository is an interface for the order line postgres repository.
type IOrderLineRepository interface {
	BulkInsert(ctx context.Context, lines []orderline.OrderLine) ([]orderline.OrderLine, error)
	ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]orderline.OrderLine, error)
}
