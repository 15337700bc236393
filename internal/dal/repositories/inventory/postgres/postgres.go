package postgresrepo

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/product"
)

// PostgresInventoryRepository serializes stock mutations per product with
// conditional updates, so the non-negative stock invariant holds across
// concurrent checkouts and across processes.
type PostgresInventoryRepository struct {
	conn postgres.GenericConn
}

func NewPostgresInventoryRepository(conn postgres.GenericConn) *PostgresInventoryRepository {
	return &PostgresInventoryRepository{
		conn: conn,
	}
}

// TryReserve decrements stock by qty only when at least qty units remain.
// The WHERE guard makes the read-modify-write atomic: of two concurrent
// reservations for the last unit, exactly one matches the row.
func (r *PostgresInventoryRepository) TryReserve(ctx context.Context, productID int64, qty int) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2
	`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to reserve stock for product %d: %w", productID, err)
	}

	return tag.RowsAffected() > 0, nil
}

// Release unconditionally returns qty units to the product's stock.
func (r *PostgresInventoryRepository) Release(ctx context.Context, productID int64, qty int) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2
		WHERE id = $1
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("failed to release stock for product %d: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}

	return nil
}
