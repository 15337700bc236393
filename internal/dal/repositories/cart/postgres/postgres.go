package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/cart"
)

// PostgresCartRepository reads and clears the cart lines owned by the cart
// collaborator. Prices always come from the joined product row, never from
// anything cached on the cart line.
type PostgresCartRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresCartRepository(conn postgres.GenericConn) *PostgresCartRepository {
	return &PostgresCartRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Snapshot returns the user's cart joined with live product data. Inside
// the placement transaction this is the point-in-time view the order lines
// are built from.
func (r *PostgresCartRepository) Snapshot(ctx context.Context, userID int64) (*cart.Snapshot, error) {
	query, args, err := r.sb.Select(
		"cl.id",
		"cl.product_id",
		"p.vendor_id",
		"p.title",
		"p.image_url",
		"cl.quantity",
		"p.price_cents",
		"p.discount_price_cents",
		"p.stock_quantity",
	).
		From("cart_lines cl").
		Join("products p ON p.id = cl.product_id").
		Where(sq.Eq{"cl.user_id": userID}).
		OrderBy("cl.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()

	snapshot := &cart.Snapshot{
		UserID:  userID,
		TakenAt: time.Now().UTC(),
	}
	for rows.Next() {
		var line cart.SnapshotLine
		err := rows.Scan(
			&line.CartLineID,
			&line.ProductID,
			&line.VendorID,
			&line.ProductTitle,
			&line.ProductImageURL,
			&line.Quantity,
			&line.ListPriceCents,
			&line.DiscountPriceCents,
			&line.StockQuantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		snapshot.Lines = append(snapshot.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return snapshot, nil
}

// DeleteLines removes the given cart lines for the user.
func (r *PostgresCartRepository) DeleteLines(ctx context.Context, userID int64, lineIDs []int64) error {
	if len(lineIDs) == 0 {
		return nil
	}

	query, args, err := r.sb.Delete("cart_lines").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"id": lineIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete cart lines: %w", err)
	}

	return nil
}
