package postgresrepo

import (
	"context"
	"fmt"

	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
)

// PostgresAddressRepository answers the only question checkout has for the
// address collaborator: does this address belong to this user.
type PostgresAddressRepository struct {
	conn postgres.GenericConn
}

func NewPostgresAddressRepository(conn postgres.GenericConn) *PostgresAddressRepository {
	return &PostgresAddressRepository{
		conn: conn,
	}
}

func (r *PostgresAddressRepository) BelongsToUser(ctx context.Context, addressID, userID int64) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2
		)
	`, addressID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check address ownership: %w", err)
	}

	return exists, nil
}
