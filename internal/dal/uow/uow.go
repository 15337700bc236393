package uow

import (
	"context"

	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iaddressrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/icartrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iinventoryrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderlinerepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	addressrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/address/postgres"
	cartrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/cart/postgres"
	inventoryrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/inventory/postgres"
	orderrepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/order/postgres"
	orderlinerepo "github.com/corray333/backend-labs/checkout/internal/dal/repositories/orderline/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// unitOfWork makes the atomic scope of the checkout pipeline explicit:
// between Begin and Commit every repository it hands out runs on the same
// transaction, so stock reservation, order creation and cart deletion
// either all land or none do.
type unitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	orderRepo     iorderrepo.IOrderRepository
	orderLineRepo iorderlinerepo.IOrderLineRepository
	inventoryRepo iinventoryrepo.IInventoryRepository
	cartRepo      icartrepo.ICartRepository
	addressRepo   iaddressrepo.IAddressRepository
}

// NewUnitOfWork creates a unit of work bound to the pool. Until Begin is
// called the repositories run in autocommit mode.
func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	u := &unitOfWork{pool: client.Pool()}
	u.bind(client.Pool())

	return u
}

func (u *unitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderLineRepo = orderlinerepo.NewPostgresOrderLineRepository(conn)
	u.inventoryRepo = inventoryrepo.NewPostgresInventoryRepository(conn)
	u.cartRepo = cartrepo.NewPostgresCartRepository(conn)
	u.addressRepo = addressrepo.NewPostgresAddressRepository(conn)
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderLineRepository() iorderlinerepo.IOrderLineRepository {
	return u.orderLineRepo
}

func (u *unitOfWork) InventoryRepository() iinventoryrepo.IInventoryRepository {
	return u.inventoryRepo
}

func (u *unitOfWork) CartRepository() icartrepo.ICartRepository {
	return u.cartRepo
}

func (u *unitOfWork) AddressRepository() iaddressrepo.IAddressRepository {
	return u.addressRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback is safe to defer after Commit: rolling back a finished
// transaction is a no-op.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return err
	}

	return nil
}
