package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderline"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// orderNumberRetries bounds the regeneration loop on an order number
// collision. Collisions need two identical 32-bit suffixes on one day.
const orderNumberRetries = 3

var orderColumns = []string{
	"id",
	"order_number",
	"user_id",
	"shipping_address_id",
	"status",
	"payment_status",
	"payment_method",
	"payment_intent_id",
	"external_txn_id",
	"subtotal_cents",
	"shipping_cents",
	"tax_cents",
	"discount_cents",
	"total_cents",
	"currency",
	"created_at",
	"updated_at",
	"shipped_at",
	"delivered_at",
}

// OrderDal represents the order data access layer model.
type OrderDal struct {
	Id                int64      `db:"id"`
	OrderNumber       string     `db:"order_number"`
	UserId            int64      `db:"user_id"`
	ShippingAddressId int64      `db:"shipping_address_id"`
	Status            string     `db:"status"`
	PaymentStatus     string     `db:"payment_status"`
	PaymentMethod     string     `db:"payment_method"`
	PaymentIntentId   *string    `db:"payment_intent_id"`
	ExternalTxnId     *string    `db:"external_txn_id"`
	SubtotalCents     int64      `db:"subtotal_cents"`
	ShippingCents     int64      `db:"shipping_cents"`
	TaxCents          int64      `db:"tax_cents"`
	DiscountCents     int64      `db:"discount_cents"`
	TotalCents        int64      `db:"total_cents"`
	Currency          string     `db:"currency"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	ShippedAt         *time.Time `db:"shipped_at"`
	DeliveredAt       *time.Time `db:"delivered_at"`
}

// ToModel converts OrderDal to the service layer Order model.
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}
	payStatus, err := order.ParsePaymentStatus(o.PaymentStatus)
	if err != nil {
		return nil, err
	}

	m := &order.Order{
		ID:                o.Id,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserId,
		ShippingAddressID: o.ShippingAddressId,
		Status:            status,
		PaymentStatus:     payStatus,
		PaymentMethod:     o.PaymentMethod,
		SubtotalCents:     o.SubtotalCents,
		ShippingCents:     o.ShippingCents,
		TaxCents:          o.TaxCents,
		DiscountCents:     o.DiscountCents,
		TotalCents:        o.TotalCents,
		Currency:          cur,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
		Lines:             []orderline.OrderLine{},
	}
	if o.PaymentIntentId != nil {
		m.PaymentIntentID = *o.PaymentIntentId
	}
	if o.ExternalTxnId != nil {
		m.ExternalTxnID = *o.ExternalTxnId
	}

	return m, nil
}

type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert persists a new order. The order_number unique constraint is the
// authority on number uniqueness; on a collision the insert retries with
// fresh entropy instead of failing the whole placement.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	for attempt := 0; ; attempt++ {
		inserted, err := r.insertOnce(ctx, o)
		if err == nil {
			return inserted, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && attempt < orderNumberRetries {
			o.OrderNumber = order.NewOrderNumber(time.Now())

			continue
		}

		return order.Order{}, err
	}
}

func (r *PostgresOrderRepository) insertOnce(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := r.sb.Insert("orders").
		Columns(
			"order_number",
			"user_id",
			"shipping_address_id",
			"status",
			"payment_status",
			"payment_method",
			"subtotal_cents",
			"shipping_cents",
			"tax_cents",
			"discount_cents",
			"total_cents",
			"currency",
			"created_at",
			"updated_at",
		).
		Values(
			o.OrderNumber,
			o.UserID,
			o.ShippingAddressID,
			o.Status.String(),
			o.PaymentStatus.String(),
			o.PaymentMethod,
			o.SubtotalCents,
			o.ShippingCents,
			o.TaxCents,
			o.DiscountCents,
			o.TotalCents,
			o.Currency.String(),
			o.CreatedAt,
			o.UpdatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	return o, nil
}

// GetByID retrieves a single order without its lines.
func (r *PostgresOrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	query, args, err := r.sb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows iteration error: %w", err)
		}

		return nil, order.ErrNotFound
	}

	dal, err := scanOrder(rows)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

// Query retrieves orders based on filter criteria.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := r.sb.Select(orderColumns...).From("orders").OrderBy("id DESC")

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}
	if len(filter.UserIds) > 0 {
		builder = builder.Where(sq.Eq{"user_id": filter.UserIds})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		dal, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// SetPaymentIntent records the gateway intent id on the order.
func (r *PostgresOrderRepository) SetPaymentIntent(ctx context.Context, orderID int64, intentID string) error {
	query, args, err := r.sb.Update("orders").
		Set("payment_intent_id", intentID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	return nil
}

// SetPaymentResult applies the capture outcome in a single statement.
func (r *PostgresOrderRepository) SetPaymentResult(
	ctx context.Context,
	orderID int64,
	status order.Status,
	paymentStatus order.PaymentStatus,
	externalTxnID string,
) error {
	builder := r.sb.Update("orders").
		Set("status", status.String()).
		Set("payment_status", paymentStatus.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": orderID})

	if externalTxnID != "" {
		builder = builder.Set("external_txn_id", externalTxnID)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set payment result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	return nil
}

// UpdateStatus moves the order to the given status, stamping shipped and
// delivered timestamps when provided. Timestamps are written with COALESCE
// so an already-set value is never overwritten.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	orderID int64,
	status order.Status,
	shippedAt *time.Time,
	deliveredAt *time.Time,
) error {
	builder := r.sb.Update("orders").
		Set("status", status.String()).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": orderID})

	if shippedAt != nil {
		builder = builder.Set("shipped_at", sq.Expr("COALESCE(shipped_at, ?)", *shippedAt))
	}
	if deliveredAt != nil {
		builder = builder.Set("delivered_at", sq.Expr("COALESCE(delivered_at, ?)", *deliveredAt))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}

	return nil
}

func scanOrder(rows pgx.Rows) (*OrderDal, error) {
	var dal OrderDal
	err := rows.Scan(
		&dal.Id,
		&dal.OrderNumber,
		&dal.UserId,
		&dal.ShippingAddressId,
		&dal.Status,
		&dal.PaymentStatus,
		&dal.PaymentMethod,
		&dal.PaymentIntentId,
		&dal.ExternalTxnId,
		&dal.SubtotalCents,
		&dal.ShippingCents,
		&dal.TaxCents,
		&dal.DiscountCents,
		&dal.TotalCents,
		&dal.Currency,
		&dal.CreatedAt,
		&dal.UpdatedAt,
		&dal.ShippedAt,
		&dal.DeliveredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return &dal, nil
}
