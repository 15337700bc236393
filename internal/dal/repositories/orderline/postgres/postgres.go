package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/checkout/internal/dal/postgres"
	"github.com/corray333/backend-labs/checkout/internal/service/models/currency"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderline"
)

// OrderLineDal represents the order line data access layer model.
type OrderLineDal struct {
	Id              int64     `db:"id"`
	OrderId         int64     `db:"order_id"`
	ProductId       int64     `db:"product_id"`
	VendorId        int64     `db:"vendor_id"`
	ProductTitle    string    `db:"product_title"`
	ProductImageUrl string    `db:"product_image_url"`
	Quantity        int       `db:"quantity"`
	UnitPriceCents  int64     `db:"unit_price_cents"`
	LineTotalCents  int64     `db:"line_total_cents"`
	PriceCurrency   string    `db:"price_currency"`
	CreatedAt       time.Time `db:"created_at"`
}

// ToModel converts OrderLineDal to the service layer OrderLine model.
func (l *OrderLineDal) ToModel() (*orderline.OrderLine, error) {
	cur, err := currency.ParseCurrency(l.PriceCurrency)
	if err != nil {
		return nil, err
	}

	return &orderline.OrderLine{
		ID:              l.Id,
		OrderID:         l.OrderId,
		ProductID:       l.ProductId,
		VendorID:        l.VendorId,
		ProductTitle:    l.ProductTitle,
		ProductImageURL: l.ProductImageUrl,
		Quantity:        l.Quantity,
		UnitPriceCents:  l.UnitPriceCents,
		LineTotalCents:  l.LineTotalCents,
		PriceCurrency:   cur,
		CreatedAt:       l.CreatedAt,
	}, nil
}

// PostgresOrderLineRepository represents a Postgres order line repository.
type PostgresOrderLineRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresOrderLineRepository(conn postgres.GenericConn) *PostgresOrderLineRepository {
	return &PostgresOrderLineRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts all lines of an order in one statement via unnest and
// returns them with generated ids.
func (r *PostgresOrderLineRepository) BulkInsert(
	ctx context.Context,
	lines []orderline.OrderLine,
) ([]orderline.OrderLine, error) {
	if len(lines) == 0 {
		return []orderline.OrderLine{}, nil
	}

	sql := `
		INSERT INTO order_lines (
			order_id,
			product_id,
			vendor_id,
			product_title,
			product_image_url,
			quantity,
			unit_price_cents,
			line_total_cents,
			price_currency,
			created_at
		)
		SELECT
			order_id,
			product_id,
			vendor_id,
			product_title,
			product_image_url,
			quantity,
			unit_price_cents,
			line_total_cents,
			price_currency,
			created_at
		FROM unnest(
			$1::bigint[], $2::bigint[], $3::bigint[], $4::text[], $5::text[],
			$6::int[], $7::bigint[], $8::bigint[], $9::text[], $10::timestamptz[]
		) AS t(
			order_id, product_id, vendor_id, product_title, product_image_url,
			quantity, unit_price_cents, line_total_cents, price_currency, created_at
		)
		RETURNING
			id,
			order_id,
			product_id,
			vendor_id,
			product_title,
			product_image_url,
			quantity,
			unit_price_cents,
			line_total_cents,
			price_currency,
			created_at
	`

	orderIds := make([]int64, len(lines))
	productIds := make([]int64, len(lines))
	vendorIds := make([]int64, len(lines))
	titles := make([]string, len(lines))
	imageUrls := make([]string, len(lines))
	quantities := make([]int32, len(lines))
	unitPrices := make([]int64, len(lines))
	lineTotals := make([]int64, len(lines))
	currencies := make([]string, len(lines))
	createdAts := make([]time.Time, len(lines))

	for i, l := range lines {
		orderIds[i] = l.OrderID
		productIds[i] = l.ProductID
		vendorIds[i] = l.VendorID
		titles[i] = l.ProductTitle
		imageUrls[i] = l.ProductImageURL
		quantities[i] = int32(l.Quantity)
		unitPrices[i] = l.UnitPriceCents
		lineTotals[i] = l.LineTotalCents
		currencies[i] = l.PriceCurrency.String()
		createdAts[i] = l.CreatedAt
	}

	rows, err := r.conn.Query(ctx, sql,
		orderIds,
		productIds,
		vendorIds,
		titles,
		imageUrls,
		quantities,
		unitPrices,
		lineTotals,
		currencies,
		createdAts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order lines: %w", err)
	}
	defer rows.Close()

	var result []orderline.OrderLine
	for rows.Next() {
		var dal OrderLineDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.VendorId,
			&dal.ProductTitle,
			&dal.ProductImageUrl,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.LineTotalCents,
			&dal.PriceCurrency,
			&dal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order line dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// ListByOrderIDs retrieves all lines for the given orders.
func (r *PostgresOrderLineRepository) ListByOrderIDs(
	ctx context.Context,
	orderIDs []int64,
) ([]orderline.OrderLine, error) {
	if len(orderIDs) == 0 {
		return []orderline.OrderLine{}, nil
	}

	query, args, err := r.sb.Select(
		"id",
		"order_id",
		"product_id",
		"vendor_id",
		"product_title",
		"product_image_url",
		"quantity",
		"unit_price_cents",
		"line_total_cents",
		"price_currency",
		"created_at",
	).
		From("order_lines").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var result []orderline.OrderLine
	for rows.Next() {
		var dal OrderLineDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.VendorId,
			&dal.ProductTitle,
			&dal.ProductImageUrl,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.LineTotalCents,
			&dal.PriceCurrency,
			&dal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order line dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
