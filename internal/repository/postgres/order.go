package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
)

// orderSelect loads an order with its items aggregated into one JSON array
// so a single query returns the whole aggregate. The JSON keys match
// domain.LineItem.
const orderSelect = `
		SELECT
			o.id, o.user_id, o.status, o.total_amount, o.shipping_address,
			o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'productId', oi.product_id,
						'name', oi.name,
						'quantity', oi.quantity,
						'unitPrice', oi.unit_price
					) ORDER BY oi.position
				) FILTER (WHERE oi.order_id IS NOT NULL),
				'[]'::jsonb
			) AS items`

const orderGroupBy = `
		GROUP BY o.id, o.user_id, o.status, o.total_amount, o.shipping_address,
			o.created_at, o.updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order and its items atomically.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	orderQuery := `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	itemQuery := `
		INSERT INTO order_items (order_id, position, product_id, name, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "orders.Create", orderQuery)
	defer func() { end(err) }()

	_, err = database.WithTx(ctx, r.pool, func(tx pgx.Tx) (struct{}, error) {
		if _, err := tx.Exec(ctx, orderQuery,
			o.ID,
			o.UserID,
			string(o.Status),
			o.TotalAmount,
			o.ShippingAddress,
			o.CreatedAt,
			o.UpdatedAt,
		); err != nil {
			return struct{}{}, fmt.Errorf("insert order: %w", err)
		}

		for i, item := range o.Items {
			if _, err := tx.Exec(ctx, itemQuery,
				o.ID,
				i,
				item.ProductID,
				item.Name,
				item.Quantity,
				item.UnitPrice,
			); err != nil {
				return struct{}{}, fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// GetByID retrieves an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := orderSelect + `
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id = $1` + orderGroupBy
	return r.getOne(ctx, "orders.GetByID", query, id)
}

// GetForUser retrieves an order by id when userID owns it. Ownership is part
// of the lookup predicate.
func (r *OrderRepository) GetForUser(ctx context.Context, id, userID string) (*domain.Order, error) {
	query := orderSelect + `
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.id = $1 AND o.user_id = $2` + orderGroupBy
	return r.getOne(ctx, "orders.GetForUser", query, id, userID)
}

// ListByUser returns the user's orders newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page pagination.Params) (_ []domain.Order, _ int, err error) {
	query := orderSelect + `, COUNT(*) OVER() AS total_count
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = $1` + orderGroupBy + `
		ORDER BY o.created_at DESC, o.id`
	args := []any{userID}
	if page.Paged {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, page.Limit(), page.Offset)
	}

	ctx, end := database.TraceQuery(ctx, "orders.ListByUser", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	total := 0
	for rows.Next() {
		o, err := scanOrder(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, total, nil
}

// TransitionStatus applies from -> to only while the order is still in
// from, so two concurrent writers cannot both succeed.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id, userID string, from, to domain.OrderStatus) (_ bool, err error) {
	query := `UPDATE orders SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
	args := []any{string(to), id, string(from)}
	if userID != "" {
		query += ` AND user_id = $4`
		args = append(args, userID)
	}

	ctx, end := database.TraceQuery(ctx, "orders.TransitionStatus", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepository) getOne(ctx context.Context, op, query string, args ...any) (_ *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...), nil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// scanOrder reads one order row. When total is non-nil the row carries a
// trailing total_count column.
func scanOrder(row pgx.Row, total *int) (*domain.Order, error) {
	var (
		o         domain.Order
		status    string
		itemsJSON []byte
	)
	dest := []any{
		&o.ID,
		&o.UserID,
		&status,
		&o.TotalAmount,
		&o.ShippingAddress,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	}
	if total != nil {
		dest = append(dest, total)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = domain.OrderStatus(status)

	o.Items = []domain.LineItem{}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return &o, nil
}
