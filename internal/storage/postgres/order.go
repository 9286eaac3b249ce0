package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/go-faster/errors"

	"github.com/emkart/storefront/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a freshly minted checkout order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO checkout_orders (handle, amount, currency, status, idempotency_key)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		o.Handle, o.Amount, o.Currency, string(o.Status), o.IdempotencyKey)
	if err != nil {
		return errors.Wrapf(err, "creating order %q", o.Handle)
	}
	return nil
}

// GetByHandle returns the order with the given gateway handle.
func (r *OrderRepository) GetByHandle(ctx context.Context, handle string) (*order.Order, error) {
	return r.getOne(ctx,
		`SELECT handle, amount, currency, status, COALESCE(payment_id, ''),
		        COALESCE(idempotency_key, ''), created_at
		 FROM checkout_orders WHERE handle = $1`, handle)
}

// GetByIdempotencyKey returns the order previously created for the given key.
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return r.getOne(ctx,
		`SELECT handle, amount, currency, status, COALESCE(payment_id, ''),
		        COALESCE(idempotency_key, ''), created_at
		 FROM checkout_orders WHERE idempotency_key = $1`, key)
}

func (r *OrderRepository) getOne(ctx context.Context, query, arg string) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&o.Handle, &o.Amount, &o.Currency, &status,
		&o.PaymentID, &o.IdempotencyKey, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "getting order")
	}
	o.Status = order.Status(status)
	return &o, nil
}

// Settle conditionally marks the order settled. The status predicate makes
// concurrent settles single-winner: only the first update touches the row.
func (r *OrderRepository) Settle(ctx context.Context, handle, paymentID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE checkout_orders
		 SET status = $3, payment_id = $2, settled_at = now()
		 WHERE handle = $1 AND status = $4`,
		handle, paymentID, string(order.StatusSettled), string(order.StatusCreated))
	if err != nil {
		return false, errors.Wrapf(err, "settling order %q", handle)
	}
	return tag.RowsAffected() == 1, nil
}
