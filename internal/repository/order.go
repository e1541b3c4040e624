package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/takeaway/internal/domain/order"
)

const (
	orderColumns = `id, items, total, status, created_at, last_status_changed_at,
		notation, customer_name, customer_phone, pickup_date_time, is_delivery, paid`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1 RETURNING ` + orderColumns
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

// List returns the orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var p predicates
	if f.ID != nil {
		p.add("id = ?", *f.ID)
	}
	if f.Status != nil {
		p.add("status = ?", string(*f.Status))
	}
	if f.Paid != nil {
		p.add("paid = ?", *f.Paid)
	}
	if f.IsDelivery != nil {
		p.add("is_delivery = ?", *f.IsDelivery)
	}
	if f.CustomerName != nil {
		p.add("customer_name = ?", *f.CustomerName)
	}
	if f.CustomerPhone != nil {
		p.add("customer_phone = ?", *f.CustomerPhone)
	}
	if f.From != nil {
		p.add("last_status_changed_at >= ?", *f.From)
	}
	if f.To != nil {
		p.add("last_status_changed_at <= ?", *f.To)
	}

	rows, err := r.pool.Query(ctx, listOrdersSQL+p.where()+" ORDER BY created_at DESC, id", p.args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return collectOrder(rows, id)
}

// Exists reports whether an order with id is stored.
func (r *OrderRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking order %q: %w", id, err)
	}
	return ok, nil
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column. A taken id yields order.ErrDuplicateID.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, itemsJSON, o.Total, string(o.Status), o.CreatedAt, o.LastStatusChangedAt,
		o.Notation, o.CustomerName, o.CustomerPhone, o.PickupDateTime, o.IsDelivery, o.Paid,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateID
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// Update writes the fields present in ch. A status change only applies while
// the stored status still equals ch.FromStatus; otherwise the row is left
// untouched and order.ErrStatusChanged is returned.
func (r *OrderRepository) Update(ctx context.Context, id string, ch order.Change) (*order.Order, error) {
	var a assignments
	if ch.Status != nil {
		a.set("status", string(*ch.Status))
		a.set("last_status_changed_at", ch.ChangedAt)
	}
	if ch.Notation != nil {
		a.set("notation", *ch.Notation)
	}
	if ch.CustomerName != nil {
		a.set("customer_name", *ch.CustomerName)
	}
	if ch.CustomerPhone != nil {
		a.set("customer_phone", *ch.CustomerPhone)
	}
	if ch.PickupDateTime != nil {
		a.set("pickup_date_time", *ch.PickupDateTime)
	}
	if ch.IsDelivery != nil {
		a.set("is_delivery", *ch.IsDelivery)
	}
	if ch.Paid != nil {
		a.set("paid", *ch.Paid)
	}
	if a.empty() {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE orders SET ` + a.clause() + ` WHERE id = ` + a.arg(id)
	if ch.Status != nil {
		query += ` AND status = ` + a.arg(string(ch.FromStatus))
	}
	query += ` RETURNING ` + orderColumns

	rows, err := r.pool.Query(ctx, query, a.args...)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}
	o, err := collectOrder(rows, id)
	if errors.Is(err, order.ErrNotFound) && ch.Status != nil {
		exists, existsErr := r.Exists(ctx, id)
		if existsErr != nil {
			return nil, existsErr
		}
		if exists {
			return nil, order.ErrStatusChanged
		}
	}
	return o, err
}

// Delete removes the order and returns the deleted row.
func (r *OrderRepository) Delete(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, deleteOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("deleting order %q: %w", id, err)
	}
	return collectOrder(rows, id)
}

func collectOrder(rows pgx.Rows, id string) (*order.Order, error) {
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("reading order %q: %w", id, err)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		status    string
	)
	err := row.Scan(
		&o.ID, &itemsJSON, &o.Total, &status, &o.CreatedAt, &o.LastStatusChangedAt,
		&o.Notation, &o.CustomerName, &o.CustomerPhone, &o.PickupDateTime, &o.IsDelivery, &o.Paid,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling items of order %q: %w", o.ID, err)
	}
	return o, nil
}
