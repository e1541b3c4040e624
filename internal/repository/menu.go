package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/takeaway/internal/domain/menu"
)

const (
	menuColumns = `id, name, description, price, is_out_of_stock, discount, image`

	listMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items`

	getMenuItemSQL = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = $1`

	getMenuItemsByIDsSQL = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = ANY($1)`

	createMenuItemSQL = `INSERT INTO menu_items (` + menuColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	upsertMenuItemSQL = `INSERT INTO menu_items (` + menuColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			is_out_of_stock = EXCLUDED.is_out_of_stock,
			discount = EXCLUDED.discount,
			image = EXCLUDED.image,
			updated_at = NOW()`

	deleteMenuItemSQL = `DELETE FROM menu_items WHERE id = $1 RETURNING ` + menuColumns
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns the items matching f ordered by name.
func (r *MenuRepository) List(ctx context.Context, f menu.Filter) ([]menu.Item, error) {
	var p predicates
	if f.ID != nil {
		p.add("id = ?", *f.ID)
	}
	if f.Name != nil {
		p.add("name = ?", *f.Name)
	}
	if f.IsOutOfStock != nil {
		p.add("is_out_of_stock = ?", *f.IsOutOfStock)
	}
	if f.Discount != nil {
		p.add("discount = ?", *f.Discount)
	}
	if f.Price != nil {
		p.add("price = ?", *f.Price)
	}

	rows, err := r.pool.Query(ctx, listMenuSQL+p.where()+" ORDER BY name, id", p.args...)
	if err != nil {
		return nil, fmt.Errorf("listing menu items: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// GetByID returns a single item by its identifier.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return collectMenuItem(rows, id)
}

// GetByIDs returns items matching any of the given ids.
func (r *MenuRepository) GetByIDs(ctx context.Context, ids []string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting menu items by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

// Create inserts a new item. A taken id yields menu.ErrDuplicateID.
func (r *MenuRepository) Create(ctx context.Context, item *menu.Item) error {
	_, err := r.pool.Exec(ctx, createMenuItemSQL, menuArgs(item)...)
	if err != nil {
		if isUniqueViolation(err) {
			return menu.ErrDuplicateID
		}
		return fmt.Errorf("creating menu item %q: %w", item.ID, err)
	}
	return nil
}

// Upsert inserts item or overwrites the row with the same id.
func (r *MenuRepository) Upsert(ctx context.Context, item *menu.Item) error {
	_, err := r.pool.Exec(ctx, upsertMenuItemSQL, menuArgs(item)...)
	if err != nil {
		return fmt.Errorf("upserting menu item %q: %w", item.ID, err)
	}
	return nil
}

// Update writes the fields present in p and returns the updated row.
func (r *MenuRepository) Update(ctx context.Context, id string, p menu.Patch) (*menu.Item, error) {
	var a assignments
	if p.Name != nil {
		a.set("name", *p.Name)
	}
	if p.Description != nil {
		a.set("description", *p.Description)
	}
	if p.Price != nil {
		a.set("price", *p.Price)
	}
	if p.IsOutOfStock != nil {
		a.set("is_out_of_stock", *p.IsOutOfStock)
	}
	if p.Discount != nil {
		a.set("discount", *p.Discount)
	}
	if p.Image != nil {
		a.set("image", *p.Image)
	}
	if a.empty() {
		return r.GetByID(ctx, id)
	}

	query := `UPDATE menu_items SET ` + a.clause() + `, updated_at = NOW()
		WHERE id = ` + a.arg(id) + ` RETURNING ` + menuColumns
	rows, err := r.pool.Query(ctx, query, a.args...)
	if err != nil {
		return nil, fmt.Errorf("updating menu item %q: %w", id, err)
	}
	return collectMenuItem(rows, id)
}

// Delete removes the item and returns the deleted row.
func (r *MenuRepository) Delete(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, deleteMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("deleting menu item %q: %w", id, err)
	}
	return collectMenuItem(rows, id)
}

func menuArgs(item *menu.Item) []any {
	return []any{
		item.ID, item.Name, item.Description, item.Price,
		item.IsOutOfStock, item.Discount, item.Image,
	}
}

func collectMenuItem(rows pgx.Rows, id string) (*menu.Item, error) {
	item, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("reading menu item %q: %w", id, err)
	}
	return &item, nil
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var (
		item     menu.Item
		discount int32
	)
	err := row.Scan(
		&item.ID, &item.Name, &item.Description, &item.Price,
		&item.IsOutOfStock, &discount, &item.Image,
	)
	item.Discount = int(discount)
	return item, err
}
