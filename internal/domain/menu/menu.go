package menu

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// Sentinel errors returned by Repository implementations.
var (
	ErrNotFound    = errors.New("menu item not found")
	ErrDuplicateID = errors.New("menu item id already exists")
)

var hundred = decimal.NewFromInt(100)

// Item is a sellable catalog entry.
type Item struct {
	ID           string
	Name         string
	Description  string
	Price        decimal.Decimal
	IsOutOfStock bool
	// Discount is a whole percentage in [0, 100].
	Discount int
	Image    string
}

// DiscountedPrice returns the unit price with the item discount applied.
func (i Item) DiscountedPrice() decimal.Decimal {
	if i.Discount == 0 {
		return i.Price
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(i.Discount))).Div(hundred)
	return i.Price.Mul(factor)
}

// Filter selects items by exact match. Nil fields are ignored.
type Filter struct {
	ID           *string
	Name         *string
	IsOutOfStock *bool
	Discount     *int
	Price        *decimal.Decimal
}

// ParseFilter builds a Filter from query parameters. Unknown keys are rejected
// rather than silently matching nothing.
func ParseFilter(params map[string]string) (Filter, error) {
	var f Filter
	for key, raw := range params {
		v := raw
		switch key {
		case "id":
			f.ID = &v
		case "name":
			f.Name = &v
		case "isOutOfStock":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Filter{}, fault.Validation("invalid isOutOfStock filter %q", v)
			}
			f.IsOutOfStock = &b
		case "discount":
			d, err := strconv.Atoi(v)
			if err != nil {
				return Filter{}, fault.Validation("invalid discount filter %q", v)
			}
			f.Discount = &d
		case "price":
			p, err := decimal.NewFromString(v)
			if err != nil {
				return Filter{}, fault.Validation("invalid price filter %q", v)
			}
			f.Price = &p
		default:
			return Filter{}, fault.Validation("unknown filter field %q", key)
		}
	}
	return f, nil
}

// CreateInput holds the fields accepted when creating an item. Pointer fields
// distinguish "absent" from the zero value.
type CreateInput struct {
	ID           string
	Name         string
	Description  string
	Price        *decimal.Decimal
	IsOutOfStock *bool
	Discount     *int
	Image        string
}

// Patch lists the fields to change on update. Nil fields are left untouched.
type Patch struct {
	Name         *string
	Description  *string
	Price        *decimal.Decimal
	IsOutOfStock *bool
	Discount     *int
	Image        *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.IsOutOfStock == nil && p.Discount == nil && p.Image == nil
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	Create(ctx context.Context, item *Item) error
	Upsert(ctx context.Context, item *Item) error
	Update(ctx context.Context, id string, p Patch) (*Item, error)
	Delete(ctx context.Context, id string) (*Item, error)
}
