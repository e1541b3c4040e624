package order

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// Sentinel errors returned by Repository implementations.
var (
	ErrNotFound      = errors.New("order not found")
	ErrDuplicateID   = errors.New("order id already exists")
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// Item is a snapshot of a menu item taken when the order was placed. Later
// catalog edits never touch it.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Discount int             `json:"discount,omitempty"`
	Quantity int             `json:"quantity"`
}

// UnitPrice returns the price with the snapshot discount applied.
func (i Item) UnitPrice() decimal.Decimal {
	if i.Discount == 0 {
		return i.Price
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(i.Discount))).Div(hundred)
	return i.Price.Mul(factor)
}

// LineTotal returns UnitPrice multiplied by quantity, unrounded.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a customer purchase and its lifecycle state.
type Order struct {
	ID    string
	Items []Item
	// Total is fixed at creation and never recomputed from Items.
	Total  decimal.Decimal
	Status Status
	// CreatedAt never changes after creation.
	CreatedAt time.Time
	// LastStatusChangedAt is stamped at creation and on every transition.
	LastStatusChangedAt time.Time
	Notation            string
	CustomerName        string
	CustomerPhone       string
	PickupDateTime      string
	IsDelivery          bool
	Paid                bool
}

// NewID returns a fresh order identifier.
func NewID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString())
}

// CreateInput carries the fields of a new order. Total and CreatedAt are
// pointers so that absence can be told apart from zero.
type CreateInput struct {
	ID             string
	Items          []Item
	Total          *decimal.Decimal
	Status         Status
	CreatedAt      *time.Time
	Notation       string
	CustomerName   string
	CustomerPhone  string
	PickupDateTime string
	IsDelivery     bool
	Paid           bool
}

// Patch lists the fields to change on an existing order. Nil fields are left
// untouched.
type Patch struct {
	ID             string
	Status         *Status
	Notation       *string
	CustomerName   *string
	CustomerPhone  *string
	PickupDateTime *string
	IsDelivery     *bool
	Paid           *bool
}

func (p Patch) empty() bool {
	return p.Status == nil && p.Notation == nil && p.CustomerName == nil &&
		p.CustomerPhone == nil && p.PickupDateTime == nil && p.IsDelivery == nil && p.Paid == nil
}

// Change is a Patch resolved by the service for the repository. When
// Patch.Status is set, the row is written only while its status still equals
// FromStatus, and LastStatusChangedAt becomes ChangedAt.
type Change struct {
	Patch
	FromStatus Status
	ChangedAt  time.Time
}

// Filter selects orders by exact match on the set fields. From and To bound
// LastStatusChangedAt inclusively.
type Filter struct {
	ID            *string
	Status        *Status
	Paid          *bool
	IsDelivery    *bool
	CustomerName  *string
	CustomerPhone *string
	From          *time.Time
	To            *time.Time
}

// ParseFilter builds a Filter from query parameters.
func ParseFilter(params map[string]string) (Filter, error) {
	var f Filter
	for key, raw := range params {
		v := raw
		switch key {
		case "id":
			f.ID = &v
		case "status":
			s, err := ParseStatus(v)
			if err != nil {
				return Filter{}, err
			}
			f.Status = &s
		case "paid", "isDelivery":
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Filter{}, fault.Validation("invalid %s filter %q", key, v)
			}
			if key == "paid" {
				f.Paid = &b
			} else {
				f.IsDelivery = &b
			}
		case "customerName":
			f.CustomerName = &v
		case "customerPhone":
			f.CustomerPhone = &v
		case "from", "to":
			ts, err := ParseTimestamp(v)
			if err != nil {
				return Filter{}, fault.Validation("invalid %s filter %q", key, v)
			}
			if key == "from" {
				f.From = &ts
			} else {
				f.To = &ts
			}
		default:
			return Filter{}, fault.Validation("unknown filter field %q", key)
		}
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return Filter{}, fault.Validation("filter range ends before it starts")
	}
	return f, nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	List(ctx context.Context, f Filter) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, id string, ch Change) (*Order, error)
	Delete(ctx context.Context, id string) (*Order, error)
}

// Timestamps are exchanged the way browsers print Date.toISOString().
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp accepts RFC 3339 timestamps with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}

var pickupLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ValidPickup reports whether s is an ISO-8601 date-time, including the
// zone-less form produced by datetime-local inputs.
func ValidPickup(s string) bool {
	for _, layout := range pickupLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
