// Package checkout coordinates how a cart becomes an order.
//
// Cash orders are recorded immediately. Card orders are two-phase: Checkout
// reserves an order id, creates a payment intent and stores the draft in a
// Session; Confirm turns the session into an order once the processor reports
// the intent as succeeded.
package checkout

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
)

// Sentinel errors returned by Repository implementations.
var (
	ErrNotFound    = errors.New("checkout session not found")
	ErrDuplicateID = errors.New("checkout session already exists")
)

// Method is how the customer pays.
type Method string

const (
	MethodCash Method = "efectivo"
	MethodCard Method = "tarjeta"
)

// ParseMethod accepts the canonical values and "cash"/"card".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "efectivo", "cash":
		return MethodCash, nil
	case "tarjeta", "card":
		return MethodCard, nil
	case "":
		return "", fault.MissingField("paymentMethod")
	default:
		return "", fault.Validation("unknown payment method %q", s)
	}
}

// Line is one cart entry as submitted by the storefront.
type Line struct {
	ID       string
	Quantity int
}

// Request is a submitted cart plus customer details.
type Request struct {
	Method         Method
	Lines          []Line
	OrderID        string
	CustomerName   string
	CustomerPhone  string
	Notation       string
	PickupDateTime string
	IsDelivery     bool
}

var (
	customerNameRe  = regexp.MustCompile(`^[\p{L}\s]+$`)
	customerPhoneRe = regexp.MustCompile(`^[0-9]{9,15}$`)
)

func (r *Request) validate() error {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	switch {
	case len(r.Lines) == 0:
		return fault.MissingField("items")
	case r.CustomerName == "":
		return fault.MissingField("customerName")
	case r.CustomerPhone == "":
		return fault.MissingField("customerPhone")
	case r.Method == "":
		return fault.MissingField("paymentMethod")
	}
	if !customerNameRe.MatchString(r.CustomerName) {
		return fault.Validation("customerName must contain only letters and spaces")
	}
	if !customerPhoneRe.MatchString(r.CustomerPhone) {
		return fault.Validation("customerPhone must have between 9 and 15 digits")
	}
	for i, l := range r.Lines {
		if l.ID == "" {
			return fault.Validation("items[%d]: missing required field: id", i)
		}
		if l.Quantity <= 0 {
			return fault.Validation("items[%d]: quantity must be greater than 0", i)
		}
	}
	return nil
}

// Draft is the order a card session will materialize on confirmation.
type Draft struct {
	Items          []order.Item    `json:"items"`
	Total          decimal.Decimal `json:"total"`
	Notation       string          `json:"notation,omitempty"`
	CustomerName   string          `json:"customerName"`
	CustomerPhone  string          `json:"customerPhone"`
	PickupDateTime string          `json:"pickupDateTime,omitempty"`
	IsDelivery     bool            `json:"isDelivery"`
}

// State of a Session.
type State string

const (
	StateOpen      State = "open"
	StateCompleted State = "completed"
)

// Session is a pending card payment. Its ID is the order id reserved for it.
type Session struct {
	ID              string
	PaymentIntentID string
	ClientSecret    string
	Amount          decimal.Decimal
	Currency        string
	Draft           Draft
	State           State
	CreatedAt       time.Time
	ExpiresAt       time.Time
	CompletedAt     *time.Time
}

// Repository persists checkout sessions.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*Session, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	// ListExpired returns up to limit open sessions whose ExpiresAt is before
	// the given time, oldest first.
	ListExpired(ctx context.Context, before time.Time, limit int) ([]Session, error)
	// Delete removes an open session. Completed sessions are kept.
	Delete(ctx context.Context, id string) error
}

// IntentStatus is the processor-side state of a payment intent.
type IntentStatus string

const (
	// IntentSucceeded is the only status that materializes an order.
	IntentSucceeded IntentStatus = "succeeded"
	// IntentCanceled intents can no longer be paid.
	IntentCanceled IntentStatus = "canceled"
)

// Intent is a payment intent as reported by the processor.
type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
}

// IntentParams describes a payment intent to create.
type IntentParams struct {
	// Amount is in the currency's minor unit.
	Amount      int64
	Currency    string
	OrderID     string
	Description string
	Metadata    map[string]string
}

// Processor is a card payment processor.
type Processor interface {
	CreateIntent(ctx context.Context, p IntentParams) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	// CancelIntent cancels an intent that has not been paid. It fails for
	// intents that succeeded, are processing or were already cancelled.
	CancelIntent(ctx context.Context, id string) (*Intent, error)
}

// Catalog resolves cart lines to menu items.
type Catalog interface {
	Lookup(ctx context.Context, ids []string) ([]menu.Item, error)
}

// Orders records orders.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, in order.CreateInput) (*order.Order, error)
}

// Result is the outcome of Checkout.
type Result struct {
	Method  Method
	OrderID string
	Total   decimal.Decimal
	// Order is set for cash checkouts.
	Order *order.Order
	// ClientSecret and PaymentIntentID are set for card checkouts.
	ClientSecret    string
	PaymentIntentID string
}

// ToMinorUnits converts a two-decimal amount to cents.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
