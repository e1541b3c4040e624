// Package payment adapts card payment processors to checkout.Processor.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/xenking/takeaway/internal/domain/checkout"
)

// intents is the subset of the Stripe PaymentIntents client used here.
type intents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

var _ checkout.Processor = (*Stripe)(nil)

// Stripe creates, retrieves and cancels PaymentIntents.
type Stripe struct {
	intents intents
}

// NewStripe returns a Stripe processor authenticated with secretKey.
func NewStripe(secretKey string) (*Stripe, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key is empty")
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents}, nil
}

// CreateIntent creates a PaymentIntent with automatic payment methods. The
// order id doubles as idempotency key, so creating it again for the same order
// returns the intent created first.
func (s *Stripe) CreateIntent(ctx context.Context, p checkout.IntentParams) (*checkout.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(p.Amount),
		Currency: stripe.String(p.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.Description != "" {
		params.Description = stripe.String(p.Description)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.OrderID != "" {
		params.SetIdempotencyKey("checkout-" + p.OrderID)
	}
	params.Context = ctx

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}
	return toIntent(pi), nil
}

// GetIntent retrieves a PaymentIntent by id.
func (s *Stripe) GetIntent(ctx context.Context, id string) (*checkout.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.intents.Get(id, params)
	if err != nil {
		return nil, errors.Wrapf(err, "get payment intent %q", id)
	}
	return toIntent(pi), nil
}

// CancelIntent cancels a PaymentIntent that has not been paid.
func (s *Stripe) CancelIntent(ctx context.Context, id string) (*checkout.Intent, error) {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	pi, err := s.intents.Cancel(id, params)
	if err != nil {
		return nil, errors.Wrapf(err, "cancel payment intent %q", id)
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *checkout.Intent {
	return &checkout.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       checkout.IntentStatus(pi.Status),
	}
}
