package payment

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/takeaway/internal/domain/checkout"
)

// ErrDisabled is returned by Disabled for every call.
var ErrDisabled = errors.New("card payments are not configured")

var _ checkout.Processor = Disabled{}

// Disabled is the processor used when no card processor is configured. Cash
// checkout keeps working; card checkout fails as an external error.
type Disabled struct{}

func (Disabled) CreateIntent(context.Context, checkout.IntentParams) (*checkout.Intent, error) {
	return nil, ErrDisabled
}

func (Disabled) GetIntent(context.Context, string) (*checkout.Intent, error) {
	return nil, ErrDisabled
}

func (Disabled) CancelIntent(context.Context, string) (*checkout.Intent, error) {
	return nil, ErrDisabled
}
