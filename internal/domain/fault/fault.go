// Package fault classifies errors crossing a domain service boundary.
//
// Services never return raw storage or payment-processor errors. Each error is
// wrapped into an *Error carrying a Kind (what the caller should do about it),
// a public message safe to show to clients, and the underlying cause for logs.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind enumerates error classes understood by the transport layer.
type Kind int

const (
	// KindInternal is an unclassified failure.
	KindInternal Kind = iota
	// KindValidation is a missing or malformed input field.
	KindValidation
	// KindNotFound means no record matches the requested id.
	KindNotFound
	// KindConflict is an illegal state transition or a duplicate id.
	KindConflict
	// KindPersistence is a storage failure.
	KindPersistence
	// KindExternal is a payment processor failure.
	KindExternal
	// KindPaymentRequired means the payment did not succeed.
	KindPaymentRequired
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPersistence:
		return "persistence"
	case KindExternal:
		return "external"
	case KindPaymentRequired:
		return "payment_required"
	default:
		return "internal"
	}
}

// Public messages for kinds whose detail must not leak to clients.
const (
	msgPersistence = "persistence failure, please retry"
	msgExternal    = "payment service unavailable, please retry the payment"
	msgInternal    = "internal error"
)

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports an invalid request field.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// MissingField reports an absent required field.
func MissingField(name string) *Error {
	return Validation("missing required field: %s", name)
}

// NotFound reports that no record of the given kind matches id.
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

// Conflict reports an operation that contradicts current state.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// PaymentRequired reports a payment that did not complete.
func PaymentRequired(format string, args ...any) *Error {
	return &Error{Kind: KindPaymentRequired, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a storage error. The message shown to clients is generic.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: op, Err: err}
}

// External wraps a payment processor error.
func External(op string, err error) *Error {
	return &Error{Kind: KindExternal, Message: op, Err: err}
}

// Wrap classifies err as kind, using err's own text as the public message.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text safe to show to a client for err.
func PublicMessage(err error) string {
	var fe *Error
	if !errors.As(err, &fe) {
		return msgInternal
	}
	switch fe.Kind {
	case KindPersistence:
		return msgPersistence
	case KindExternal:
		return msgExternal
	case KindInternal:
		return msgInternal
	default:
		if fe.Message == "" && fe.Err != nil {
			return fe.Err.Error()
		}
		return fe.Message
	}
}
