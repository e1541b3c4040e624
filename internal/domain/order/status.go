package order

import (
	"fmt"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// Status is the lifecycle state of an order. Values match what the dashboard
// and storefront clients send and display.
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusPreparing Status = "preparando"
	StatusReady     Status = "listo"
	StatusDelivered Status = "entregado"
	StatusCancelled Status = "cancelado"
)

var statusAliases = map[string]Status{
	"pending":   StatusPending,
	"preparing": StatusPreparing,
	"ready":     StatusReady,
	"delivered": StatusDelivered,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
}

// ParseStatus accepts the canonical values and their English aliases.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st.Valid() {
		return st, nil
	}
	if alias, ok := statusAliases[s]; ok {
		return alias, nil
	}
	return "", fault.Validation("unknown order status %q", s)
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Actor identifies who requests a transition.
type Actor int

const (
	ActorStaff Actor = iota
	ActorCustomer
)

func (a Actor) String() string {
	if a == ActorCustomer {
		return "customer"
	}
	return "staff"
}

// transitions maps a status to the statuses reachable from it and the actors
// allowed to request each move.
var transitions = map[Status]map[Status][]Actor{
	StatusPending: {
		StatusPreparing: {ActorStaff},
		StatusCancelled: {ActorStaff, ActorCustomer},
	},
	StatusPreparing: {
		StatusReady:     {ActorStaff},
		StatusCancelled: {ActorStaff},
	},
	StatusReady: {
		StatusDelivered: {ActorStaff},
		StatusCancelled: {ActorStaff},
	},
}

// TransitionError reports a move that the lifecycle does not allow.
type TransitionError struct {
	From  Status
	To    Status
	Actor Actor
}

func (e *TransitionError) Error() string {
	if e.From.Terminal() {
		return fmt.Sprintf("order is %s and can no longer change status", e.From)
	}
	return fmt.Sprintf("%s cannot move an order from %s to %s", e.Actor, e.From, e.To)
}

// CanTransition reports whether actor may move an order from one status to another.
func CanTransition(from, to Status, actor Actor) bool {
	for _, a := range transitions[from][to] {
		if a == actor {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when the move is not allowed.
func CheckTransition(from, to Status, actor Actor) error {
	if CanTransition(from, to, actor) {
		return nil
	}
	return &TransitionError{From: from, To: to, Actor: actor}
}

// Next returns the statuses actor may move an order to from s.
func Next(s Status, actor Actor) []Status {
	var out []Status
	for _, to := range []Status{StatusPreparing, StatusReady, StatusDelivered, StatusCancelled} {
		if CanTransition(s, to, actor) {
			out = append(out, to)
		}
	}
	return out
}
