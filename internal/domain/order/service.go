package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// Service encapsulates the order record rules and the lifecycle state machine.
type Service struct {
	repo Repository
	now  func() time.Time

	created     metric.Int64Counter
	transitions metric.Int64Counter
}

// NewService creates an order Service. Counters are registered on meter.
func NewService(repo Repository, meter metric.Meter) (*Service, error) {
	created, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Orders persisted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.created counter")
	}
	transitions, err := meter.Int64Counter("orders.transitions",
		metric.WithDescription("Order status transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders.transitions counter")
	}
	return &Service{
		repo:        repo,
		now:         time.Now,
		created:     created,
		transitions: transitions,
	}, nil
}

// List returns the orders matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fault.Persistence("list orders", err)
	}
	return orders, nil
}

// Get returns a single order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, fault.MissingField("id")
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify("get order", id, err)
	}
	return o, nil
}

// Exists reports whether an order with id is stored.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return false, fault.Persistence("check order", err)
	}
	return ok, nil
}

// Create validates in and persists a new order in its initial state.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if err := validateItems(in.Items); err != nil {
		return nil, err
	}
	switch {
	case in.Total == nil:
		return nil, fault.MissingField("total")
	case in.Status == "":
		return nil, fault.MissingField("status")
	case in.CreatedAt == nil:
		return nil, fault.MissingField("timestamp")
	}
	if !in.Status.Valid() {
		return nil, fault.Validation("unknown order status %q", in.Status)
	}
	if in.Status != StatusPending {
		return nil, fault.Validation("new orders must start as %s", StatusPending)
	}
	if want := ComputeTotal(in.Items); !in.Total.Round(2).Equal(want) {
		return nil, fault.Validation("total %s does not match items total %s",
			FormatTotal(*in.Total), FormatTotal(want))
	}
	if in.PickupDateTime != "" && !ValidPickup(in.PickupDateTime) {
		return nil, fault.Validation("invalid pickupDateTime %q", in.PickupDateTime)
	}

	o := &Order{
		ID:                  in.ID,
		Items:               in.Items,
		Total:               in.Total.Round(2),
		Status:              in.Status,
		CreatedAt:           *in.CreatedAt,
		LastStatusChangedAt: *in.CreatedAt,
		Notation:            in.Notation,
		CustomerName:        in.CustomerName,
		CustomerPhone:       in.CustomerPhone,
		PickupDateTime:      in.PickupDateTime,
		IsDelivery:          in.IsDelivery,
		Paid:                in.Paid,
	}
	if o.ID == "" {
		o.ID = NewID()
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, classify("create order", o.ID, err)
	}
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.Bool("paid", o.Paid)))
	return o, nil
}

// Update applies the fields present in p on behalf of staff. A status change
// must follow the lifecycle table and stamps LastStatusChangedAt; the paid
// flag and customer fields change independently of status.
func (s *Service) Update(ctx context.Context, p Patch) (*Order, error) {
	return s.update(ctx, p, ActorStaff)
}

// Transition moves the order to status on behalf of actor.
func (s *Service) Transition(ctx context.Context, id string, to Status, actor Actor) (*Order, error) {
	return s.update(ctx, Patch{ID: id, Status: &to}, actor)
}

// Cancel moves the order to cancelado. Customers may only cancel pending orders.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) (*Order, error) {
	return s.Transition(ctx, id, StatusCancelled, actor)
}

// MarkPaid sets the paid flag without touching status.
func (s *Service) MarkPaid(ctx context.Context, id string, paid bool) (*Order, error) {
	return s.update(ctx, Patch{ID: id, Paid: &paid}, ActorStaff)
}

func (s *Service) update(ctx context.Context, p Patch, actor Actor) (*Order, error) {
	if p.ID == "" {
		return nil, fault.MissingField("id")
	}
	if p.CustomerName != nil && *p.CustomerName == "" {
		p.CustomerName = nil
	}
	if p.CustomerPhone != nil && *p.CustomerPhone == "" {
		p.CustomerPhone = nil
	}
	if p.PickupDateTime != nil {
		if *p.PickupDateTime == "" {
			p.PickupDateTime = nil
		} else if !ValidPickup(*p.PickupDateTime) {
			return nil, fault.Validation("invalid pickupDateTime %q", *p.PickupDateTime)
		}
	}
	if p.empty() {
		return s.Get(ctx, p.ID)
	}

	ch := Change{Patch: p}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, fault.Validation("unknown order status %q", *p.Status)
		}
		current, err := s.repo.GetByID(ctx, p.ID)
		if err != nil {
			return nil, classify("get order", p.ID, err)
		}
		if err := CheckTransition(current.Status, *p.Status, actor); err != nil {
			return nil, fault.Wrap(fault.KindConflict, err)
		}
		ch.FromStatus = current.Status
		ch.ChangedAt = s.now()
	}

	o, err := s.repo.Update(ctx, p.ID, ch)
	if err != nil {
		return nil, classify("update order", p.ID, err)
	}
	if p.Status != nil {
		s.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(ch.FromStatus)),
			attribute.String("to", string(*p.Status)),
		))
	}
	return o, nil
}

// Delete removes the order and returns its last state.
func (s *Service) Delete(ctx context.Context, id string) (*Order, error) {
	if id == "" {
		return nil, fault.MissingField("id")
	}
	o, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, classify("delete order", id, err)
	}
	return o, nil
}

func classify(op, id string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fault.NotFound("order", id)
	case errors.Is(err, ErrDuplicateID):
		return fault.Conflict("order %q already exists", id)
	case errors.Is(err, ErrStatusChanged):
		return fault.Conflict("order %q changed status concurrently, reload and retry", id)
	default:
		return fault.Persistence(op, err)
	}
}
