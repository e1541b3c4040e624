package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
)

const instrumentationName = "github.com/xenking/takeaway/internal/domain/checkout"

// purgeBatch bounds the sessions settled by one PurgeExpired call.
const purgeBatch = 100

// Options tune a Coordinator. Zero values select defaults.
type Options struct {
	Currency       string
	SessionTTL     time.Duration
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Coordinator implements the cash and card checkout flows.
type Coordinator struct {
	catalog   Catalog
	orders    Orders
	sessions  Repository
	processor Processor

	currency string
	ttl      time.Duration
	now      func() time.Time

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(catalog Catalog, orders Orders, sessions Repository, processor Processor, opts Options) (*Coordinator, error) {
	if opts.Currency == "" {
		opts.Currency = "eur"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = metricnoop.NewMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}

	outcomes, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter("checkout.outcomes",
		metric.WithDescription("Checkout and confirmation outcomes by method and result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkout.outcomes counter")
	}

	return &Coordinator{
		catalog:   catalog,
		orders:    orders,
		sessions:  sessions,
		processor: processor,
		currency:  opts.Currency,
		ttl:       opts.SessionTTL,
		now:       time.Now,
		tracer:    opts.TracerProvider.Tracer(instrumentationName),
		outcomes:  outcomes,
	}, nil
}

// Checkout validates the cart against the catalog and starts the payment flow
// for req.Method.
func (c *Coordinator) Checkout(ctx context.Context, req Request) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.Checkout",
		trace.WithAttributes(attribute.String("method", string(req.Method))),
	)
	defer span.End()

	res, err := c.checkout(ctx, req)
	c.record(ctx, "checkout", req.Method, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fault.KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", res.OrderID))
	return res, nil
}

func (c *Coordinator) checkout(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.PickupDateTime != "" && !order.ValidPickup(req.PickupDateTime) {
		return nil, fault.Validation("invalid pickupDateTime %q", req.PickupDateTime)
	}

	items, err := c.resolve(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	draft := Draft{
		Items:          items,
		Total:          order.ComputeTotal(items),
		Notation:       req.Notation,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		PickupDateTime: req.PickupDateTime,
		IsDelivery:     req.IsDelivery,
	}
	id := req.OrderID
	if id == "" {
		id = order.NewID()
	}

	switch req.Method {
	case MethodCash:
		o, err := c.orders.Create(ctx, draft.input(id, c.now(), false))
		if err != nil {
			return nil, err
		}
		return &Result{Method: MethodCash, OrderID: o.ID, Total: o.Total, Order: o}, nil
	case MethodCard:
		return c.startCard(ctx, id, draft)
	default:
		return nil, fault.Validation("unknown payment method %q", req.Method)
	}
}

func (c *Coordinator) startCard(ctx context.Context, id string, draft Draft) (*Result, error) {
	exists, err := c.orders.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fault.Conflict("order %q already exists", id)
	}
	if !draft.Total.IsPositive() {
		return nil, fault.Validation("card payments require a positive total")
	}

	intent, err := c.createIntent(ctx, IntentParams{
		Amount:      ToMinorUnits(draft.Total),
		Currency:    c.currency,
		OrderID:     id,
		Description: order.ItemsSummary(draft.Items),
		Metadata: map[string]string{
			"orderId":       id,
			"customerName":  draft.CustomerName,
			"customerPhone": draft.CustomerPhone,
		},
	})
	if err != nil {
		return nil, err
	}

	now := c.now()
	s := &Session{
		ID:              id,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          draft.Total,
		Currency:        c.currency,
		Draft:           draft,
		State:           StateOpen,
		CreatedAt:       now,
		ExpiresAt:       now.Add(c.ttl),
	}
	if err := c.sessions.Create(ctx, s); err != nil {
		if errors.Is(err, ErrDuplicateID) {
			return c.resume(ctx, id, draft, intent)
		}
		return nil, fault.Persistence("create checkout session", err)
	}

	return &Result{
		Method:          MethodCard,
		OrderID:         id,
		Total:           draft.Total,
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	}, nil
}

// resume answers a retried card checkout with the session it already opened.
// The processor returns the same intent for the same order id.
func (c *Coordinator) resume(ctx context.Context, id string, draft Draft, intent *Intent) (*Result, error) {
	s, err := c.sessions.GetByPaymentIntent(ctx, intent.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, fault.Conflict("checkout %q already started", id)
	case err != nil:
		return nil, fault.Persistence("get checkout session", err)
	case s.ID != id || s.State != StateOpen || !s.Amount.Equal(draft.Total):
		return nil, fault.Conflict("checkout %q already started", id)
	}
	return &Result{
		Method:          MethodCard,
		OrderID:         s.ID,
		Total:           s.Amount,
		ClientSecret:    s.ClientSecret,
		PaymentIntentID: s.PaymentIntentID,
	}, nil
}

// Confirm materializes the order of the session paid by paymentIntentID.
// Calling it again for the same intent returns the recorded order. An order
// deleted after it was recorded is not created again.
func (c *Coordinator) Confirm(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	ctx, span := c.tracer.Start(ctx, "checkout.Confirm",
		trace.WithAttributes(attribute.String("payment_intent.id", paymentIntentID)),
	)
	defer span.End()

	o, err := c.confirm(ctx, paymentIntentID)
	c.record(ctx, "confirm", MethodCard, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fault.KindOf(err).String())
		return nil, err
	}
	return o, nil
}

func (c *Coordinator) confirm(ctx context.Context, paymentIntentID string) (*order.Order, error) {
	if paymentIntentID == "" {
		return nil, fault.MissingField("payment_intent")
	}

	s, err := c.sessions.GetByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.NotFound("checkout session", paymentIntentID)
		}
		return nil, fault.Persistence("get checkout session", err)
	}

	if s.State == StateCompleted {
		return c.orders.Get(ctx, s.ID)
	}

	exists, err := c.orders.Exists(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		c.complete(ctx, s.ID)
		return c.orders.Get(ctx, s.ID)
	}

	intent, err := c.getIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if intent.Status != IntentSucceeded {
		return nil, fault.PaymentRequired("payment %s has not succeeded (status %s)", paymentIntentID, intent.Status)
	}
	return c.materialize(ctx, s)
}

// materialize records the paid order of s and closes the session.
func (c *Coordinator) materialize(ctx context.Context, s *Session) (*order.Order, error) {
	o, err := c.orders.Create(ctx, s.Draft.input(s.ID, c.now(), true))
	if err != nil {
		if !fault.Is(err, fault.KindConflict) {
			return nil, err
		}
		// A concurrent confirmation won the insert.
		if o, err = c.orders.Get(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	c.complete(ctx, s.ID)
	return o, nil
}

// PurgeExpired settles open sessions that expired before the given time.
//
// The intent of each session is cancelled before the session is dropped, so
// it can no longer be paid. An intent paid in the meantime records its order
// instead. Sessions that cannot be settled now are kept for the next run and
// the first such error is returned.
func (c *Coordinator) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	expired, err := c.sessions.ListExpired(ctx, before, purgeBatch)
	if err != nil {
		return 0, fault.Persistence("list expired checkout sessions", err)
	}

	var (
		n     int64
		first error
	)
	for i := range expired {
		s := &expired[i]
		if err := c.settle(ctx, s); err != nil {
			zctx.From(ctx).Warn("Settle expired checkout session",
				zap.String("order_id", s.ID),
				zap.String("payment_intent", s.PaymentIntentID),
				zap.Error(err),
			)
			if first == nil {
				first = err
			}
			continue
		}
		n++
	}
	return n, first
}

func (c *Coordinator) settle(ctx context.Context, s *Session) error {
	intent, cancelErr := c.cancelIntent(ctx, s.PaymentIntentID)
	if cancelErr != nil {
		// Cancel is refused once the intent left the payable states.
		got, err := c.getIntent(ctx, s.PaymentIntentID)
		if err != nil {
			return cancelErr
		}
		intent = got
	}

	switch intent.Status {
	case IntentSucceeded:
		_, err := c.materialize(ctx, s)
		return err
	case IntentCanceled:
		if err := c.sessions.Delete(ctx, s.ID); err != nil {
			return fault.Persistence("delete checkout session", err)
		}
		return nil
	default:
		if cancelErr != nil {
			return cancelErr
		}
		return fault.External("cancel payment intent",
			errors.Errorf("intent %s is %s after cancel", s.PaymentIntentID, intent.Status))
	}
}

// RunJanitor purges expired sessions every interval until ctx is done.
// onPurge is called after every run, failed or not.
func (c *Coordinator) RunJanitor(ctx context.Context, interval time.Duration, onPurge func(n int64, err error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.PurgeExpired(ctx, c.now())
			if onPurge != nil {
				onPurge(n, err)
			}
		}
	}
}

// complete marks the session done. The order is already recorded, so a
// failure is logged and the next confirmation or purge retries it.
func (c *Coordinator) complete(ctx context.Context, id string) {
	if err := c.sessions.MarkCompleted(ctx, id, c.now()); err != nil {
		zctx.From(ctx).Error("Complete checkout session",
			zap.String("order_id", id),
			zap.Error(err),
		)
	}
}

func (c *Coordinator) resolve(ctx context.Context, lines []Line) ([]order.Item, error) {
	// Merge duplicate lines, keeping first-seen order.
	qty := make(map[string]int, len(lines))
	var ids []string
	for _, l := range lines {
		if _, ok := qty[l.ID]; !ok {
			ids = append(ids, l.ID)
		}
		qty[l.ID] += l.Quantity
	}

	found, err := c.catalog.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]menu.Item, len(found))
	for _, it := range found {
		byID[it.ID] = it
	}

	items := make([]order.Item, 0, len(ids))
	for _, id := range ids {
		mi, ok := byID[id]
		if !ok {
			return nil, fault.Validation("menu item %q does not exist", id)
		}
		if mi.IsOutOfStock {
			return nil, fault.Validation("menu item %q is out of stock", mi.Name)
		}
		items = append(items, order.Item{
			ID:       mi.ID,
			Name:     mi.Name,
			Price:    mi.Price,
			Discount: mi.Discount,
			Quantity: qty[id],
		})
	}
	return items, nil
}

func (c *Coordinator) createIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	ctx, span := c.tracer.Start(ctx, "processor.CreateIntent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("amount", p.Amount), attribute.String("currency", p.Currency)),
	)
	defer span.End()

	intent, err := c.processor.CreateIntent(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create intent")
		return nil, fault.External("create payment intent", err)
	}
	return intent, nil
}

func (c *Coordinator) getIntent(ctx context.Context, id string) (*Intent, error) {
	ctx, span := c.tracer.Start(ctx, "processor.GetIntent",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	intent, err := c.processor.GetIntent(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get intent")
		return nil, fault.External("retrieve payment intent", err)
	}
	span.SetAttributes(attribute.String("status", string(intent.Status)))
	return intent, nil
}

func (c *Coordinator) cancelIntent(ctx context.Context, id string) (*Intent, error) {
	ctx, span := c.tracer.Start(ctx, "processor.CancelIntent",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	intent, err := c.processor.CancelIntent(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel intent")
		return nil, fault.External("cancel payment intent", err)
	}
	return intent, nil
}

func (c *Coordinator) record(ctx context.Context, op string, m Method, err error) {
	result := "ok"
	if err != nil {
		result = fault.KindOf(err).String()
	}
	c.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("method", string(m)),
		attribute.String("result", result),
	))
}

func (d Draft) input(id string, at time.Time, paid bool) order.CreateInput {
	total := d.Total
	return order.CreateInput{
		ID:             id,
		Items:          d.Items,
		Total:          &total,
		Status:         order.StatusPending,
		CreatedAt:      &at,
		Notation:       d.Notation,
		CustomerName:   d.CustomerName,
		CustomerPhone:  d.CustomerPhone,
		PickupDateTime: d.PickupDateTime,
		IsDelivery:     d.IsDelivery,
		Paid:           paid,
	}
}
