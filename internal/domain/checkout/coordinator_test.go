package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/takeaway/internal/domain/fault"
	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
)

// --- Mock implementations ---

type mockCatalog struct {
	items map[string]menu.Item
	err   error
}

func (m *mockCatalog) Lookup(_ context.Context, ids []string) ([]menu.Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []menu.Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockOrders struct {
	mu      sync.Mutex
	orders  map[string]order.Order
	creates int
}

func newMockOrders() *mockOrders {
	return &mockOrders{orders: make(map[string]order.Order)}
}

func (m *mockOrders) Get(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fault.NotFound("order", id)
	}
	return &o, nil
}

func (m *mockOrders) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.orders[id]
	return ok, nil
}

func (m *mockOrders) Create(_ context.Context, in order.CreateInput) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[in.ID]; ok {
		return nil, fault.Conflict("order %q already exists", in.ID)
	}
	o := order.Order{
		ID:                  in.ID,
		Items:               in.Items,
		Total:               *in.Total,
		Status:              in.Status,
		CreatedAt:           *in.CreatedAt,
		LastStatusChangedAt: *in.CreatedAt,
		CustomerName:        in.CustomerName,
		CustomerPhone:       in.CustomerPhone,
		Notation:            in.Notation,
		PickupDateTime:      in.PickupDateTime,
		IsDelivery:          in.IsDelivery,
		Paid:                in.Paid,
	}
	m.orders[o.ID] = o
	m.creates++
	return &o, nil
}

type mockSessions struct {
	mu          sync.Mutex
	sessions    map[string]Session
	completeErr error
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]Session)}
}

func (m *mockSessions) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrDuplicateID
	}
	m.sessions[s.ID] = *s
	return nil
}

func (m *mockSessions) GetByPaymentIntent(_ context.Context, pi string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.PaymentIntentID == pi {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockSessions) MarkCompleted(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.State = StateCompleted
	s.CompletedAt = &at
	m.sessions[id] = s
	return nil
}

func (m *mockSessions) ListExpired(_ context.Context, before time.Time, limit int) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.sessions {
		if s.State == StateOpen && s.ExpiresAt.Before(before) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.State == StateOpen {
		delete(m.sessions, id)
	}
	return nil
}

type mockProcessor struct {
	mu      sync.Mutex
	intents map[string]*Intent
	last    IntentParams
	err     error
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{intents: make(map[string]*Intent)}
}

func (m *mockProcessor) CreateIntent(_ context.Context, p IntentParams) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.last = p
	// Same idempotency key, same intent.
	if in, ok := m.intents["pi_"+p.OrderID]; ok {
		cp := *in
		return &cp, nil
	}
	in := &Intent{ID: "pi_" + p.OrderID, ClientSecret: "secret_" + p.OrderID, Status: "requires_payment_method"}
	m.intents[in.ID] = in
	cp := *in
	return &cp, nil
}

func (m *mockProcessor) GetIntent(_ context.Context, id string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	in, ok := m.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	cp := *in
	return &cp, nil
}

func (m *mockProcessor) CancelIntent(_ context.Context, id string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	in, ok := m.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	switch in.Status {
	case IntentSucceeded, IntentCanceled, "processing":
		return nil, errors.Errorf("payment_intent_unexpected_state: %s", in.Status)
	}
	in.Status = IntentCanceled
	cp := *in
	return &cp, nil
}

// setStatus moves an intent as the customer's bank would. A cancelled intent
// cannot be paid.
func (m *mockProcessor) setStatus(id string, st IntentStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := m.intents[id]
	if in.Status == IntentCanceled {
		return false
	}
	in.Status = st
	return true
}

func (m *mockProcessor) succeed(id string) bool { return m.setStatus(id, IntentSucceeded) }

func (m *mockProcessor) status(id string) IntentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intents[id].Status
}

// --- Helpers ---

type fixture struct {
	c         *Coordinator
	orders    *mockOrders
	sessions  *mockSessions
	processor *mockProcessor
	catalog   *mockCatalog
}

var testNow = time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:    newMockOrders(),
		sessions:  newMockSessions(),
		processor: newMockProcessor(),
		catalog: &mockCatalog{items: map[string]menu.Item{
			"p1": {ID: "p1", Name: "Kebab", Price: decimal.RequireFromString("10.00")},
			"p2": {ID: "p2", Name: "Durum", Price: decimal.RequireFromString("5.00"), Discount: 20},
			"p3": {ID: "p3", Name: "Lahmacun", Price: decimal.RequireFromString("4.00"), IsOutOfStock: true},
		}},
	}
	c, err := NewCoordinator(f.catalog, f.orders, f.sessions, f.processor, Options{SessionTTL: 30 * time.Minute})
	require.NoError(t, err)
	c.now = func() time.Time { return testNow }
	f.c = c
	return f
}

func cart(method Method) Request {
	return Request{
		Method:        method,
		Lines:         []Line{{ID: "p1", Quantity: 2}, {ID: "p2", Quantity: 1}},
		CustomerName:  "María José",
		CustomerPhone: "612345678",
	}
}

// --- Tests ---

func TestCheckout_Cash(t *testing.T) {
	f := newFixture(t)

	res, err := f.c.Checkout(context.Background(), cart(MethodCash))
	require.NoError(t, err)

	assert.Equal(t, MethodCash, res.Method)
	require.NotNil(t, res.Order)
	assert.Equal(t, "24.00", order.FormatTotal(res.Total))
	assert.Equal(t, order.StatusPending, res.Order.Status)
	assert.False(t, res.Order.Paid)
	assert.Len(t, f.orders.orders, 1)
	assert.Empty(t, f.sessions.sessions)
}

func TestCheckout_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	req := cart(MethodCash)
	req.Lines = []Line{{ID: "p1", Quantity: 1}, {ID: "p2", Quantity: 1}, {ID: "p1", Quantity: 2}}

	res, err := f.c.Checkout(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 2)
	assert.Equal(t, "p1", res.Order.Items[0].ID)
	assert.Equal(t, 3, res.Order.Items[0].Quantity)
	assert.Equal(t, "34.00", order.FormatTotal(res.Total))
}

func TestCheckout_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		want   string
	}{
		{"empty cart", func(r *Request) { r.Lines = nil }, "items"},
		{"no name", func(r *Request) { r.CustomerName = " " }, "customerName"},
		{"digits in name", func(r *Request) { r.CustomerName = "R2D2" }, "letters"},
		{"short phone", func(r *Request) { r.CustomerPhone = "1234" }, "9 and 15"},
		{"zero quantity", func(r *Request) { r.Lines[0].Quantity = 0 }, "quantity"},
		{"unknown item", func(r *Request) { r.Lines[0].ID = "zz" }, "does not exist"},
		{"out of stock", func(r *Request) { r.Lines[0].ID = "p3" }, "out of stock"},
		{"bad pickup", func(r *Request) { r.PickupDateTime = "later" }, "pickupDateTime"},
		{"no method", func(r *Request) { r.Method = "" }, "paymentMethod"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := cart(MethodCash)
			tt.mutate(&req)

			_, err := f.c.Checkout(context.Background(), req)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.KindValidation), err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, f.orders.orders)
		})
	}
}

func TestCheckout_CardDefersOrder(t *testing.T) {
	f := newFixture(t)

	res, err := f.c.Checkout(context.Background(), cart(MethodCard))
	require.NoError(t, err)

	assert.Equal(t, MethodCard, res.Method)
	assert.Nil(t, res.Order)
	assert.NotEmpty(t, res.ClientSecret)
	assert.Empty(t, f.orders.orders, "no order before payment confirmation")

	require.Len(t, f.sessions.sessions, 1)
	s := f.sessions.sessions[res.OrderID]
	assert.Equal(t, StateOpen, s.State)
	assert.Equal(t, testNow.Add(30*time.Minute), s.ExpiresAt)

	assert.Equal(t, int64(2400), f.processor.last.Amount)
	assert.Equal(t, "eur", f.processor.last.Currency)
	assert.Equal(t, "p1 (Kebab): 2 x 10.00 €, p2 (Durum): 1 x 4.00 €", f.processor.last.Description)
}

func TestCheckout_CardProcessorFailure(t *testing.T) {
	f := newFixture(t)
	f.processor.err = errors.New("stripe: 503")

	_, err := f.c.Checkout(context.Background(), cart(MethodCard))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindExternal))
	assert.NotContains(t, fault.PublicMessage(err), "503")
	assert.Empty(t, f.sessions.sessions)
	assert.Empty(t, f.orders.orders)
}

func TestConfirm_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	f.processor.succeed(res.PaymentIntentID)

	first, err := f.c.Confirm(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, first.Paid)
	assert.Equal(t, order.StatusPending, first.Status)
	assert.Equal(t, res.OrderID, first.ID)

	second, err := f.c.Confirm(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, f.orders.creates)
	assert.Equal(t, StateCompleted, f.sessions.sessions[res.OrderID].State)
}

func TestConfirm_Concurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	f.processor.succeed(res.PaymentIntentID)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.c.Confirm(ctx, res.PaymentIntentID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, f.orders.orders, 1)
}

func TestConfirm_NotSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)

	_, err = f.c.Confirm(ctx, res.PaymentIntentID)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindPaymentRequired))
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, StateOpen, f.sessions.sessions[res.OrderID].State)
}

func TestConfirm_UnknownIntent(t *testing.T) {
	f := newFixture(t)

	_, err := f.c.Confirm(context.Background(), "pi_unknown")
	assert.True(t, fault.Is(err, fault.KindNotFound))

	_, err = f.c.Confirm(context.Background(), "")
	assert.True(t, fault.Is(err, fault.KindValidation))
}

func TestCheckout_CardRetryResumesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := cart(MethodCard)
	req.OrderID = "ORD-77"

	first, err := f.c.Checkout(ctx, req)
	require.NoError(t, err)
	second, err := f.c.Checkout(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.Equal(t, first.PaymentIntentID, second.PaymentIntentID)
	assert.Equal(t, "24.00", order.FormatTotal(second.Total))
	assert.Len(t, f.sessions.sessions, 1)

	// A different cart under the same order id is not the same checkout.
	req.Lines = []Line{{ID: "p1", Quantity: 1}}
	_, err = f.c.Checkout(ctx, req)
	assert.True(t, fault.Is(err, fault.KindConflict), err)
}

func TestConfirm_DeletedOrderIsNotRecreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	f.processor.succeed(res.PaymentIntentID)
	_, err = f.c.Confirm(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, f.sessions.sessions[res.OrderID].State)

	// Staff remove the order, then the customer reloads the return page.
	delete(f.orders.orders, res.OrderID)

	_, err = f.c.Confirm(ctx, res.PaymentIntentID)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindNotFound), err)
	assert.Equal(t, 1, f.orders.creates)
	assert.Empty(t, f.orders.orders)
}

func TestConfirm_CompletesSessionLeftOpen(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	f.processor.succeed(res.PaymentIntentID)

	f.sessions.completeErr = errors.New("connection reset")
	_, err = f.c.Confirm(ctx, res.PaymentIntentID)
	require.NoError(t, err, "the order is recorded even if the session cannot be closed")
	assert.Equal(t, StateOpen, f.sessions.sessions[res.OrderID].State)
	entries := logs.FilterMessage("Complete checkout session").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, res.OrderID, entries[0].ContextMap()["order_id"])

	f.sessions.completeErr = nil
	o, err := f.c.Confirm(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, o.ID)
	assert.Equal(t, StateCompleted, f.sessions.sessions[res.OrderID].State)
	assert.Equal(t, 1, f.orders.creates)
}

func TestPurgeExpired_CancelsIntentBeforeDropping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)

	n, err := f.c.PurgeExpired(ctx, testNow.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, f.sessions.sessions)
	assert.Equal(t, IntentCanceled, f.processor.status(res.PaymentIntentID))

	// The customer still holds the client secret but can no longer pay.
	assert.False(t, f.processor.succeed(res.PaymentIntentID))
	_, err = f.c.Confirm(ctx, res.PaymentIntentID)
	assert.True(t, fault.Is(err, fault.KindNotFound), err)
	assert.Empty(t, f.orders.orders)
}

func TestPurgeExpired_RecordsLatePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	// Paid after the session expired, before the customer came back.
	f.processor.succeed(res.PaymentIntentID)

	n, err := f.c.PurgeExpired(ctx, testNow.Add(31*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.Contains(t, f.orders.orders, res.OrderID)
	o := f.orders.orders[res.OrderID]
	assert.True(t, o.Paid)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, StateCompleted, f.sessions.sessions[res.OrderID].State)
	assert.Equal(t, IntentSucceeded, f.processor.status(res.PaymentIntentID))

	got, err := f.c.Confirm(ctx, res.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, got.ID)
	assert.Equal(t, 1, f.orders.creates)
}

func TestPurgeExpired_KeepsUnsettledSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	f.processor.setStatus(res.PaymentIntentID, "processing")

	n, err := f.c.PurgeExpired(ctx, testNow.Add(31*time.Minute))
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.KindExternal), err)
	assert.Zero(t, n)
	assert.Contains(t, f.sessions.sessions, res.OrderID)
	assert.Empty(t, f.orders.orders)
}

func TestPurgeExpired_SkipsFreshAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.c.Checkout(ctx, cart(MethodCard))
	require.NoError(t, err)
	f.sessions.sessions["done"] = Session{ID: "done", PaymentIntentID: "pi_done", State: StateCompleted, ExpiresAt: testNow.Add(-time.Hour)}

	n, err := f.c.PurgeExpired(ctx, testNow)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, f.sessions.sessions, res.OrderID)
	assert.Contains(t, f.sessions.sessions, "done")
	assert.Equal(t, IntentStatus("requires_payment_method"), f.processor.status(res.PaymentIntentID))
}

func TestRunJanitor_ReportsEveryRun(t *testing.T) {
	f := newFixture(t)
	f.processor.err = errors.New("stripe: 503")
	f.sessions.sessions["old"] = Session{ID: "old", PaymentIntentID: "pi_old", State: StateOpen, ExpiresAt: testNow.Add(-time.Minute)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan error, 4)
	go f.c.RunJanitor(ctx, time.Millisecond, func(_ int64, err error) {
		select {
		case runs <- err:
		default:
		}
	})

	select {
	case err := <-runs:
		assert.True(t, fault.Is(err, fault.KindExternal), err)
	case <-time.After(5 * time.Second):
		t.Fatal("janitor did not report a failed run")
	}
	assert.Contains(t, f.sessions.sessions, "old")
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("cash")
	require.NoError(t, err)
	assert.Equal(t, MethodCash, m)

	m, err = ParseMethod("tarjeta")
	require.NoError(t, err)
	assert.Equal(t, MethodCard, m)

	_, err = ParseMethod("bitcoin")
	assert.True(t, fault.Is(err, fault.KindValidation))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(2037), ToMinorUnits(decimal.RequireFromString("20.37")))
	assert.Equal(t, int64(100), ToMinorUnits(decimal.RequireFromString("0.999")))
}
