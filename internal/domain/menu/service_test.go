package menu

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// --- Mock implementations ---

type mockRepo struct {
	items map[string]Item
	err   error
}

func newMockRepo(items ...Item) *mockRepo {
	m := &mockRepo{items: make(map[string]Item)}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Item
	for _, it := range m.items {
		if f.Name != nil && it.Name != *f.Name {
			continue
		}
		if f.IsOutOfStock != nil && it.IsOutOfStock != *f.IsOutOfStock {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &it, nil
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []string) ([]Item, error) {
	var out []Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, m.err
}

func (m *mockRepo) Create(_ context.Context, item *Item) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[item.ID]; ok {
		return ErrDuplicateID
	}
	m.items[item.ID] = *item
	return nil
}

func (m *mockRepo) Upsert(_ context.Context, item *Item) error {
	m.items[item.ID] = *item
	return m.err
}

func (m *mockRepo) Update(_ context.Context, id string, p Patch) (*Item, error) {
	if m.err != nil {
		return nil, m.err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Price != nil {
		it.Price = *p.Price
	}
	if p.Discount != nil {
		it.Discount = *p.Discount
	}
	if p.IsOutOfStock != nil {
		it.IsOutOfStock = *p.IsOutOfStock
	}
	m.items[id] = it
	return &it, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.items, id)
	return &it, nil
}

func ptr[T any](v T) *T { return &v }

// --- Tests ---

func TestCreate_MissingFields(t *testing.T) {
	svc := NewService(newMockRepo())
	price := decimal.RequireFromString("4.50")

	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"name", CreateInput{Price: &price, IsOutOfStock: ptr(false)}, "name"},
		{"price", CreateInput{Name: "Kebab", IsOutOfStock: ptr(false)}, "price"},
		{"stock flag", CreateInput{Name: "Kebab", Price: &price}, "isOutOfStock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			require.True(t, fault.Is(err, fault.KindValidation))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestCreate_DefaultsAndRoundTrip(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	svc.newID = func() string { return "m1" }

	created, err := svc.Create(context.Background(), CreateInput{
		Name:         "Durum",
		Price:        ptr(decimal.RequireFromString("6.90")),
		IsOutOfStock: ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", created.ID)
	assert.Equal(t, 0, created.Discount)

	got, err := svc.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.True(t, created.Price.Equal(got.Price))
	assert.Equal(t, created.Discount, got.Discount)
	assert.Equal(t, created.IsOutOfStock, got.IsOutOfStock)
}

func TestCreate_InvalidValues(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		Name:         "Bad",
		Price:        ptr(decimal.NewFromInt(-1)),
		IsOutOfStock: ptr(false),
	})
	assert.True(t, fault.Is(err, fault.KindValidation))

	_, err = svc.Create(context.Background(), CreateInput{
		Name:         "Bad",
		Price:        ptr(decimal.NewFromInt(1)),
		IsOutOfStock: ptr(false),
		Discount:     ptr(101),
	})
	assert.True(t, fault.Is(err, fault.KindValidation))
}

func TestCreate_DuplicateID(t *testing.T) {
	svc := NewService(newMockRepo(Item{ID: "m1", Name: "Kebab"}))

	_, err := svc.Create(context.Background(), CreateInput{
		ID:           "m1",
		Name:         "Kebab",
		Price:        ptr(decimal.NewFromInt(5)),
		IsOutOfStock: ptr(false),
	})
	assert.True(t, fault.Is(err, fault.KindConflict))
}

func TestUpdate(t *testing.T) {
	t.Run("partial", func(t *testing.T) {
		svc := NewService(newMockRepo(Item{ID: "m1", Name: "Kebab", Price: decimal.NewFromInt(5)}))

		got, err := svc.Update(context.Background(), "m1", Patch{Discount: ptr(20), Name: ptr("")})
		require.NoError(t, err)
		assert.Equal(t, 20, got.Discount)
		assert.Equal(t, "Kebab", got.Name, "empty name is ignored")
	})

	t.Run("not found", func(t *testing.T) {
		svc := NewService(newMockRepo())

		_, err := svc.Update(context.Background(), "missing", Patch{Discount: ptr(10)})
		assert.True(t, fault.Is(err, fault.KindNotFound))
	})

	t.Run("missing id", func(t *testing.T) {
		svc := NewService(newMockRepo())

		_, err := svc.Update(context.Background(), "", Patch{Discount: ptr(10)})
		assert.True(t, fault.Is(err, fault.KindValidation))
	})
}

func TestDelete_NotFound(t *testing.T) {
	repo := newMockRepo(Item{ID: "m1"})
	svc := NewService(repo)

	_, err := svc.Delete(context.Background(), "nope")
	assert.True(t, fault.Is(err, fault.KindNotFound))
	assert.Len(t, repo.items, 1)
}

func TestList_PersistenceError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("dial tcp: connection refused")
	svc := NewService(repo)

	_, err := svc.List(context.Background(), Filter{})
	require.True(t, fault.Is(err, fault.KindPersistence))
	assert.NotContains(t, fault.PublicMessage(err), "dial tcp")
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(map[string]string{"name": "Kebab", "isOutOfStock": "true", "discount": "10"})
	require.NoError(t, err)
	assert.Equal(t, "Kebab", *f.Name)
	assert.True(t, *f.IsOutOfStock)
	assert.Equal(t, 10, *f.Discount)

	_, err = ParseFilter(map[string]string{"color": "red"})
	assert.True(t, fault.Is(err, fault.KindValidation))

	_, err = ParseFilter(map[string]string{"isOutOfStock": "maybe"})
	assert.True(t, fault.Is(err, fault.KindValidation))
}

func TestDiscountedPrice(t *testing.T) {
	it := Item{Price: decimal.RequireFromString("5.00"), Discount: 20}
	assert.True(t, decimal.RequireFromString("4").Equal(it.DiscountedPrice()))

	it.Discount = 0
	assert.True(t, decimal.RequireFromString("5").Equal(it.DiscountedPrice()))
}

func TestPut_IsIdempotent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	item := Item{ID: "m1", Name: "Falafel", Price: decimal.RequireFromString("5.50")}

	require.NoError(t, svc.Put(context.Background(), item))
	item.Price = decimal.RequireFromString("6.00")
	require.NoError(t, svc.Put(context.Background(), item))

	assert.Len(t, repo.items, 1)
	assert.Equal(t, "6", repo.items["m1"].Price.String())

	err := svc.Put(context.Background(), Item{ID: "m2", Name: "Bad", Discount: 150})
	assert.True(t, fault.Is(err, fault.KindValidation))
}

func TestLookup_SkipsUnknown(t *testing.T) {
	svc := NewService(newMockRepo(Item{ID: "m1", Name: "Kebab"}, Item{ID: "m2", Name: "Durum"}))

	items, err := svc.Lookup(context.Background(), []string{"m2", "zz"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Durum", items[0].Name)
}
