package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
)

const seedJSON = `[
	{"id":"kebab","name":"Kebab","price":8.5,"isOutOfStock":false},
	{"id":"durum","name":"Dürüm","description":"Enrollado","price":"9.00","discount":10,"isOutOfStock":false},
	{"id":"falafel","name":"Falafel","price":6,"isOutOfStock":true}
]`

func writeSeed(t *testing.T, name string, gzipped bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	if !gzipped {
		_, err = f.WriteString(seedJSON)
		require.NoError(t, err)
		return path
	}
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(seedJSON))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func TestReadSeedFile(t *testing.T) {
	for _, tt := range []struct {
		name    string
		file    string
		gzipped bool
	}{
		{"plain", "menu.json", false},
		{"gzipped", "menu.json.gz", true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			items, err := readSeedFile(writeSeed(t, tt.file, tt.gzipped))
			require.NoError(t, err)
			require.Len(t, items, 3)
			assert.Equal(t, "durum", items[1].ID)
			assert.True(t, decimal.RequireFromString("9").Equal(items[1].Price))
			assert.Equal(t, 10, items[1].Discount)
			assert.True(t, items[2].IsOutOfStock)
		})
	}
}

func TestReadSeedFile_Errors(t *testing.T) {
	_, err := readSeedFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not gzip"), 0o600))
	_, err = readSeedFile(bad)
	assert.ErrorContains(t, err, "gzip")
}

type recordingWriter struct {
	mu    sync.Mutex
	items map[string]menu.Item
	fail  string
}

func (w *recordingWriter) Put(_ context.Context, it menu.Item) error {
	if it.ID == w.fail {
		return errors.New("boom")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items[it.ID] = it
	return nil
}

func TestSeedMenu(t *testing.T) {
	items, err := readSeedFile(writeSeed(t, "menu.json", false))
	require.NoError(t, err)

	w := &recordingWriter{items: map[string]menu.Item{}}
	require.NoError(t, seedMenu(context.Background(), w, items, 2))
	assert.Len(t, w.items, 3)
	assert.Equal(t, "Enrollado", w.items["durum"].Description)

	w = &recordingWriter{items: map[string]menu.Item{}, fail: "durum"}
	err = seedMenu(context.Background(), w, items, 0)
	assert.ErrorContains(t, err, `seed "durum"`)
}

func TestParseBound(t *testing.T) {
	got, err := parseBound("", false)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseBound("2026-10-18T09:30:00Z", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC), got.UTC())

	from, err := parseBound("2026-10-18", false)
	require.NoError(t, err)
	to, err := parseBound("2026-10-18", true)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour-time.Millisecond, to.Sub(*from))

	_, err = parseBound("yesterday", false)
	assert.ErrorContains(t, err, "YYYY-MM-DD")
}

func TestRenderReport(t *testing.T) {
	at := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
	rep := &order.Report{
		Status: order.StatusDelivered,
		Orders: []order.Order{{
			ID:                  "ORD-1",
			Status:              order.StatusDelivered,
			CustomerName:        "Ana",
			Items:               []order.Item{{ID: "kebab", Name: "Kebab", Price: decimal.RequireFromString("8.5"), Quantity: 2}},
			Total:               decimal.RequireFromString("17"),
			Paid:                true,
			LastStatusChangedAt: at,
		}},
		Count:   1,
		Revenue: decimal.RequireFromString("17"),
	}

	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, rep))
	out := buf.String()
	assert.Contains(t, out, "Estado: entregado")
	assert.Contains(t, out, "ORD-1")
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "17.00")
}

func TestRenderMenu(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderMenu(&buf, []menu.Item{
		{ID: "durum", Name: "Dürüm", Price: decimal.RequireFromString("9"), Discount: 10},
	}))
	assert.Contains(t, buf.String(), "9.00")
	assert.Contains(t, buf.String(), "10%")
}
