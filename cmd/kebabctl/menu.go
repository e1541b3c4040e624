package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/takeaway/internal/domain/menu"
)

// seedItem is one entry of a menu seed file.
type seedItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	IsOutOfStock bool            `json:"isOutOfStock"`
	Discount     int             `json:"discount"`
	Image        string          `json:"image"`
}

func menuCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Manage the menu catalog",
	}
	cmd.AddCommand(menuSeedCmd(e), menuListCmd(e))
	return cmd
}

func menuSeedCmd(e *env) *cobra.Command {
	var (
		file    string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert or replace menu items from a JSON file (optionally gzipped)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := readSeedFile(file)
			if err != nil {
				return err
			}
			e.lg.Info("Seeding menu", zap.String("file", file), zap.Int("items", len(items)))
			if err := seedMenu(cmd.Context(), e.menu, items, workers); err != nil {
				return err
			}
			cmd.Printf("seeded %d menu items\n", len(items))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "db/seed/menu.json", "Seed file, .json or .json.gz")
	cmd.Flags().IntVarP(&workers, "workers", "w", 8, "Concurrent upserts")
	return cmd
}

func menuListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the menu",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := e.menu.List(cmd.Context(), menu.Filter{})
			if err != nil {
				return err
			}
			return renderMenu(cmd.OutOrStdout(), items)
		},
	}
}

// readSeedFile decodes a JSON array of menu items. Files ending in .gz are
// decompressed first.
func readSeedFile(path string) ([]seedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var items []seedItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return items, nil
}

type menuWriter interface {
	Put(ctx context.Context, item menu.Item) error
}

// seedMenu upserts items with up to workers requests in flight. The first
// failure cancels the rest.
func seedMenu(ctx context.Context, w menuWriter, items []seedItem, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, it := range items {
		g.Go(func() error {
			if err := w.Put(ctx, menu.Item{
				ID:           it.ID,
				Name:         it.Name,
				Description:  it.Description,
				Price:        it.Price,
				IsOutOfStock: it.IsOutOfStock,
				Discount:     it.Discount,
				Image:        it.Image,
			}); err != nil {
				return errors.Wrapf(err, "seed %q", it.ID)
			}
			return nil
		})
	}
	return g.Wait()
}
