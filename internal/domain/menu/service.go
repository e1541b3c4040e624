package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/takeaway/internal/domain/fault"
)

// Service implements catalog management on top of a Repository.
type Service struct {
	repo  Repository
	newID func() string
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		newID: uuid.NewString,
	}
}

// List returns the items matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Item, error) {
	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fault.Persistence("list menu items", err)
	}
	return items, nil
}

// Get returns a single item.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	if id == "" {
		return nil, fault.MissingField("id")
	}
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, classify("get menu item", id, err)
	}
	return item, nil
}

// Lookup returns the items with the given ids. Unknown ids are skipped.
func (s *Service) Lookup(ctx context.Context, ids []string) ([]Item, error) {
	items, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fault.Persistence("lookup menu items", err)
	}
	return items, nil
}

// Put inserts item or replaces the stored item with the same id. It backs bulk
// seeding, where re-running the same file must not fail.
func (s *Service) Put(ctx context.Context, item Item) error {
	switch {
	case item.ID == "":
		return fault.MissingField("id")
	case item.Name == "":
		return fault.MissingField("name")
	}
	if err := validatePrice(item.Price); err != nil {
		return err
	}
	if err := validateDiscount(item.Discount); err != nil {
		return err
	}
	if err := s.repo.Upsert(ctx, &item); err != nil {
		return fault.Persistence("upsert menu item", err)
	}
	return nil
}

// Create validates in and stores a new item. Discount defaults to zero and the
// id is generated when the caller leaves it empty.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Item, error) {
	switch {
	case in.Name == "":
		return nil, fault.MissingField("name")
	case in.Price == nil:
		return nil, fault.MissingField("price")
	case in.IsOutOfStock == nil:
		return nil, fault.MissingField("isOutOfStock")
	}
	if err := validatePrice(*in.Price); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           in.ID,
		Name:         in.Name,
		Description:  in.Description,
		Price:        *in.Price,
		IsOutOfStock: *in.IsOutOfStock,
		Image:        in.Image,
	}
	if in.Discount != nil {
		if err := validateDiscount(*in.Discount); err != nil {
			return nil, err
		}
		item.Discount = *in.Discount
	}
	if item.ID == "" {
		item.ID = s.newID()
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, classify("create menu item", item.ID, err)
	}
	return item, nil
}

// Update applies p to the item with the given id. An empty name in the patch is
// ignored; all other present fields overwrite the stored values.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*Item, error) {
	if id == "" {
		return nil, fault.MissingField("id")
	}
	if p.Name != nil && *p.Name == "" {
		p.Name = nil
	}
	if p.Price != nil {
		if err := validatePrice(*p.Price); err != nil {
			return nil, err
		}
	}
	if p.Discount != nil {
		if err := validateDiscount(*p.Discount); err != nil {
			return nil, err
		}
	}

	if p.Empty() {
		return s.Get(ctx, id)
	}

	item, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return nil, classify("update menu item", id, err)
	}
	return item, nil
}

// Delete removes the item and returns its last state.
func (s *Service) Delete(ctx context.Context, id string) (*Item, error) {
	if id == "" {
		return nil, fault.MissingField("id")
	}
	item, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, classify("delete menu item", id, err)
	}
	return item, nil
}

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return fault.Validation("price must not be negative")
	}
	return nil
}

func validateDiscount(d int) error {
	if d < 0 || d > 100 {
		return fault.Validation("discount must be between 0 and 100")
	}
	return nil
}

func classify(op, id string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fault.NotFound("menu item", id)
	case errors.Is(err, ErrDuplicateID):
		return fault.Conflict("menu item %q already exists", id)
	default:
		return fault.Persistence(op, err)
	}
}
