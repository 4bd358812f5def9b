package services

import (
	"context"
	"fmt"
	"time"

	"foretrack/internal/core"
	"foretrack/internal/ports"
)

type CategoryService struct {
	store ports.CategoryStore
	now   func() time.Time
}

func NewCategoryService(store ports.CategoryStore) *CategoryService {
	return &CategoryService{store: store, now: utcNow}
}

// List returns the built-in entries of kind followed by the user's custom
// ones. An empty kind lists both kinds.
func (s *CategoryService) List(ctx context.Context, userID string, kind core.Kind) ([]core.Category, error) {
	kinds := []core.Kind{core.Expense, core.Income}
	if kind != "" {
		if err := kind.Validate(); err != nil {
			return nil, invalid(err)
		}
		kinds = []core.Kind{kind}
	}

	custom, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var out []core.Category
	for _, k := range kinds {
		out = append(out, core.BuiltinCategories(k)...)
	}
	for _, c := range custom {
		if kind == "" || c.Kind == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create stores a custom category. Names clashing with a built-in entry or
// another custom one return ErrCategoryExists.
func (s *CategoryService) Create(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	c.ID = newID()
	c.UserID = userID
	c.Custom = true
	c.CreatedAt = s.now()
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	if core.IsBuiltin(c.Kind, c.Name) {
		return core.Category{}, ErrCategoryExists
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return core.Category{}, conflictAs(err, ErrCategoryExists)
	}
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	existing, err := s.store.GetCategory(ctx, userID, c.ID)
	if err != nil {
		return core.Category{}, err
	}
	c.UserID = userID
	c.Kind = existing.Kind
	c.Custom = true
	c.CreatedAt = existing.CreatedAt
	c = c.WithDefaults()
	if err := c.Validate(); err != nil {
		return core.Category{}, invalid(err)
	}
	if core.IsBuiltin(c.Kind, c.Name) {
		return core.Category{}, ErrCategoryExists
	}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, conflictAs(err, ErrCategoryExists)
	}
	return c, nil
}

func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	return s.store.DeleteCategory(ctx, userID, id)
}
