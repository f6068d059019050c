package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stitchline-erp/stitchline-erp/internal/masterdata/shared"
)

// Service wraps product lookups used by picker endpoints and by the
// wizard's product-code resolution.
type Service struct {
	repo Repository
}

// NewService constructs the product service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of active products matching the filters.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches one product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// ResolveCode resolves a product code: exact match first, then a search
// narrowed to the code with an exact-code pick, then the first search
// result as a last resort.
func (s *Service) ResolveCode(ctx context.Context, code string) (Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, shared.ErrRequiredField
	}
	p, err := s.repo.GetByCode(ctx, code)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Product{}, fmt.Errorf("products: lookup code %q: %w", code, err)
	}

	matches, _, err := s.repo.List(ctx, shared.ListFilters{Search: code, Limit: 5})
	if err != nil {
		return Product{}, fmt.Errorf("products: search code %q: %w", code, err)
	}
	for _, m := range matches {
		if strings.EqualFold(m.Code, code) {
			return m, nil
		}
	}
	if len(matches) > 0 {
		return matches[0], nil
	}
	return Product{}, shared.ErrNotFound
}
