package vendors

import (
	"context"

	"github.com/stitchline-erp/stitchline-erp/internal/masterdata/shared"
)

// Service wraps vendor lookups.
type Service struct {
	repo Repository
}

// NewService constructs the vendor service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a page of active vendors matching the filters.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches one vendor by id.
func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}
