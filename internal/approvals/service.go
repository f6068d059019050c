package approvals

import (
	"context"
	"fmt"
	"log/slog"
)

// Service exposes approval lookups and the production-started
// transition used after order creation.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the approval service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Get fetches one approval bundle.
func (s *Service) Get(ctx context.Context, id int64) (Approval, error) {
	if id <= 0 {
		return Approval{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns approvals, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]Approval, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

// MarkProductionStarted links the approval to the order created from it.
// Re-linking to the same order is a no-op so reconciliation can retry
// safely; linking to a different order is rejected.
func (s *Service) MarkProductionStarted(ctx context.Context, id, orderID int64) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.ProductionOrderID != nil {
		if *a.ProductionOrderID == orderID {
			return nil
		}
		return fmt.Errorf("%w: approval %d already linked to order %d", ErrInvalidState, id, *a.ProductionOrderID)
	}
	if err := s.repo.LinkProductionOrder(ctx, id, orderID); err != nil {
		return err
	}
	s.logger.Info("approval linked to production order",
		slog.Int64("approval_id", id),
		slog.Int64("order_id", orderID))
	return nil
}
