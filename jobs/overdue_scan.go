package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/manufacturing"
)

const (
	// TaskOverdueScan flags orders past their planned end date.
	TaskOverdueScan = "production:overdue_scan"

	overdueScanPageSize = 200
)

// OverdueScanPayload carries scheduling metadata.
type OverdueScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewOverdueScanTask constructs an Asynq task for the nightly overdue scan.
func NewOverdueScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, body, asynq.Queue(QueueDefault)), nil
}

// OverdueScanner reports in-flight orders whose planned window has lapsed.
type OverdueScanner struct {
	orders interface {
		ListOrders(ctx context.Context, filters manufacturing.ListFilters) ([]manufacturing.ProductionOrder, int, error)
	}
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewOverdueScanner constructs an OverdueScanner.
func NewOverdueScanner(orders *manufacturing.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanner {
	return &OverdueScanner{orders: orders, logger: logger, metrics: metrics}
}

// Handle processes TaskOverdueScan tasks.
func (s *OverdueScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track(TaskOverdueScan)
	return tracker.End(s.scan(ctx, payload))
}

func (s *OverdueScanner) scan(ctx context.Context, payload OverdueScanPayload) error {
	now := payload.ScheduledFor
	if now.IsZero() {
		now = time.Now().UTC()
	}

	overdue := 0
	for _, status := range []manufacturing.OrderStatus{manufacturing.OrderStatusPlanned, manufacturing.OrderStatusInProgress} {
		offset := 0
		for {
			page, total, err := s.orders.ListOrders(ctx, manufacturing.ListFilters{
				Status: status,
				Limit:  overdueScanPageSize,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			for _, order := range page {
				if order.PlannedEndDate.Before(now) {
					overdue++
					s.metrics.AddOverdue(string(order.Status), 1)
					s.logger.Warn("production order overdue",
						slog.String("number", order.Number),
						slog.String("status", string(order.Status)),
						slog.Time("planned_end_date", order.PlannedEndDate))
				}
			}
			offset += len(page)
			if len(page) == 0 || offset >= total {
				break
			}
		}
	}
	s.logger.Info("overdue scan finished", slog.Int("overdue", overdue))
	return nil
}
