package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stitchline-erp/stitchline-erp/internal/approvals"
	jobmetrics "github.com/stitchline-erp/stitchline-erp/internal/jobs"
	"github.com/stitchline-erp/stitchline-erp/internal/manufacturing"
	"github.com/stitchline-erp/stitchline-erp/internal/wizard"
)

const (
	// TaskProductionReconcile retries best-effort work left over from a
	// wizard submission: the approval link, stage operations, challans.
	TaskProductionReconcile = "production:reconcile"
)

// ProductionReconcilePayload identifies the order to reconcile.
type ProductionReconcilePayload struct {
	OrderID    int64  `json:"order_id"`
	ApprovalID *int64 `json:"approval_id,omitempty"`
}

// NewProductionReconcileTask constructs an Asynq task for order reconciliation.
func NewProductionReconcileTask(orderID int64, approvalID *int64) (*asynq.Task, error) {
	body, err := json.Marshal(ProductionReconcilePayload{OrderID: orderID, ApprovalID: approvalID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProductionReconcile, body, asynq.Queue(QueueDefault)), nil
}

// ReconcileOrderPort exposes the manufacturing operations the reconciler needs.
type ReconcileOrderPort interface {
	GetOrder(ctx context.Context, id int64) (manufacturing.ProductionOrder, error)
	ListOperations(ctx context.Context, stageID int64) ([]manufacturing.Operation, error)
	CreateOperations(ctx context.Context, stageID int64, ops []manufacturing.OperationInput) error
	ListChallans(ctx context.Context, orderID int64) ([]manufacturing.Challan, error)
	CreateChallan(ctx context.Context, input manufacturing.ChallanInput) (manufacturing.Challan, error)
}

// ReconcileApprovalPort links an approval to the order created from it.
type ReconcileApprovalPort interface {
	MarkProductionStarted(ctx context.Context, id, orderID int64) error
}

// Reconciler replays the non-atomic tail of a submission until the
// order's stages carry operations and outsourced stages carry challans.
// Every step is idempotent, so a partial run is safe to retry.
type Reconciler struct {
	orders    ReconcileOrderPort
	approvals ReconcileApprovalPort
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewReconciler constructs a Reconciler.
func NewReconciler(orders ReconcileOrderPort, approvalSvc ReconcileApprovalPort, logger *slog.Logger, metrics *jobmetrics.Metrics) *Reconciler {
	return &Reconciler{orders: orders, approvals: approvalSvc, logger: logger, metrics: metrics}
}

// Handle processes TaskProductionReconcile tasks.
func (r *Reconciler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ProductionReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := r.metrics.Track(TaskProductionReconcile)
	return tracker.End(r.reconcile(ctx, payload))
}

func (r *Reconciler) reconcile(ctx context.Context, payload ProductionReconcilePayload) error {
	order, err := r.orders.GetOrder(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, manufacturing.ErrNotFound) {
			r.logger.Warn("reconcile: order missing", slog.Int64("order_id", payload.OrderID))
			return asynq.SkipRetry
		}
		return fmt.Errorf("jobs: reconcile order %d: %w", payload.OrderID, err)
	}

	var failed []error
	if payload.ApprovalID != nil {
		if err := r.linkApproval(ctx, *payload.ApprovalID, order.ID); err != nil {
			failed = append(failed, err)
		}
	}
	if err := r.fillOperations(ctx, order); err != nil {
		failed = append(failed, err)
	}
	if err := r.fillChallans(ctx, order); err != nil {
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("jobs: reconcile order %d: %w", order.ID, errors.Join(failed...))
	}
	r.logger.Info("reconcile: order settled", slog.Int64("order_id", order.ID), slog.String("number", order.Number))
	return nil
}

func (r *Reconciler) linkApproval(ctx context.Context, approvalID, orderID int64) error {
	err := r.approvals.MarkProductionStarted(ctx, approvalID, orderID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, approvals.ErrInvalidState):
		// Linked to a different order; operator intervention needed.
		r.logger.Warn("reconcile: approval link conflict",
			slog.Int64("approval_id", approvalID),
			slog.Int64("order_id", orderID))
		return nil
	case errors.Is(err, approvals.ErrNotFound):
		r.logger.Warn("reconcile: approval missing", slog.Int64("approval_id", approvalID))
		return nil
	default:
		return fmt.Errorf("link approval %d: %w", approvalID, err)
	}
}

func (r *Reconciler) fillOperations(ctx context.Context, order manufacturing.ProductionOrder) error {
	var failed []error
	for _, stage := range order.Stages {
		existing, err := r.orders.ListOperations(ctx, stage.ID)
		if err != nil {
			failed = append(failed, fmt.Errorf("list operations for stage %d: %w", stage.ID, err))
			continue
		}
		if len(existing) > 0 {
			continue
		}
		templates := wizard.TemplateFor(stage.Name, stage.Outsourced)
		if len(templates) == 0 {
			continue
		}
		ops := make([]manufacturing.OperationInput, 0, len(templates))
		for _, tmpl := range templates {
			ops = append(ops, manufacturing.OperationInput{
				Name:         tmpl.Name,
				Order:        tmpl.Order,
				Description:  tmpl.Description,
				IsOutsourced: tmpl.IsOutsourced,
			})
		}
		if err := r.orders.CreateOperations(ctx, stage.ID, ops); err != nil {
			failed = append(failed, fmt.Errorf("create operations for stage %d: %w", stage.ID, err))
		}
	}
	return errors.Join(failed...)
}

func (r *Reconciler) fillChallans(ctx context.Context, order manufacturing.ProductionOrder) error {
	existing, err := r.orders.ListChallans(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list challans: %w", err)
	}
	byStage := make(map[int64]bool, len(existing))
	for _, ch := range existing {
		byStage[ch.StageID] = true
	}

	var failed []error
	for _, stage := range order.Stages {
		if !stage.Outsourced || stage.VendorID == nil {
			continue
		}
		if !stage.IsPrinting && !stage.IsEmbroidery {
			continue
		}
		if byStage[stage.ID] {
			continue
		}
		_, err := r.orders.CreateChallan(ctx, manufacturing.ChallanInput{
			Number:   wizard.ChallanNumber(order.Number, stage.Order),
			OrderID:  order.ID,
			StageID:  stage.ID,
			VendorID: *stage.VendorID,
			Remarks:  fmt.Sprintf("Auto-issued for outsourced stage %s", stage.Name),
		})
		if err != nil && !errors.Is(err, manufacturing.ErrDuplicate) {
			failed = append(failed, fmt.Errorf("create challan for stage %d: %w", stage.ID, err))
		}
	}
	return errors.Join(failed...)
}
