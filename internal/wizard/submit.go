package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stitchline-erp/stitchline-erp/internal/manufacturing"
	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

var (
	// ErrDraftNotReady indicates the acknowledge flag is unset or a step
	// fails its schema; nothing is created.
	ErrDraftNotReady = errors.New("wizard: draft not ready for submission")
	// ErrSubmissionInFlight indicates a duplicate submission of the same
	// draft while the first one is still being processed.
	ErrSubmissionInFlight = errors.New("wizard: submission already in flight")
	// ErrSubmissionFailed wraps a failed order-creation call. The order
	// was not created; the draft is kept so the operator can retry.
	ErrSubmissionFailed = errors.New("wizard: order creation failed")
)

// OrderPort is the manufacturing surface the orchestrator drives.
type OrderPort interface {
	CreateOrder(ctx context.Context, input manufacturing.CreateOrderInput) (manufacturing.ProductionOrder, error)
	CreateOperations(ctx context.Context, stageID int64, ops []manufacturing.OperationInput) error
	CreateChallan(ctx context.Context, input manufacturing.ChallanInput) (manufacturing.Challan, error)
}

// ApprovalLinkPort marks an approval as consumed by a new order.
type ApprovalLinkPort interface {
	MarkProductionStarted(ctx context.Context, id, orderID int64) error
}

// IdempotencyPort guards against concurrent duplicate submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ReconcilePort schedules a follow-up pass for best-effort work that
// failed after the order was created.
type ReconcilePort interface {
	EnqueueOrderReconcile(ctx context.Context, orderID int64, approvalID *int64) error
}

// SubmissionMetrics counts submission outcomes.
type SubmissionMetrics interface {
	ObserveSubmission(outcome string)
}

// StageOutcome reports what happened to one stage during the best-effort
// part of submission.
type StageOutcome struct {
	StageID           int64  `json:"stage_id"`
	StageName         string `json:"stage_name"`
	Status            string `json:"status"` // ok | skipped | failed
	OperationsCreated int    `json:"operations_created"`
	ChallanNumber     string `json:"challan_number,omitempty"`
	Detail            string `json:"detail,omitempty"`
}

// SubmissionResult is returned once the order exists. Operations and
// challans are best-effort: callers must not assume their presence and
// can inspect Stages/Warnings for what needs reconciling.
type SubmissionResult struct {
	OrderID        int64          `json:"order_id"`
	OrderNumber    string         `json:"order_number"`
	ApprovalLinked bool           `json:"approval_linked"`
	Stages         []StageOutcome `json:"stages"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Orchestrator converts a finished draft into a production order plus
// its best-effort satellites.
type Orchestrator struct {
	orders      OrderPort
	approvals   ApprovalLinkPort
	registry    *Registry
	idempotency IdempotencyPort
	reconcile   ReconcilePort
	metrics     SubmissionMetrics
	logger      *slog.Logger
}

// NewOrchestrator constructs the submission orchestrator. Reconcile and
// metrics may be nil.
func NewOrchestrator(orders OrderPort, approvalLink ApprovalLinkPort, registry *Registry, idem IdempotencyPort, reconcile ReconcilePort, metrics SubmissionMetrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		orders:      orders,
		approvals:   approvalLink,
		registry:    registry,
		idempotency: idem,
		reconcile:   reconcile,
		metrics:     metrics,
		logger:      logger,
	}
}

// Submit runs the orchestration. Order creation is the commit point: a
// failure there aborts atomically. Every call after it is logged and
// recorded but never fails the submission, because the order already
// exists and must not be silently lost. Stages are processed
// sequentially to keep log ordering deterministic.
func (o *Orchestrator) Submit(ctx context.Context, sess *Session) (*SubmissionResult, error) {
	if err := o.checkReady(sess); err != nil {
		o.observe("rejected")
		return nil, err
	}

	idemKey := submissionKey(sess)
	if o.idempotency != nil {
		if err := o.idempotency.CheckAndInsert(ctx, idemKey, "wizard"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil, ErrSubmissionInFlight
			}
			return nil, fmt.Errorf("wizard: idempotency check: %w", err)
		}
	}

	input := buildCreateOrderInput(&sess.Draft)
	order, err := o.orders.CreateOrder(ctx, input)
	if err != nil {
		if o.idempotency != nil {
			_ = o.idempotency.Delete(ctx, idemKey)
		}
		o.observe("fatal")
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	result := &SubmissionResult{OrderID: order.ID, OrderNumber: order.Number}

	if sess.Draft.OrderSelection.ApprovalID != nil {
		approvalID := *sess.Draft.OrderSelection.ApprovalID
		if err := o.approvals.MarkProductionStarted(ctx, approvalID, order.ID); err != nil {
			o.logger.Warn("approval link failed after order creation",
				slog.Int64("approval_id", approvalID),
				slog.Int64("order_id", order.ID),
				slog.Any("error", err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("approval %d not linked: %v", approvalID, err))
		} else {
			result.ApprovalLinked = true
		}
	}

	result.Stages = o.createStageOperations(ctx, order)
	for _, oc := range result.Stages {
		if oc.Status == "failed" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("stage %s operations not created: %s", oc.StageName, oc.Detail))
		}
	}
	o.createChallans(ctx, order, result)

	if len(result.Warnings) > 0 {
		if o.reconcile != nil {
			var approvalID *int64
			if !result.ApprovalLinked {
				approvalID = sess.Draft.OrderSelection.ApprovalID
			}
			if err := o.reconcile.EnqueueOrderReconcile(ctx, order.ID, approvalID); err != nil {
				o.logger.Warn("enqueue reconcile", slog.Int64("order_id", order.ID), slog.Any("error", err))
			}
		}
		o.observe("partial")
	} else {
		o.observe("success")
	}

	if o.idempotency != nil {
		// The guard only has to cover the in-flight call; the draft is
		// discarded by the caller once the order exists.
		if err := o.idempotency.Delete(ctx, idemKey); err != nil {
			o.logger.Warn("release submission guard", slog.String("key", idemKey), slog.Any("error", err))
		}
	}

	o.logger.Info("production order submitted",
		slog.String("number", order.Number),
		slog.Int64("order_id", order.ID),
		slog.Int("warnings", len(result.Warnings)))
	return result, nil
}

// submissionKey scopes the duplicate-submission guard to one draft. The
// cookie session id is only a fallback for sessions stored before
// drafts carried their own id; keying on it would lock the operator out
// of a second order for the session's whole lifetime.
func submissionKey(sess *Session) string {
	if sess.DraftID != "" {
		return "wizard:submit:" + sess.DraftID
	}
	return "wizard:submit:" + sess.ID
}

// checkReady re-checks the submission guard authoritatively instead of
// trusting the UI's navigation state.
func (o *Orchestrator) checkReady(sess *Session) error {
	if !sess.Draft.Review.Acknowledge {
		return fmt.Errorf("%w: review not acknowledged", ErrDraftNotReady)
	}
	for step, res := range o.registry.ValidateAll(&sess.Draft) {
		if !res.Valid {
			return fmt.Errorf("%w: step %s invalid", ErrDraftNotReady, step)
		}
	}
	return nil
}

// createStageOperations synthesizes each stage's operation list from the
// template catalog. One stage's failure is recorded and the loop moves
// on; partial operation population beats losing the whole order.
func (o *Orchestrator) createStageOperations(ctx context.Context, order manufacturing.ProductionOrder) []StageOutcome {
	outcomes := make([]StageOutcome, 0, len(order.Stages))
	for _, stage := range order.Stages {
		outcome := StageOutcome{StageID: stage.ID, StageName: stage.Name, Status: "ok"}
		templates := TemplateFor(stage.Name, stage.Outsourced)
		if len(templates) == 0 {
			outcome.Status = "skipped"
			outcome.Detail = "no operation template for stage"
			outcomes = append(outcomes, outcome)
			continue
		}
		ops := make([]manufacturing.OperationInput, 0, len(templates))
		for _, tpl := range templates {
			ops = append(ops, manufacturing.OperationInput{
				Name:         tpl.Name,
				Order:        tpl.Order,
				Description:  tpl.Description,
				IsOutsourced: tpl.IsOutsourced,
			})
		}
		if err := o.orders.CreateOperations(ctx, stage.ID, ops); err != nil {
			o.logger.Warn("stage operation creation failed",
				slog.Int64("stage_id", stage.ID),
				slog.String("stage", stage.Name),
				slog.Any("error", err))
			outcome.Status = "failed"
			outcome.Detail = err.Error()
		} else {
			outcome.OperationsCreated = len(ops)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// createChallans drafts a dispatch challan for every outsourced
// customization stage with an assigned vendor, numbered from the order
// number and stage position.
func (o *Orchestrator) createChallans(ctx context.Context, order manufacturing.ProductionOrder, result *SubmissionResult) {
	for i, stage := range order.Stages {
		if !stage.Outsourced || stage.VendorID == nil {
			continue
		}
		if !stage.IsPrinting && !stage.IsEmbroidery {
			continue
		}
		number := ChallanNumber(order.Number, stage.Order)
		challan, err := o.orders.CreateChallan(ctx, manufacturing.ChallanInput{
			Number:   number,
			OrderID:  order.ID,
			StageID:  stage.ID,
			VendorID: *stage.VendorID,
			Remarks:  fmt.Sprintf("Job work for stage %s", stage.Name),
		})
		if err != nil {
			o.logger.Warn("challan creation failed",
				slog.Int64("stage_id", stage.ID),
				slog.String("number", number),
				slog.Any("error", err))
			result.Warnings = append(result.Warnings, fmt.Sprintf("challan %s not created: %v", number, err))
			continue
		}
		if i < len(result.Stages) {
			result.Stages[i].ChallanNumber = challan.Number
		}
	}
}

func (o *Orchestrator) observe(outcome string) {
	if o.metrics != nil {
		o.metrics.ObserveSubmission(outcome)
	}
}

// ChallanNumber derives the deterministic dispatch challan number for a
// stage of an order.
func ChallanNumber(orderNumber string, stageOrder int) string {
	return fmt.Sprintf("CH-%s-S%d", orderNumber, stageOrder)
}

// buildCreateOrderInput maps the finished draft onto the create-order
// payload. Stages are included only for a custom sequence; otherwise the
// downstream default applies. Vendor ids travel only on outsourced
// stages.
func buildCreateOrderInput(draft *OrderDraft) manufacturing.CreateOrderInput {
	start, _ := time.Parse(dateLayout, draft.Scheduling.PlannedStartDate)
	end, _ := time.Parse(dateLayout, draft.Scheduling.PlannedEndDate)

	materials := make([]manufacturing.RequiredMaterial, 0, len(draft.Materials.Items))
	for _, m := range draft.Materials.Items {
		materials = append(materials, manufacturing.RequiredMaterial{
			MaterialID:       m.MaterialID,
			Description:      m.Description,
			RequiredQuantity: m.RequiredQuantity,
			Unit:             m.Unit,
			Status:           string(m.Status),
		})
	}

	checkpoints := make([]manufacturing.QualityCheckpoint, 0, len(draft.Quality.Checkpoints))
	for _, c := range draft.Quality.Checkpoints {
		checkpoints = append(checkpoints, manufacturing.QualityCheckpoint{
			Name:               c.Name,
			Frequency:          string(c.Frequency),
			AcceptanceCriteria: c.AcceptanceCriteria,
		})
	}

	input := manufacturing.CreateOrderInput{
		ProductID:           draft.OrderDetails.ProductID,
		ProductionType:      string(draft.OrderDetails.ProductionType),
		Quantity:            draft.OrderDetails.Quantity,
		Priority:            string(draft.OrderDetails.Priority),
		SalesOrderID:        draft.OrderDetails.SalesOrderID,
		ApprovalID:          draft.OrderSelection.ApprovalID,
		SpecialInstructions: draft.OrderDetails.SpecialInstructions,
		PlannedStartDate:    start,
		PlannedEndDate:      end,
		EstimatedHours:      draft.Scheduling.EstimatedHours,
		Shift:               string(draft.Scheduling.Shift),
		Materials:           materials,
		Quality: manufacturing.QualityParameters{
			Checkpoints: checkpoints,
			Notes:       draft.Quality.Notes,
		},
		SupervisorID:   draft.Team.SupervisorID,
		AssignedUserID: draft.Team.AssignedUserID,
		QALeadID:       draft.Team.QALeadID,
		TeamNotes:      draft.Team.Notes,
	}

	if draft.Customization.UseCustomStages {
		stages := make([]manufacturing.StageInput, 0, len(draft.Customization.Stages))
		for i, s := range draft.Customization.Stages {
			stage := manufacturing.StageInput{
				Name:                 CanonicalStageName(s.Name),
				Order:                i + 1,
				PlannedDurationHours: s.DurationHours,
				IsPrinting:           s.IsPrinting,
				IsEmbroidery:         s.IsEmbroidery,
				CustomizationType:    s.CustomizationType(),
				Outsourced:           s.Outsourced,
			}
			if s.Outsourced && s.VendorID != nil {
				stage.VendorID = s.VendorID
			}
			stages = append(stages, stage)
		}
		input.Stages = stages
	}
	return input
}
