package manufacturing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (ProductionOrder, error)
	GetStage(ctx context.Context, id int64) (Stage, error)
	ListOrders(ctx context.Context, filters ListFilters) ([]ProductionOrder, int, error)
	ListOperations(ctx context.Context, stageID int64) ([]Operation, error)
	ListChallans(ctx context.Context, orderID int64) ([]Challan, error)
}

// AuditPort records order lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status   OrderStatus
	Priority string
	Search   string
	Limit    int
	Offset   int
}

// Service orchestrates production order persistence.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the manufacturing service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// StageInput describes one stage of a custom sequence.
type StageInput struct {
	Name                 string   `json:"stage_name"`
	Order                int      `json:"stage_order"`
	PlannedDurationHours *float64 `json:"planned_duration_hours"`
	IsPrinting           bool     `json:"is_printing"`
	IsEmbroidery         bool     `json:"is_embroidery"`
	CustomizationType    string   `json:"customization_type"`
	Outsourced           bool     `json:"outsourced"`
	VendorID             *int64   `json:"vendor_id"`
}

// CreateOrderInput is the create-order payload. When Stages is empty the
// default six-stage sequence is applied.
type CreateOrderInput struct {
	ProductID           *int64             `json:"product_id"`
	ProductionType      string             `json:"production_type"`
	Quantity            int                `json:"quantity"`
	Priority            string             `json:"priority"`
	SalesOrderID        *int64             `json:"sales_order_id"`
	ApprovalID          *int64             `json:"production_approval_id"`
	SpecialInstructions string             `json:"special_instructions"`
	PlannedStartDate    time.Time          `json:"planned_start_date"`
	PlannedEndDate      time.Time          `json:"planned_end_date"`
	EstimatedHours      *float64           `json:"estimated_hours"`
	Shift               string             `json:"shift"`
	Materials           []RequiredMaterial `json:"materials_required"`
	Quality             QualityParameters  `json:"quality_parameters"`
	SupervisorID        *int64             `json:"supervisor_id"`
	AssignedUserID      *int64             `json:"assigned_user_id"`
	QALeadID            *int64             `json:"qa_lead_id"`
	TeamNotes           string             `json:"team_notes"`
	Stages              []StageInput       `json:"stages,omitempty"`
}

// OperationInput describes one operation to create under a stage.
type OperationInput struct {
	Name         string `json:"name"`
	Order        int    `json:"operation_order"`
	Description  string `json:"description"`
	IsOutsourced bool   `json:"is_outsourced"`
}

// ChallanInput describes a dispatch challan to create for a stage.
type ChallanInput struct {
	Number   string `json:"number"`
	OrderID  int64  `json:"order_id"`
	StageID  int64  `json:"stage_id"`
	VendorID int64  `json:"vendor_id"`
	Remarks  string `json:"remarks"`
}

// CreateOrder persists the order, its materials and quality parameters,
// and its stage list. Creation is atomic; stages returned carry their
// generated ids in execution order.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (ProductionOrder, error) {
	if input.Quantity <= 0 {
		return ProductionOrder{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if input.PlannedEndDate.Before(input.PlannedStartDate) {
		return ProductionOrder{}, fmt.Errorf("%w: planned end before start", ErrValidation)
	}
	if len(input.Materials) == 0 {
		return ProductionOrder{}, fmt.Errorf("%w: at least one required material", ErrValidation)
	}

	stages := buildStages(input.Stages)

	order := ProductionOrder{
		ProductID:           input.ProductID,
		ProductionType:      input.ProductionType,
		Quantity:            input.Quantity,
		Priority:            input.Priority,
		SalesOrderID:        input.SalesOrderID,
		ApprovalID:          input.ApprovalID,
		SpecialInstructions: input.SpecialInstructions,
		PlannedStartDate:    input.PlannedStartDate,
		PlannedEndDate:      input.PlannedEndDate,
		EstimatedHours:      input.EstimatedHours,
		Shift:               input.Shift,
		Materials:           input.Materials,
		Quality:             input.Quality,
		SupervisorID:        input.SupervisorID,
		AssignedUserID:      input.AssignedUserID,
		QALeadID:            input.QALeadID,
		TeamNotes:           input.TeamNotes,
		Status:              OrderStatusPlanned,
	}

	var created ProductionOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextOrderNumber(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("next order number: %w", err)
		}
		order.Number = number
		orderID, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		created = order
		created.ID = orderID
		for i := range stages {
			stages[i].OrderID = orderID
			stageID, err := tx.InsertStage(ctx, stages[i])
			if err != nil {
				return fmt.Errorf("insert stage %q: %w", stages[i].Name, err)
			}
			stages[i].ID = stageID
		}
		created.Stages = stages
		return nil
	})
	if err != nil {
		return ProductionOrder{}, err
	}

	s.recordAudit(ctx, "ORDER_CREATE", created.ID, map[string]any{"number": created.Number, "stages": len(created.Stages)})
	s.logger.Info("production order created",
		slog.String("number", created.Number),
		slog.Int64("order_id", created.ID),
		slog.Int("stages", len(created.Stages)))
	return created, nil
}

// CreateOperations inserts the operation list under a stage.
func (s *Service) CreateOperations(ctx context.Context, stageID int64, ops []OperationInput) error {
	if len(ops) == 0 {
		return nil
	}
	if _, err := s.repo.GetStage(ctx, stageID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, op := range ops {
			if strings.TrimSpace(op.Name) == "" {
				return fmt.Errorf("%w: operation name required", ErrValidation)
			}
			record := Operation{
				StageID:      stageID,
				Name:         op.Name,
				Order:        op.Order,
				Description:  op.Description,
				IsOutsourced: op.IsOutsourced,
				Status:       "pending",
			}
			if err := tx.InsertOperation(ctx, record); err != nil {
				return fmt.Errorf("insert operation %q: %w", op.Name, err)
			}
		}
		return nil
	})
}

// CreateChallan creates a draft dispatch challan for an outsourced
// stage. The number is supplied by the caller and unique per stage.
func (s *Service) CreateChallan(ctx context.Context, input ChallanInput) (Challan, error) {
	if input.Number == "" || input.StageID == 0 || input.VendorID == 0 {
		return Challan{}, fmt.Errorf("%w: challan number, stage and vendor required", ErrValidation)
	}
	challan := Challan{
		Number:   input.Number,
		OrderID:  input.OrderID,
		StageID:  input.StageID,
		VendorID: input.VendorID,
		Status:   ChallanStatusDraft,
		Remarks:  input.Remarks,
	}
	var created Challan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertChallan(ctx, challan)
		if err != nil {
			return err
		}
		created = challan
		created.ID = id
		return nil
	})
	if err != nil {
		return Challan{}, err
	}
	s.recordAudit(ctx, "CHALLAN_CREATE", created.ID, map[string]any{"number": created.Number})
	return created, nil
}

// GetOrder fetches an order with stages.
func (s *Service) GetOrder(ctx context.Context, id int64) (ProductionOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns a page of orders.
func (s *Service) ListOrders(ctx context.Context, filters ListFilters) ([]ProductionOrder, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	return s.repo.ListOrders(ctx, filters)
}

// ListOperations returns a stage's operations in order.
func (s *Service) ListOperations(ctx context.Context, stageID int64) ([]Operation, error) {
	return s.repo.ListOperations(ctx, stageID)
}

// ListChallans returns an order's dispatch challans.
func (s *Service) ListChallans(ctx context.Context, orderID int64) ([]Challan, error) {
	return s.repo.ListChallans(ctx, orderID)
}

// buildStages normalizes the supplied stage list or falls back to the
// default sequence. Stage order is reassigned sequentially and the
// customization type is derived from the flags when absent.
func buildStages(inputs []StageInput) []Stage {
	if len(inputs) == 0 {
		inputs = defaultStageInputs()
	}
	stages := make([]Stage, 0, len(inputs))
	for i, in := range inputs {
		ct := in.CustomizationType
		if ct == "" {
			ct = deriveCustomizationType(in.IsPrinting, in.IsEmbroidery)
		}
		vendorID := in.VendorID
		if !in.Outsourced {
			vendorID = nil
		}
		stages = append(stages, Stage{
			Name:                 strings.TrimSpace(in.Name),
			Order:                i + 1,
			PlannedDurationHours: in.PlannedDurationHours,
			IsPrinting:           in.IsPrinting,
			IsEmbroidery:         in.IsEmbroidery,
			CustomizationType:    ct,
			Outsourced:           in.Outsourced,
			VendorID:             vendorID,
			Status:               StageStatusPending,
		})
	}
	return stages
}

func defaultStageInputs() []StageInput {
	inputs := make([]StageInput, 0, len(DefaultStageNames))
	for i, name := range DefaultStageNames {
		inputs = append(inputs, StageInput{
			Name:         name,
			Order:        i + 1,
			IsPrinting:   name == "Printing",
			IsEmbroidery: name == "Embroidery",
		})
	}
	return inputs
}

func deriveCustomizationType(printing, embroidery bool) string {
	switch {
	case printing && embroidery:
		return "both"
	case printing:
		return "printing"
	case embroidery:
		return "embroidery"
	default:
		return "none"
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: "manufacturing", EntityID: fmt.Sprintf("%d", entityID), Meta: meta})
}
