package manufacturing

import (
	"errors"
	"time"
)

// Production order lifecycle statuses.
type OrderStatus string

const (
	OrderStatusPlanned    OrderStatus = "PLANNED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Stage statuses.
type StageStatus string

const (
	StageStatusPending    StageStatus = "PENDING"
	StageStatusInProgress StageStatus = "IN_PROGRESS"
	StageStatusCompleted  StageStatus = "COMPLETED"
)

// Challan lifecycle statuses. Challans are created as drafts by the
// submission flow and dispatched later from the outsourcing screen.
type ChallanStatus string

const (
	ChallanStatusDraft      ChallanStatus = "DRAFT"
	ChallanStatusDispatched ChallanStatus = "DISPATCHED"
	ChallanStatusReturned   ChallanStatus = "RETURNED"
)

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("manufacturing: not found")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("manufacturing: validation failed")
	// ErrDuplicate indicates a unique-constraint conflict.
	ErrDuplicate = errors.New("manufacturing: duplicate entry")
)

// DefaultStageNames is the fixed sequence applied when an order is
// created without explicit stages.
var DefaultStageNames = []string{
	"Cutting",
	"Stitching",
	"Embroidery",
	"Printing",
	"Finishing",
	"Packing",
}

// RequiredMaterial is one line of an order's bill of materials.
type RequiredMaterial struct {
	MaterialID       *int64  `json:"material_id"`
	Description      string  `json:"description"`
	RequiredQuantity float64 `json:"required_quantity"`
	Unit             string  `json:"unit"`
	Status           string  `json:"status"`
}

// QualityCheckpoint is one inspection point on the order.
type QualityCheckpoint struct {
	Name               string `json:"name"`
	Frequency          string `json:"frequency"`
	AcceptanceCriteria string `json:"acceptance_criteria"`
}

// QualityParameters groups the order's checkpoints and notes.
type QualityParameters struct {
	Checkpoints []QualityCheckpoint `json:"checkpoints"`
	Notes       string              `json:"notes"`
}

// Stage is one phase of production on an order.
type Stage struct {
	ID                   int64       `json:"id"`
	OrderID              int64       `json:"order_id"`
	Name                 string      `json:"stage_name"`
	Order                int         `json:"stage_order"`
	PlannedDurationHours *float64    `json:"planned_duration_hours,omitempty"`
	IsPrinting           bool        `json:"is_printing"`
	IsEmbroidery         bool        `json:"is_embroidery"`
	CustomizationType    string      `json:"customization_type"`
	Outsourced           bool        `json:"outsourced"`
	VendorID             *int64      `json:"vendor_id,omitempty"`
	Status               StageStatus `json:"status"`
}

// Operation is a discrete task within a stage.
type Operation struct {
	ID           int64  `json:"id"`
	StageID      int64  `json:"stage_id"`
	Name         string `json:"name"`
	Order        int    `json:"operation_order"`
	Description  string `json:"description"`
	IsOutsourced bool   `json:"is_outsourced"`
	Status       string `json:"status"`
}

// Challan is a dispatch document for materials sent to a job-work
// vendor.
type Challan struct {
	ID        int64         `json:"id"`
	Number    string        `json:"number"`
	OrderID   int64         `json:"order_id"`
	StageID   int64         `json:"stage_id"`
	VendorID  int64         `json:"vendor_id"`
	Status    ChallanStatus `json:"status"`
	Remarks   string        `json:"remarks"`
	CreatedAt time.Time     `json:"created_at"`
}

// ProductionOrder is the aggregate created by wizard submission.
type ProductionOrder struct {
	ID                  int64             `json:"id"`
	Number              string            `json:"number"`
	ProductID           *int64            `json:"product_id"`
	ProductionType      string            `json:"production_type"`
	Quantity            int               `json:"quantity"`
	Priority            string            `json:"priority"`
	SalesOrderID        *int64            `json:"sales_order_id,omitempty"`
	ApprovalID          *int64            `json:"production_approval_id,omitempty"`
	SpecialInstructions string            `json:"special_instructions"`
	PlannedStartDate    time.Time         `json:"planned_start_date"`
	PlannedEndDate      time.Time         `json:"planned_end_date"`
	EstimatedHours      *float64          `json:"estimated_hours,omitempty"`
	Shift               string            `json:"shift"`
	Materials           []RequiredMaterial `json:"materials_required"`
	Quality             QualityParameters `json:"quality_parameters"`
	SupervisorID        *int64            `json:"supervisor_id,omitempty"`
	AssignedUserID      *int64            `json:"assigned_user_id,omitempty"`
	QALeadID            *int64            `json:"qa_lead_id,omitempty"`
	TeamNotes           string            `json:"team_notes"`
	Status              OrderStatus       `json:"status"`
	Stages              []Stage           `json:"stages"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}
