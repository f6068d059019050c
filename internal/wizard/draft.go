package wizard

// Step keys for the production order creation wizard, in navigation order.
type StepKey string

const (
	StepOrderSelection StepKey = "order_selection"
	StepOrderDetails   StepKey = "order_details"
	StepScheduling     StepKey = "scheduling"
	StepMaterials      StepKey = "materials"
	StepQuality        StepKey = "quality"
	StepTeam           StepKey = "team"
	StepCustomization  StepKey = "customization"
	StepReview         StepKey = "review"
)

// StepCount is the number of wizard steps.
const StepCount = 8

var stepOrder = [StepCount]StepKey{
	StepOrderSelection,
	StepOrderDetails,
	StepScheduling,
	StepMaterials,
	StepQuality,
	StepTeam,
	StepCustomization,
	StepReview,
}

// Steps returns the ordered step keys.
func Steps() []StepKey {
	out := make([]StepKey, StepCount)
	copy(out, stepOrder[:])
	return out
}

// StepAt maps an index to its step key. Out-of-range indices return "".
func StepAt(index int) StepKey {
	if index < 0 || index >= StepCount {
		return ""
	}
	return stepOrder[index]
}

// Index returns the position of the step key, or -1 when unknown.
func (k StepKey) Index() int {
	for i, s := range stepOrder {
		if s == k {
			return i
		}
	}
	return -1
}

// Production type of an order.
type ProductionType string

const (
	ProductionInHouse    ProductionType = "in_house"
	ProductionOutsourced ProductionType = "outsourced"
	ProductionMixed      ProductionType = "mixed"
)

// Order priority levels.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Working shift for the planned schedule.
type Shift string

const (
	ShiftGeneral Shift = "general"
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
	ShiftNight   Shift = "night"
)

// Material availability status.
type MaterialStatus string

const (
	MaterialAvailable MaterialStatus = "available"
	MaterialShortage  MaterialStatus = "shortage"
	MaterialOrdered   MaterialStatus = "ordered"
)

// Quality checkpoint frequency.
type CheckFrequency string

const (
	FrequencyPerPiece CheckFrequency = "per_piece"
	FrequencyPerBatch CheckFrequency = "per_batch"
	FrequencyHourly   CheckFrequency = "hourly"
	FrequencyDaily    CheckFrequency = "daily"
	FrequencyFinal    CheckFrequency = "final"
)

// OrderSelection holds the upstream approval reference for step 0.
type OrderSelection struct {
	ApprovalID *int64 `json:"approval_id"`
	AutoFilled bool   `json:"auto_filled"`
}

// OrderDetails holds the core order fields for step 1.
type OrderDetails struct {
	ProductID           *int64         `json:"product_id" validate:"required"`
	ProductionType      ProductionType `json:"production_type" validate:"required,oneof=in_house outsourced mixed"`
	Quantity            int            `json:"quantity" validate:"required,gt=0"`
	Priority            Priority       `json:"priority" validate:"required,oneof=low medium high urgent"`
	SalesOrderID        *int64         `json:"sales_order_id"`
	SpecialInstructions string         `json:"special_instructions"`
}

// Scheduling holds the planned dates and shift for step 2. Dates use the
// 2006-01-02 layout so form payloads round-trip without timezone noise.
type Scheduling struct {
	PlannedStartDate string   `json:"planned_start_date" validate:"required,datetime=2006-01-02"`
	PlannedEndDate   string   `json:"planned_end_date" validate:"required,datetime=2006-01-02"`
	Shift            Shift    `json:"shift" validate:"required,oneof=general morning evening night"`
	EstimatedHours   *float64 `json:"estimated_hours" validate:"omitempty,gte=0"`
}

// MaterialItem is one required material line in step 3.
type MaterialItem struct {
	MaterialID       *int64         `json:"material_id"`
	Description      string         `json:"description" validate:"required"`
	RequiredQuantity float64        `json:"required_quantity" validate:"required,gt=0"`
	Unit             string         `json:"unit" validate:"required"`
	Status           MaterialStatus `json:"status" validate:"required,oneof=available shortage ordered"`
}

// Materials is the step 3 slice.
type Materials struct {
	Items []MaterialItem `json:"items" validate:"min=1,dive"`
}

// QualityCheckpoint is one inspection point in step 4.
type QualityCheckpoint struct {
	Name               string         `json:"name" validate:"required"`
	Frequency          CheckFrequency `json:"frequency" validate:"required,oneof=per_piece per_batch hourly daily final"`
	AcceptanceCriteria string         `json:"acceptance_criteria" validate:"required"`
}

// Quality is the step 4 slice.
type Quality struct {
	Checkpoints []QualityCheckpoint `json:"checkpoints" validate:"min=1,dive"`
	Notes       string              `json:"notes"`
}

// Team is the step 5 slice. Everything here is optional.
type Team struct {
	SupervisorID   *int64 `json:"supervisor_id"`
	AssignedUserID *int64 `json:"assigned_user_id"`
	QALeadID       *int64 `json:"qa_lead_id"`
	Notes          string `json:"notes"`
}

// CustomStage is one entry in a custom stage sequence. A vendor is
// mandatory only when the stage is marked outsourced.
type CustomStage struct {
	Name          string   `json:"name" validate:"required"`
	DurationHours *float64 `json:"duration_hours" validate:"omitempty,gte=0"`
	IsPrinting    bool     `json:"is_printing"`
	IsEmbroidery  bool     `json:"is_embroidery"`
	Outsourced    bool     `json:"outsourced"`
	VendorID      *int64   `json:"vendor_id" validate:"required_if=Outsourced true"`
}

// Customization is the step 6 slice. Stages is non-empty iff
// UseCustomStages is set; when unset the default sequence applies.
type Customization struct {
	UseCustomStages bool          `json:"use_custom_stages"`
	Stages          []CustomStage `json:"stages"`
}

// Review is the step 7 slice.
type Review struct {
	Acknowledge bool `json:"acknowledge"`
}

// OrderDraft is the single aggregate edited across all wizard steps.
type OrderDraft struct {
	OrderSelection OrderSelection `json:"order_selection"`
	OrderDetails   OrderDetails   `json:"order_details"`
	Scheduling     Scheduling     `json:"scheduling"`
	Materials      Materials      `json:"materials"`
	Quality        Quality        `json:"quality"`
	Team           Team           `json:"team"`
	Customization  Customization  `json:"customization"`
	Review         Review         `json:"review"`
}

// NewOrderDraft returns a draft with explicit empty defaults so that
// field comparisons never have to distinguish missing from empty.
func NewOrderDraft() OrderDraft {
	return OrderDraft{
		OrderDetails: OrderDetails{
			ProductionType: ProductionInHouse,
			Priority:       PriorityMedium,
		},
		Scheduling: Scheduling{
			Shift: ShiftGeneral,
		},
		Materials: Materials{Items: []MaterialItem{}},
		Quality:   Quality{Checkpoints: []QualityCheckpoint{}},
		Customization: Customization{
			Stages: []CustomStage{},
		},
	}
}

// DefaultStageNames is the fixed production sequence applied when the
// operator does not provide custom stages.
var DefaultStageNames = []string{
	"Cutting",
	"Stitching",
	"Embroidery",
	"Printing",
	"Finishing",
	"Packing",
}

// DefaultStages expands DefaultStageNames into stage entries with the
// customization flags the downstream order logic expects.
func DefaultStages() []CustomStage {
	stages := make([]CustomStage, 0, len(DefaultStageNames))
	for _, name := range DefaultStageNames {
		stages = append(stages, CustomStage{
			Name:         name,
			IsPrinting:   name == "Printing",
			IsEmbroidery: name == "Embroidery",
		})
	}
	return stages
}

// CustomizationType derives the downstream customization_type value from
// the stage's two boolean flags.
func (s CustomStage) CustomizationType() string {
	switch {
	case s.IsPrinting && s.IsEmbroidery:
		return "both"
	case s.IsPrinting:
		return "printing"
	case s.IsEmbroidery:
		return "embroidery"
	default:
		return "none"
	}
}
