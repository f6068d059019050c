package approvals

import (
	"errors"
	"time"
)

// Approval lifecycle statuses.
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusApproved          Status = "APPROVED"
	StatusProductionStarted Status = "PRODUCTION_STARTED"
)

var (
	// ErrNotFound indicates a missing approval record.
	ErrNotFound = errors.New("approvals: not found")
	// ErrInvalidState indicates an illegal status transition.
	ErrInvalidState = errors.New("approvals: invalid state transition")
)

// OrderItem is one line of the upstream sales or purchase order. The
// product reference is kept as text because upstream systems send either
// a numeric id or a product code.
type OrderItem struct {
	ProductRef  string  `json:"product_ref"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UOM         string  `json:"uom"`
}

// RequestedMaterial is one line of an MRN's requested materials.
type RequestedMaterial struct {
	MaterialID        *int64  `json:"material_id"`
	MaterialName      string  `json:"material_name"`
	QuantityRequested float64 `json:"quantity_requested"`
	UOM               string  `json:"uom"`
}

// ReceivedMaterial is one line of a goods receipt's received materials.
type ReceivedMaterial struct {
	MaterialID       *int64  `json:"material_id"`
	MaterialName     string  `json:"material_name"`
	QuantityReceived float64 `json:"quantity_received"`
	UOM              string  `json:"uom"`
}

// UpstreamRequest bundles whatever document triggered the approval.
type UpstreamRequest struct {
	SalesOrderID       *int64              `json:"sales_order_id"`
	PurchaseOrderID    *int64              `json:"purchase_order_id"`
	CustomerName       string              `json:"customer_name"`
	SalesOrderItems    []OrderItem         `json:"sales_order_items"`
	PurchaseOrderItems []OrderItem         `json:"purchase_order_items"`
	RequestedMaterials []RequestedMaterial `json:"requested_materials"`
}

// Verification is the materials-verified sub-record.
type Verification struct {
	ReceivedMaterials []ReceivedMaterial `json:"received_materials"`
	VerifiedBy        int64              `json:"verified_by"`
	VerifiedAt        time.Time          `json:"verified_at"`
}

// Approval is the "materials verified, ready for production" record that
// seeds a new production order draft.
type Approval struct {
	ID                int64           `json:"id"`
	Number            string          `json:"number"`
	Status            Status          `json:"status"`
	Notes             string          `json:"notes"`
	Request           UpstreamRequest `json:"request"`
	Verification      *Verification   `json:"verification,omitempty"`
	ProductionOrderID *int64          `json:"production_order_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
