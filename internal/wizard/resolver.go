package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/stitchline-erp/stitchline-erp/internal/approvals"
	"github.com/stitchline-erp/stitchline-erp/internal/masterdata/products"
)

// ErrResolution indicates auto-population failed; the draft is left
// untouched and the operator may retry or fill the form manually.
var ErrResolution = errors.New("wizard: auto-population failed")

// ApprovalPort fetches the approval bundle that seeds a draft.
type ApprovalPort interface {
	Get(ctx context.Context, id int64) (approvals.Approval, error)
}

// ProductPort resolves product references for the draft and the picker.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
	ResolveCode(ctx context.Context, code string) (products.Product, error)
}

// Resolver populates a draft from an upstream approval record.
type Resolver struct {
	approvals ApprovalPort
	products  ProductPort
	logger    *slog.Logger
	group     singleflight.Group
}

// NewResolver constructs the auto-population resolver.
func NewResolver(approvalPort ApprovalPort, productPort ProductPort, logger *slog.Logger) *Resolver {
	return &Resolver{approvals: approvalPort, products: productPort, logger: logger}
}

// PopulateResult summarizes what a successful resolution filled in.
type PopulateResult struct {
	CustomerName  string `json:"customer_name,omitempty"`
	MaterialCount int    `json:"material_count"`
	ProductID     *int64 `json:"product_id,omitempty"`
	AlreadyFilled bool   `json:"already_filled"`
}

var customerLineRe = regexp.MustCompile(`(?im)^\s*customer\s*[:\-]\s*(.+)$`)

// Populate fills order details and materials from the approval record.
// It is idempotent per approval id: a draft already auto-filled from the
// same approval is returned unchanged, so later manual edits are never
// clobbered. All upstream data is gathered before the first draft write;
// any fetch error leaves the draft unmodified.
func (r *Resolver) Populate(ctx context.Context, sess *Session, approvalID int64) (PopulateResult, error) {
	sel := sess.Draft.OrderSelection
	if sel.AutoFilled && sel.ApprovalID != nil && *sel.ApprovalID == approvalID {
		return PopulateResult{AlreadyFilled: true}, nil
	}

	approval, err := r.approvals.Get(ctx, approvalID)
	if err != nil {
		return PopulateResult{}, fmt.Errorf("%w: fetch approval %d: %v", ErrResolution, approvalID, err)
	}

	details := sess.Draft.OrderDetails
	details.SalesOrderID = approval.Request.SalesOrderID

	customer := extractCustomer(approval)
	details.SpecialInstructions = buildInstructions(approval.Notes, customer)

	if item, ok := firstOrderItem(approval); ok {
		if qty := int(item.Quantity); qty > 0 {
			details.Quantity = qty
		}
		if product, ok := r.resolveProduct(ctx, item.ProductRef); ok {
			details.ProductID = &product.ID
			sess.MergeProductOption(ProductOption{ID: product.ID, Code: product.Code, Name: product.Name})
		}
	}
	if details.Quantity <= 0 {
		details.Quantity = 1
	}

	materials := materialsFrom(approval)

	// Point of no return: everything fetched, now write the draft.
	sess.SetOrderDetails(details)
	sess.SetMaterials(Materials{Items: materials})
	id := approvalID
	sess.SetOrderSelection(OrderSelection{ApprovalID: &id, AutoFilled: true})

	return PopulateResult{
		CustomerName:  customer,
		MaterialCount: len(materials),
		ProductID:     details.ProductID,
	}, nil
}

// resolveProduct handles references that may be a numeric id or a
// product code. Resolution failures degrade to an unset product rather
// than failing the whole population. Concurrent identical code lookups
// are collapsed through singleflight.
func (r *Resolver) resolveProduct(ctx context.Context, ref string) (products.Product, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return products.Product{}, false
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		p, err := r.products.Get(ctx, id)
		if err != nil {
			r.logger.Warn("resolve product id", slog.String("ref", ref), slog.Any("error", err))
			return products.Product{}, false
		}
		return p, true
	}
	v, err, _ := r.group.Do("product-code:"+ref, func() (any, error) {
		return r.products.ResolveCode(ctx, ref)
	})
	if err != nil {
		r.logger.Warn("resolve product code", slog.String("ref", ref), slog.Any("error", err))
		return products.Product{}, false
	}
	return v.(products.Product), true
}

// firstOrderItem picks the leading upstream line: sales order items
// first, purchase order items as the alternate structured source.
func firstOrderItem(a approvals.Approval) (approvals.OrderItem, bool) {
	if len(a.Request.SalesOrderItems) > 0 {
		return a.Request.SalesOrderItems[0], true
	}
	if len(a.Request.PurchaseOrderItems) > 0 {
		return a.Request.PurchaseOrderItems[0], true
	}
	return approvals.OrderItem{}, false
}

// materialsFrom picks the richest available material list: verified
// received materials first, then the MRN's requested materials, then
// order lines as a last resort.
func materialsFrom(a approvals.Approval) []MaterialItem {
	if a.Verification != nil && len(a.Verification.ReceivedMaterials) > 0 {
		items := make([]MaterialItem, 0, len(a.Verification.ReceivedMaterials))
		for _, m := range a.Verification.ReceivedMaterials {
			items = append(items, MaterialItem{
				MaterialID:       m.MaterialID,
				Description:      fallbackText(m.MaterialName),
				RequiredQuantity: m.QuantityReceived,
				Unit:             fallbackText(m.UOM),
				Status:           MaterialAvailable,
			})
		}
		return items
	}
	if len(a.Request.RequestedMaterials) > 0 {
		items := make([]MaterialItem, 0, len(a.Request.RequestedMaterials))
		for _, m := range a.Request.RequestedMaterials {
			items = append(items, MaterialItem{
				MaterialID:       m.MaterialID,
				Description:      fallbackText(m.MaterialName),
				RequiredQuantity: m.QuantityRequested,
				Unit:             fallbackText(m.UOM),
				Status:           MaterialOrdered,
			})
		}
		return items
	}
	lines := a.Request.PurchaseOrderItems
	status := MaterialOrdered
	if len(a.Request.SalesOrderItems) > 0 {
		lines = a.Request.SalesOrderItems
		status = MaterialAvailable
	}
	items := make([]MaterialItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, MaterialItem{
			Description:      fallbackText(l.ProductName),
			RequiredQuantity: l.Quantity,
			Unit:             fallbackText(l.UOM),
			Status:           status,
		})
	}
	return items
}

// extractCustomer prefers the structured customer field and falls back
// to parsing a "Customer: X" line out of the free-text notes.
func extractCustomer(a approvals.Approval) string {
	if name := strings.TrimSpace(a.Request.CustomerName); name != "" {
		return name
	}
	if m := customerLineRe.FindStringSubmatch(a.Notes); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func buildInstructions(notes, customer string) string {
	notes = strings.TrimSpace(notes)
	switch {
	case customer != "" && notes != "" && !strings.Contains(notes, customer):
		return "Customer: " + customer + "\n" + notes
	case customer != "" && notes == "":
		return "Customer: " + customer
	case notes != "":
		return notes
	default:
		return "N/A"
	}
}

func fallbackText(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
