package wizard

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/approvals"
	"github.com/stitchline-erp/stitchline-erp/internal/masterdata/products"
)

type fakeApprovals struct {
	records map[int64]approvals.Approval
}

func (f *fakeApprovals) Get(ctx context.Context, id int64) (approvals.Approval, error) {
	a, ok := f.records[id]
	if !ok {
		return approvals.Approval{}, approvals.ErrNotFound
	}
	return a, nil
}

type fakeProducts struct {
	byID   map[int64]products.Product
	byCode map[string]products.Product
}

func (f *fakeProducts) Get(ctx context.Context, id int64) (products.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return products.Product{}, errors.New("product not found")
	}
	return p, nil
}

func (f *fakeProducts) ResolveCode(ctx context.Context, code string) (products.Product, error) {
	p, ok := f.byCode[code]
	if !ok {
		return products.Product{}, errors.New("product not found")
	}
	return p, nil
}

func newTestResolver(approvalRecords map[int64]approvals.Approval, productFake *fakeProducts) *Resolver {
	if productFake == nil {
		productFake = &fakeProducts{byID: map[int64]products.Product{}, byCode: map[string]products.Product{}}
	}
	return NewResolver(&fakeApprovals{records: approvalRecords}, productFake, slog.Default())
}

func TestPopulateFromReceivedMaterials(t *testing.T) {
	tshirt := products.Product{ID: 11, Code: "TS-001", Name: "Classic Crew T-Shirt"}
	soID := int64(4101)
	approval := approvals.Approval{
		ID:     1,
		Status: approvals.StatusApproved,
		Notes:  "Rush order.",
		Request: approvals.UpstreamRequest{
			SalesOrderID: &soID,
			CustomerName: "Northwind Apparel",
			SalesOrderItems: []approvals.OrderItem{
				{ProductRef: "TS-001", ProductName: "Classic Crew T-Shirt", Quantity: 500, UOM: "pcs"},
			},
		},
		Verification: &approvals.Verification{
			ReceivedMaterials: []approvals.ReceivedMaterial{
				{MaterialName: "Cotton", QuantityReceived: 50, UOM: "kg"},
			},
		},
	}
	resolver := newTestResolver(map[int64]approvals.Approval{1: approval}, &fakeProducts{
		byID:   map[int64]products.Product{},
		byCode: map[string]products.Product{"TS-001": tshirt},
	})
	sess := newTestSession(t)

	res, err := resolver.Populate(context.Background(), sess, 1)
	require.NoError(t, err)
	require.False(t, res.AlreadyFilled)
	require.Equal(t, "Northwind Apparel", res.CustomerName)
	require.Equal(t, 1, res.MaterialCount)

	details := sess.Draft.OrderDetails
	require.NotNil(t, details.ProductID)
	require.Equal(t, int64(11), *details.ProductID)
	require.Equal(t, 500, details.Quantity)
	require.Equal(t, &soID, details.SalesOrderID)
	require.Contains(t, details.SpecialInstructions, "Customer: Northwind Apparel")
	require.Contains(t, details.SpecialInstructions, "Rush order.")

	items := sess.Draft.Materials.Items
	require.Len(t, items, 1)
	require.Equal(t, "Cotton", items[0].Description)
	require.Equal(t, 50.0, items[0].RequiredQuantity)
	require.Equal(t, "kg", items[0].Unit)
	require.Equal(t, MaterialAvailable, items[0].Status)

	sel := sess.Draft.OrderSelection
	require.True(t, sel.AutoFilled)
	require.Equal(t, int64(1), *sel.ApprovalID)
	require.Len(t, sess.ProductOptions, 1)
}

func TestPopulateFallsBackToRequestedMaterials(t *testing.T) {
	approval := approvals.Approval{
		ID: 2,
		Request: approvals.UpstreamRequest{
			RequestedMaterials: []approvals.RequestedMaterial{
				{MaterialName: "Brushed Fleece", QuantityRequested: 210, UOM: "kg"},
				{MaterialName: "", QuantityRequested: 12, UOM: ""},
			},
		},
	}
	resolver := newTestResolver(map[int64]approvals.Approval{2: approval}, nil)
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 2)
	require.NoError(t, err)

	items := sess.Draft.Materials.Items
	require.Len(t, items, 2)
	require.Equal(t, MaterialOrdered, items[0].Status)
	require.Equal(t, "N/A", items[1].Description)
	require.Equal(t, "N/A", items[1].Unit)
}

func TestPopulateDerivesMaterialsFromOrderLines(t *testing.T) {
	poID := int64(7201)
	approval := approvals.Approval{
		ID: 3,
		Request: approvals.UpstreamRequest{
			PurchaseOrderID: &poID,
			PurchaseOrderItems: []approvals.OrderItem{
				{ProductRef: "HD-020", ProductName: "Pullover Hoodie", Quantity: 300, UOM: "pcs"},
			},
		},
	}
	resolver := newTestResolver(map[int64]approvals.Approval{3: approval}, nil)
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 3)
	require.NoError(t, err)

	items := sess.Draft.Materials.Items
	require.Len(t, items, 1)
	require.Equal(t, "Pullover Hoodie", items[0].Description)
	require.Equal(t, MaterialOrdered, items[0].Status)
	require.Equal(t, 300, sess.Draft.OrderDetails.Quantity)
}

func TestPopulateResolvesNumericProductRef(t *testing.T) {
	hoodie := products.Product{ID: 20, Code: "HD-020", Name: "Pullover Hoodie"}
	approval := approvals.Approval{
		ID: 4,
		Request: approvals.UpstreamRequest{
			SalesOrderItems: []approvals.OrderItem{
				{ProductRef: "20", Quantity: 100},
			},
		},
	}
	resolver := newTestResolver(map[int64]approvals.Approval{4: approval}, &fakeProducts{
		byID:   map[int64]products.Product{20: hoodie},
		byCode: map[string]products.Product{},
	})
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 4)
	require.NoError(t, err)
	require.Equal(t, int64(20), *sess.Draft.OrderDetails.ProductID)
}

func TestPopulateDegradesWhenProductUnresolvable(t *testing.T) {
	approval := approvals.Approval{
		ID: 5,
		Request: approvals.UpstreamRequest{
			SalesOrderItems: []approvals.OrderItem{
				{ProductRef: "GONE-999", ProductName: "Retired Style", Quantity: 40, UOM: "pcs"},
			},
		},
	}
	resolver := newTestResolver(map[int64]approvals.Approval{5: approval}, nil)
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 5)
	require.NoError(t, err)
	require.Nil(t, sess.Draft.OrderDetails.ProductID)
	require.Equal(t, 40, sess.Draft.OrderDetails.Quantity)
}

func TestPopulateExtractsCustomerFromNotes(t *testing.T) {
	approval := approvals.Approval{
		ID:    6,
		Notes: "Urgent.\ncustomer - Harbor & Main\nShip partials if needed.",
	}
	resolver := newTestResolver(map[int64]approvals.Approval{6: approval}, nil)
	sess := newTestSession(t)

	res, err := resolver.Populate(context.Background(), sess, 6)
	require.NoError(t, err)
	require.Equal(t, "Harbor & Main", res.CustomerName)
	require.Contains(t, sess.Draft.OrderDetails.SpecialInstructions, "Customer: Harbor & Main")
}

func TestPopulateUsesPlaceholderWhenNothingKnown(t *testing.T) {
	resolver := newTestResolver(map[int64]approvals.Approval{7: {ID: 7}}, nil)
	sess := newTestSession(t)

	res, err := resolver.Populate(context.Background(), sess, 7)
	require.NoError(t, err)
	require.Empty(t, res.CustomerName)
	require.Equal(t, "N/A", sess.Draft.OrderDetails.SpecialInstructions)
	require.Equal(t, 1, sess.Draft.OrderDetails.Quantity)
}

func TestPopulateIsIdempotentPerApproval(t *testing.T) {
	approval := approvals.Approval{
		ID: 8,
		Request: approvals.UpstreamRequest{
			CustomerName: "Northwind Apparel",
			SalesOrderItems: []approvals.OrderItem{
				{ProductRef: "TS-001", Quantity: 500},
			},
		},
	}
	resolver := newTestResolver(map[int64]approvals.Approval{8: approval}, nil)
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 8)
	require.NoError(t, err)

	// Manual edit after population must survive a second call.
	details := sess.Draft.OrderDetails
	details.Quantity = 750
	sess.SetOrderDetails(details)

	res, err := resolver.Populate(context.Background(), sess, 8)
	require.NoError(t, err)
	require.True(t, res.AlreadyFilled)
	require.Equal(t, 750, sess.Draft.OrderDetails.Quantity)
}

func TestPopulateRefillsForDifferentApproval(t *testing.T) {
	records := map[int64]approvals.Approval{
		9:  {ID: 9, Request: approvals.UpstreamRequest{SalesOrderItems: []approvals.OrderItem{{Quantity: 100}}}},
		10: {ID: 10, Request: approvals.UpstreamRequest{SalesOrderItems: []approvals.OrderItem{{Quantity: 250}}}},
	}
	resolver := newTestResolver(records, nil)
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 9)
	require.NoError(t, err)
	require.Equal(t, 100, sess.Draft.OrderDetails.Quantity)

	res, err := resolver.Populate(context.Background(), sess, 10)
	require.NoError(t, err)
	require.False(t, res.AlreadyFilled)
	require.Equal(t, 250, sess.Draft.OrderDetails.Quantity)
	require.Equal(t, int64(10), *sess.Draft.OrderSelection.ApprovalID)
}

func TestPopulateFailureLeavesDraftUntouched(t *testing.T) {
	resolver := newTestResolver(map[int64]approvals.Approval{}, nil)
	sess := newTestSession(t)

	_, err := resolver.Populate(context.Background(), sess, 404)
	require.ErrorIs(t, err, ErrResolution)
	require.Equal(t, NewOrderDraft(), sess.Draft)
	require.Empty(t, sess.State.CompletedSteps)
	require.Empty(t, sess.State.InvalidSteps)
}
