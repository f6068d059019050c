package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/approvals"
	"github.com/stitchline-erp/stitchline-erp/internal/manufacturing"
)

type fakeReconcileOrders struct {
	order      manufacturing.ProductionOrder
	getErr     error
	existing   map[int64][]manufacturing.Operation
	challans   []manufacturing.Challan
	opsErr     map[int64]error
	challanErr error

	createdOps      map[int64][]manufacturing.OperationInput
	createdChallans []manufacturing.ChallanInput
}

func newFakeReconcileOrders(order manufacturing.ProductionOrder) *fakeReconcileOrders {
	return &fakeReconcileOrders{
		order:      order,
		existing:   map[int64][]manufacturing.Operation{},
		opsErr:     map[int64]error{},
		createdOps: map[int64][]manufacturing.OperationInput{},
	}
}

func (f *fakeReconcileOrders) GetOrder(ctx context.Context, id int64) (manufacturing.ProductionOrder, error) {
	if f.getErr != nil {
		return manufacturing.ProductionOrder{}, f.getErr
	}
	return f.order, nil
}

func (f *fakeReconcileOrders) ListOperations(ctx context.Context, stageID int64) ([]manufacturing.Operation, error) {
	return f.existing[stageID], nil
}

func (f *fakeReconcileOrders) CreateOperations(ctx context.Context, stageID int64, ops []manufacturing.OperationInput) error {
	if err := f.opsErr[stageID]; err != nil {
		return err
	}
	f.createdOps[stageID] = ops
	return nil
}

func (f *fakeReconcileOrders) ListChallans(ctx context.Context, orderID int64) ([]manufacturing.Challan, error) {
	return f.challans, nil
}

func (f *fakeReconcileOrders) CreateChallan(ctx context.Context, input manufacturing.ChallanInput) (manufacturing.Challan, error) {
	if f.challanErr != nil {
		return manufacturing.Challan{}, f.challanErr
	}
	f.createdChallans = append(f.createdChallans, input)
	return manufacturing.Challan{ID: int64(len(f.createdChallans)), Number: input.Number}, nil
}

type fakeReconcileApprovals struct {
	err    error
	linked map[int64]int64
}

func (f *fakeReconcileApprovals) MarkProductionStarted(ctx context.Context, id, orderID int64) error {
	if f.err != nil {
		return f.err
	}
	if f.linked == nil {
		f.linked = map[int64]int64{}
	}
	f.linked[id] = orderID
	return nil
}

func testOrder() manufacturing.ProductionOrder {
	vendorID := int64(31)
	return manufacturing.ProductionOrder{
		ID:     41,
		Number: "PO-202402-0001",
		Status: manufacturing.OrderStatusPlanned,
		Stages: []manufacturing.Stage{
			{ID: 100, OrderID: 41, Name: "Cutting", Order: 1},
			{ID: 101, OrderID: 41, Name: "Embroidery", Order: 2, IsEmbroidery: true, Outsourced: true, VendorID: &vendorID},
			{ID: 102, OrderID: 41, Name: "Packing", Order: 3},
		},
	}
}

func newTestReconciler(orders *fakeReconcileOrders, approvalSvc *fakeReconcileApprovals) *Reconciler {
	return NewReconciler(orders, approvalSvc, slog.Default(), nil)
}

func reconcileTask(t *testing.T, orderID int64, approvalID *int64) *asynq.Task {
	t.Helper()
	task, err := NewProductionReconcileTask(orderID, approvalID)
	require.NoError(t, err)
	return task
}

func TestReconcileFillsOnlyEmptyStages(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	orders.existing[100] = []manufacturing.Operation{{ID: 1, StageID: 100, Name: "Cutting"}}
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))
	require.NoError(t, err)

	// Stage 100 already has operations and is left alone.
	require.NotContains(t, orders.createdOps, int64(100))
	// Outsourced embroidery resolves to the job-work template.
	require.Len(t, orders.createdOps[101], 4)
	require.True(t, orders.createdOps[101][0].IsOutsourced)
	require.Len(t, orders.createdOps[102], 3)
}

func TestReconcileSkipsStagesWithoutTemplate(t *testing.T) {
	order := testOrder()
	order.Stages = []manufacturing.Stage{{ID: 100, OrderID: 41, Name: "Ozone Wash", Order: 1}}
	orders := newFakeReconcileOrders(order)
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))
	require.NoError(t, err)

	require.Empty(t, orders.createdOps)
}

func TestReconcileCreatesMissingChallans(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))
	require.NoError(t, err)

	require.Len(t, orders.createdChallans, 1)
	require.Equal(t, "CH-PO-202402-0001-S2", orders.createdChallans[0].Number)
	require.Equal(t, int64(101), orders.createdChallans[0].StageID)
	require.Equal(t, int64(31), orders.createdChallans[0].VendorID)
}

func TestReconcileSkipsStagesWithChallan(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	orders.challans = []manufacturing.Challan{{ID: 1, OrderID: 41, StageID: 101, Number: "CH-PO-202402-0001-S2"}}
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))
	require.NoError(t, err)

	require.Empty(t, orders.createdChallans)
}

func TestReconcileToleratesDuplicateChallan(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	orders.challanErr = manufacturing.ErrDuplicate
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))

	require.NoError(t, err)
}

func TestReconcileLinksApproval(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	approvalSvc := &fakeReconcileApprovals{}
	r := newTestReconciler(orders, approvalSvc)
	approvalID := int64(8)

	err := r.Handle(context.Background(), reconcileTask(t, 41, &approvalID))
	require.NoError(t, err)

	require.Equal(t, int64(41), approvalSvc.linked[8])
}

func TestReconcileToleratesApprovalConflict(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	r := newTestReconciler(orders, &fakeReconcileApprovals{err: approvals.ErrInvalidState})
	approvalID := int64(8)

	err := r.Handle(context.Background(), reconcileTask(t, 41, &approvalID))

	require.NoError(t, err)
}

func TestReconcileRetriesTransientApprovalFailure(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	r := newTestReconciler(orders, &fakeReconcileApprovals{err: errors.New("timeout")})
	approvalID := int64(8)

	err := r.Handle(context.Background(), reconcileTask(t, 41, &approvalID))

	require.ErrorContains(t, err, "link approval 8")
}

func TestReconcileMissingOrderSkipsRetry(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	orders.getErr = manufacturing.ErrNotFound
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))

	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReconcileAggregatesStageFailures(t *testing.T) {
	orders := newFakeReconcileOrders(testOrder())
	orders.opsErr[101] = errors.New("stage gone")
	r := newTestReconciler(orders, &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), reconcileTask(t, 41, nil))

	require.ErrorContains(t, err, "create operations for stage 101")
	// The surviving stages are still filled before the error is reported.
	require.Len(t, orders.createdOps[100], 4)
	require.Len(t, orders.createdOps[102], 3)
}

func TestReconcileMalformedPayloadSkipsRetry(t *testing.T) {
	r := newTestReconciler(newFakeReconcileOrders(testOrder()), &fakeReconcileApprovals{})

	err := r.Handle(context.Background(), asynq.NewTask(TaskProductionReconcile, []byte("{")))

	require.ErrorIs(t, err, asynq.SkipRetry)
}
