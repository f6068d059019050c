package manufacturing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// memRepo implements RepositoryPort and TxRepository on maps. WithTx is
// not transactional; tests asserting rollback only check the returned
// error.
type memRepo struct {
	seq         int64
	counters    map[string]int64
	orders      map[int64]ProductionOrder
	stages      map[int64]Stage
	operations  map[int64][]Operation
	challans    map[int64][]Challan
	lastFilters ListFilters

	stageErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		counters:   map[string]int64{},
		orders:     map[int64]ProductionOrder{},
		stages:     map[int64]Stage{},
		operations: map[int64][]Operation{},
		challans:   map[int64][]Challan{},
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memRepo) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	period := at.Format("200601")
	r.counters[period]++
	return fmt.Sprintf("PO-%s-%04d", period, r.counters[period]), nil
}

func (r *memRepo) CreateOrder(ctx context.Context, order ProductionOrder) (int64, error) {
	r.seq++
	order.ID = r.seq
	r.orders[order.ID] = order
	return order.ID, nil
}

func (r *memRepo) InsertStage(ctx context.Context, stage Stage) (int64, error) {
	if r.stageErr != nil {
		return 0, r.stageErr
	}
	r.seq++
	stage.ID = r.seq
	r.stages[stage.ID] = stage
	return stage.ID, nil
}

func (r *memRepo) InsertOperation(ctx context.Context, op Operation) error {
	r.operations[op.StageID] = append(r.operations[op.StageID], op)
	return nil
}

func (r *memRepo) InsertChallan(ctx context.Context, challan Challan) (int64, error) {
	r.seq++
	challan.ID = r.seq
	r.challans[challan.OrderID] = append(r.challans[challan.OrderID], challan)
	return challan.ID, nil
}

func (r *memRepo) GetOrder(ctx context.Context, id int64) (ProductionOrder, error) {
	order, ok := r.orders[id]
	if !ok {
		return ProductionOrder{}, ErrNotFound
	}
	return order, nil
}

func (r *memRepo) GetStage(ctx context.Context, id int64) (Stage, error) {
	stage, ok := r.stages[id]
	if !ok {
		return Stage{}, ErrNotFound
	}
	return stage, nil
}

func (r *memRepo) ListOrders(ctx context.Context, filters ListFilters) ([]ProductionOrder, int, error) {
	r.lastFilters = filters
	var out []ProductionOrder
	for _, order := range r.orders {
		if filters.Status != "" && order.Status != filters.Status {
			continue
		}
		out = append(out, order)
	}
	return out, len(out), nil
}

func (r *memRepo) ListOperations(ctx context.Context, stageID int64) ([]Operation, error) {
	return r.operations[stageID], nil
}

func (r *memRepo) ListChallans(ctx context.Context, orderID int64) ([]Challan, error) {
	return r.challans[orderID], nil
}

type captureAudit struct {
	logs []shared.AuditLog
}

func (a *captureAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func validOrderInput() CreateOrderInput {
	return CreateOrderInput{
		ProductionType:   "in_house",
		Quantity:         500,
		Priority:         "medium",
		PlannedStartDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		PlannedEndDate:   time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
		Materials: []RequiredMaterial{
			{Description: "Cotton Single Jersey", RequiredQuantity: 260, Unit: "kg", Status: "available"},
		},
	}
}

func TestCreateOrderAppliesDefaultStages(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())

	order, err := svc.CreateOrder(context.Background(), validOrderInput())
	require.NoError(t, err)

	period := time.Now().Format("200601")
	require.Equal(t, fmt.Sprintf("PO-%s-0001", period), order.Number)
	require.Equal(t, OrderStatusPlanned, order.Status)

	require.Len(t, order.Stages, 6)
	for i, stage := range order.Stages {
		require.Equal(t, DefaultStageNames[i], stage.Name)
		require.Equal(t, i+1, stage.Order)
		require.Equal(t, order.ID, stage.OrderID)
		require.NotZero(t, stage.ID)
		require.Equal(t, StageStatusPending, stage.Status)
		require.False(t, stage.Outsourced)
	}
	require.True(t, order.Stages[2].IsEmbroidery)
	require.Equal(t, "embroidery", order.Stages[2].CustomizationType)
	require.True(t, order.Stages[3].IsPrinting)
	require.Equal(t, "printing", order.Stages[3].CustomizationType)
	require.Equal(t, "none", order.Stages[0].CustomizationType)
}

func TestCreateOrderNumbersIncrementWithinPeriod(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	first, err := svc.CreateOrder(ctx, validOrderInput())
	require.NoError(t, err)
	second, err := svc.CreateOrder(ctx, validOrderInput())
	require.NoError(t, err)

	period := time.Now().Format("200601")
	require.Equal(t, fmt.Sprintf("PO-%s-0001", period), first.Number)
	require.Equal(t, fmt.Sprintf("PO-%s-0002", period), second.Number)
}

func TestCreateOrderHonorsCustomStages(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())

	vendorID := int64(7)
	strayVendor := int64(9)
	input := validOrderInput()
	input.Stages = []StageInput{
		{Name: " Cutting ", Order: 5},
		{Name: "Embroidery", Order: 1, IsEmbroidery: true, Outsourced: true, VendorID: &vendorID},
		{Name: "Packing", Order: 2, VendorID: &strayVendor},
	}

	order, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, order.Stages, 3)
	// Order is reassigned sequentially and names are trimmed.
	require.Equal(t, "Cutting", order.Stages[0].Name)
	require.Equal(t, 1, order.Stages[0].Order)
	require.Equal(t, 2, order.Stages[1].Order)
	require.Equal(t, 3, order.Stages[2].Order)

	require.True(t, order.Stages[1].Outsourced)
	require.Equal(t, &vendorID, order.Stages[1].VendorID)
	require.Equal(t, "embroidery", order.Stages[1].CustomizationType)
	// A vendor on an in-house stage is dropped.
	require.Nil(t, order.Stages[2].VendorID)
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	input := validOrderInput()
	input.Quantity = 0
	_, err := svc.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrValidation)

	input = validOrderInput()
	input.PlannedEndDate = input.PlannedStartDate.AddDate(0, 0, -1)
	_, err = svc.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrValidation)

	input = validOrderInput()
	input.Materials = nil
	_, err = svc.CreateOrder(ctx, input)
	require.ErrorIs(t, err, ErrValidation)

	require.Empty(t, repo.orders)
}

func TestCreateOrderPropagatesStageInsertFailure(t *testing.T) {
	repo := newMemRepo()
	repo.stageErr = errors.New("disk full")
	svc := NewService(repo, nil, slog.Default())

	_, err := svc.CreateOrder(context.Background(), validOrderInput())

	require.ErrorContains(t, err, "insert stage")
}

func TestCreateOrderRecordsAudit(t *testing.T) {
	repo := newMemRepo()
	audit := &captureAudit{}
	svc := NewService(repo, audit, slog.Default())

	order, err := svc.CreateOrder(context.Background(), validOrderInput())
	require.NoError(t, err)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "ORDER_CREATE", audit.logs[0].Action)
	require.Equal(t, "manufacturing", audit.logs[0].Entity)
	require.Equal(t, fmt.Sprintf("%d", order.ID), audit.logs[0].EntityID)
}

func TestCreateOperationsRequiresExistingStage(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())

	err := svc.CreateOperations(context.Background(), 99, []OperationInput{{Name: "Cutting"}})

	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOperationsInsertsPendingRecords(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validOrderInput())
	require.NoError(t, err)
	stageID := order.Stages[0].ID

	err = svc.CreateOperations(ctx, stageID, []OperationInput{
		{Name: "Fabric Inspection", Order: 1},
		{Name: "Cutting", Order: 2, IsOutsourced: true},
	})
	require.NoError(t, err)

	ops, err := svc.ListOperations(ctx, stageID)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.Equal(t, stageID, ops[0].StageID)
	require.Equal(t, "pending", ops[0].Status)
	require.True(t, ops[1].IsOutsourced)
}

func TestCreateOperationsRejectsBlankName(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validOrderInput())
	require.NoError(t, err)

	err = svc.CreateOperations(ctx, order.Stages[0].ID, []OperationInput{{Name: "  "}})

	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateOperationsNoopOnEmptyList(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())

	// No stage lookup happens for an empty list.
	require.NoError(t, svc.CreateOperations(context.Background(), 99, nil))
}

func TestCreateChallanValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	_, err := svc.CreateChallan(ctx, ChallanInput{StageID: 1, VendorID: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateChallan(ctx, ChallanInput{Number: "CH-X-S1", VendorID: 1})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateChallan(ctx, ChallanInput{Number: "CH-X-S1", StageID: 1})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateChallanCreatesDraft(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, validOrderInput())
	require.NoError(t, err)

	challan, err := svc.CreateChallan(ctx, ChallanInput{
		Number:   "CH-" + order.Number + "-S3",
		OrderID:  order.ID,
		StageID:  order.Stages[2].ID,
		VendorID: 7,
		Remarks:  "Job work for stage Embroidery",
	})
	require.NoError(t, err)

	require.NotZero(t, challan.ID)
	require.Equal(t, ChallanStatusDraft, challan.Status)

	listed, err := svc.ListChallans(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, challan.Number, listed[0].Number)
}

func TestListOrdersDefaultsLimit(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, slog.Default())

	_, _, err := svc.ListOrders(context.Background(), ListFilters{})
	require.NoError(t, err)

	require.Equal(t, 20, repo.lastFilters.Limit)
}
