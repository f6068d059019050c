package manufacturing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stitchline-erp/stitchline-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)
	CreateOrder(ctx context.Context, order ProductionOrder) (int64, error)
	InsertStage(ctx context.Context, stage Stage) (int64, error)
	InsertOperation(ctx context.Context, op Operation) error
	InsertChallan(ctx context.Context, challan Challan) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// NextOrderNumber issues PO-YYYYMM-NNNN from a per-month counter row.
func (t *txRepo) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	period := at.Format("200601")
	var seq int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_number_counters (period, seq) VALUES ($1, 1)
		ON CONFLICT (period) DO UPDATE SET seq = order_number_counters.seq + 1
		RETURNING seq`, period).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PO-%s-%04d", period, seq), nil
}

func (t *txRepo) CreateOrder(ctx context.Context, order ProductionOrder) (int64, error) {
	materialsJSON, err := json.Marshal(order.Materials)
	if err != nil {
		return 0, fmt.Errorf("encode materials: %w", err)
	}
	qualityJSON, err := json.Marshal(order.Quality)
	if err != nil {
		return 0, fmt.Errorf("encode quality parameters: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO production_orders (
			number, product_id, production_type, quantity, priority,
			sales_order_id, production_approval_id, special_instructions,
			planned_start_date, planned_end_date, estimated_hours, shift,
			materials_required, quality_parameters,
			supervisor_id, assigned_user_id, qa_lead_id, team_notes, status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,now(),now())
		RETURNING id`,
		order.Number, order.ProductID, order.ProductionType, order.Quantity, order.Priority,
		order.SalesOrderID, order.ApprovalID, order.SpecialInstructions,
		order.PlannedStartDate, order.PlannedEndDate, order.EstimatedHours, order.Shift,
		materialsJSON, qualityJSON,
		order.SupervisorID, order.AssignedUserID, order.QALeadID, order.TeamNotes, order.Status,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (t *txRepo) InsertStage(ctx context.Context, stage Stage) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO production_stages (
			order_id, stage_name, stage_order, planned_duration_hours,
			is_printing, is_embroidery, customization_type, outsourced, vendor_id, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		stage.OrderID, stage.Name, stage.Order, stage.PlannedDurationHours,
		stage.IsPrinting, stage.IsEmbroidery, stage.CustomizationType, stage.Outsourced, stage.VendorID, stage.Status,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (t *txRepo) InsertOperation(ctx context.Context, op Operation) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stage_operations (stage_id, name, operation_order, description, is_outsourced, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		op.StageID, op.Name, op.Order, op.Description, op.IsOutsourced, op.Status)
	return mapPgError(err)
}

func (t *txRepo) InsertChallan(ctx context.Context, challan Challan) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO dispatch_challans (number, order_id, stage_id, vendor_id, status, remarks, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
		RETURNING id`,
		challan.Number, challan.OrderID, challan.StageID, challan.VendorID, challan.Status, challan.Remarks,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

const orderColumns = `id, number, product_id, production_type, quantity, priority,
	sales_order_id, production_approval_id, special_instructions,
	planned_start_date, planned_end_date, estimated_hours, shift,
	materials_required, quality_parameters,
	supervisor_id, assigned_user_id, qa_lead_id, team_notes, status, created_at, updated_at`

// GetOrder returns an order with its stages.
func (r *Repository) GetOrder(ctx context.Context, id int64) (ProductionOrder, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductionOrder{}, ErrNotFound
		}
		return ProductionOrder{}, err
	}
	stages, err := r.listStages(ctx, id)
	if err != nil {
		return ProductionOrder{}, err
	}
	order.Stages = stages
	return order, nil
}

// GetStage returns one stage.
func (r *Repository) GetStage(ctx context.Context, id int64) (Stage, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, order_id, stage_name, stage_order, planned_duration_hours,
			is_printing, is_embroidery, customization_type, outsourced, vendor_id, status
		FROM production_stages WHERE id = $1`, id)
	var s Stage
	err := row.Scan(&s.ID, &s.OrderID, &s.Name, &s.Order, &s.PlannedDurationHours,
		&s.IsPrinting, &s.IsEmbroidery, &s.CustomizationType, &s.Outsourced, &s.VendorID, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Stage{}, ErrNotFound
	}
	return s, err
}

// ListOrders returns a filtered page of orders without stage expansion.
func (r *Repository) ListOrders(ctx context.Context, filters ListFilters) ([]ProductionOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filters.Priority != "" {
		args = append(args, filters.Priority)
		where += ` AND priority = $` + strconv.Itoa(len(args))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND number ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM production_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset)
	query := `SELECT ` + orderColumns + ` FROM production_orders` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := []ProductionOrder{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	return orders, total, rows.Err()
}

// ListOperations returns a stage's operations ordered by position.
func (r *Repository) ListOperations(ctx context.Context, stageID int64) ([]Operation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, stage_id, name, operation_order, description, is_outsourced, status
		FROM stage_operations WHERE stage_id = $1 ORDER BY operation_order`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		var op Operation
		if err := rows.Scan(&op.ID, &op.StageID, &op.Name, &op.Order, &op.Description, &op.IsOutsourced, &op.Status); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// ListChallans returns an order's challans.
func (r *Repository) ListChallans(ctx context.Context, orderID int64) ([]Challan, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number, order_id, stage_id, vendor_id, status, remarks, created_at
		FROM dispatch_challans WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	challans := []Challan{}
	for rows.Next() {
		var c Challan
		if err := rows.Scan(&c.ID, &c.Number, &c.OrderID, &c.StageID, &c.VendorID, &c.Status, &c.Remarks, &c.CreatedAt); err != nil {
			return nil, err
		}
		challans = append(challans, c)
	}
	return challans, rows.Err()
}

func (r *Repository) listStages(ctx context.Context, orderID int64) ([]Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, stage_name, stage_order, planned_duration_hours,
			is_printing, is_embroidery, customization_type, outsourced, vendor_id, status
		FROM production_stages WHERE order_id = $1 ORDER BY stage_order`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []Stage{}
	for rows.Next() {
		var s Stage
		if err := rows.Scan(&s.ID, &s.OrderID, &s.Name, &s.Order, &s.PlannedDurationHours,
			&s.IsPrinting, &s.IsEmbroidery, &s.CustomizationType, &s.Outsourced, &s.VendorID, &s.Status); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

func scanOrder(row pgx.Row) (ProductionOrder, error) {
	var (
		o             ProductionOrder
		materialsJSON []byte
		qualityJSON   []byte
	)
	err := row.Scan(&o.ID, &o.Number, &o.ProductID, &o.ProductionType, &o.Quantity, &o.Priority,
		&o.SalesOrderID, &o.ApprovalID, &o.SpecialInstructions,
		&o.PlannedStartDate, &o.PlannedEndDate, &o.EstimatedHours, &o.Shift,
		&materialsJSON, &qualityJSON,
		&o.SupervisorID, &o.AssignedUserID, &o.QALeadID, &o.TeamNotes, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return ProductionOrder{}, err
	}
	if len(materialsJSON) > 0 {
		if err := json.Unmarshal(materialsJSON, &o.Materials); err != nil {
			return ProductionOrder{}, fmt.Errorf("decode materials: %w", err)
		}
	}
	if len(qualityJSON) > 0 {
		if err := json.Unmarshal(qualityJSON, &o.Quality); err != nil {
			return ProductionOrder{}, fmt.Errorf("decode quality parameters: %w", err)
		}
	}
	return o, nil
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
