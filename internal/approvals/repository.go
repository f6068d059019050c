package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists approval records. Upstream request and
// verification sub-records live in JSONB columns because their shape
// follows the source document, not our schema.
type Repository interface {
	Get(ctx context.Context, id int64) (Approval, error)
	List(ctx context.Context, status Status, limit, offset int) ([]Approval, int, error)
	LinkProductionOrder(ctx context.Context, id, orderID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const approvalColumns = "id, number, status, notes, request, verification, production_order_id, created_at, updated_at"

func (r *repository) Get(ctx context.Context, id int64) (Approval, error) {
	row := r.db.QueryRow(ctx, `SELECT `+approvalColumns+` FROM production_approvals WHERE id = $1`, id)
	a, err := scanApproval(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Approval{}, ErrNotFound
	}
	return a, err
}

func (r *repository) List(ctx context.Context, status Status, limit, offset int) ([]Approval, int, error) {
	where := ""
	args := []any{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM production_approvals`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM production_approvals%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		approvalColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := []Approval{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repository) LinkProductionOrder(ctx context.Context, id, orderID int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE production_approvals SET status = $1, production_order_id = $2, updated_at = now() WHERE id = $3`,
		StatusProductionStarted, orderID, id)
	if err != nil {
		return fmt.Errorf("approvals: link production order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanApproval(row pgx.Row) (Approval, error) {
	var (
		a          Approval
		requestRaw []byte
		verifyRaw  []byte
	)
	if err := row.Scan(&a.ID, &a.Number, &a.Status, &a.Notes, &requestRaw, &verifyRaw, &a.ProductionOrderID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Approval{}, err
	}
	if len(requestRaw) > 0 {
		if err := json.Unmarshal(requestRaw, &a.Request); err != nil {
			return Approval{}, fmt.Errorf("approvals: decode request: %w", err)
		}
	}
	if len(verifyRaw) > 0 {
		var v Verification
		if err := json.Unmarshal(verifyRaw, &v); err != nil {
			return Approval{}, fmt.Errorf("approvals: decode verification: %w", err)
		}
		a.Verification = &v
	}
	return a, nil
}
