package postgres

import (
	"context"
	"errors"
	"fmt"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const commissionColumns = `id, merchant_id, affiliate_id, order_id, amount, status, reserved,
		created_at, updated_at, approved_at, paid_at`

// CommissionRepo implements ports.CommissionRepository.
type CommissionRepo struct {
	pool Pool
}

// NewCommissionRepo creates a new CommissionRepo.
func NewCommissionRepo(pool Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// Create inserts a new commission.
func (r *CommissionRepo) Create(ctx context.Context, c *domain.Commission) error {
	query := `INSERT INTO commissions (id, merchant_id, affiliate_id, order_id, amount, status, reserved,
		created_at, updated_at, approved_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.MerchantID, c.AffiliateID, c.OrderID, c.Amount, c.Status, c.Reserved,
		c.CreatedAt, c.UpdatedAt, c.ApprovedAt, c.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

// GetByID fetches a commission by UUID.
func (r *CommissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE id = $1`

	c, err := scanCommission(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get commission by id: %w", err)
	}
	return c, nil
}

// Update persists status transitions and timestamps.
func (r *CommissionRepo) Update(ctx context.Context, c *domain.Commission) error {
	query := `UPDATE commissions SET status = $1, reserved = $2, updated_at = $3, approved_at = $4, paid_at = $5
		WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query, c.Status, c.Reserved, c.UpdatedAt, c.ApprovedAt, c.PaidAt, c.ID)
	if err != nil {
		return fmt.Errorf("update commission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commission not found: %s", c.ID)
	}
	return nil
}

// ListByMerchant fetches a merchant's commissions, optionally by status,
// newest first.
func (r *CommissionRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, status *domain.CommissionStatus) ([]domain.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE merchant_id = $1`
	args := []any{merchantID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	var commissions []domain.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commission row: %w", err)
		}
		commissions = append(commissions, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission rows: %w", err)
	}
	return commissions, nil
}

func scanCommission(row pgx.Row) (*domain.Commission, error) {
	c := &domain.Commission{}
	err := row.Scan(
		&c.ID, &c.MerchantID, &c.AffiliateID, &c.OrderID, &c.Amount, &c.Status, &c.Reserved,
		&c.CreatedAt, &c.UpdatedAt, &c.ApprovedAt, &c.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
