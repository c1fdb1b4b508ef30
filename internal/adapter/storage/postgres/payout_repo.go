package postgres

import (
	"context"
	"errors"
	"fmt"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const payoutColumns = `id, merchant_id, affiliate_id, amount, currency, status, destination,
		external_transfer_id, failure_reason, created_at, updated_at, completed_at`

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

// Create inserts a new payout.
func (r *PayoutRepo) Create(ctx context.Context, p *domain.Payout) error {
	query := `INSERT INTO payouts (id, merchant_id, affiliate_id, amount, currency, status, destination,
		external_transfer_id, failure_reason, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.MerchantID, p.AffiliateID, p.Amount, p.Currency, p.Status, p.Destination,
		p.ExternalTransferID, p.FailureReason, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// GetByID fetches a payout by UUID.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

	p := &domain.Payout{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.MerchantID, &p.AffiliateID, &p.Amount, &p.Currency, &p.Status, &p.Destination,
		&p.ExternalTransferID, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// Update persists status transitions and transfer metadata.
func (r *PayoutRepo) Update(ctx context.Context, p *domain.Payout) error {
	query := `UPDATE payouts SET status = $1, external_transfer_id = $2, failure_reason = $3,
		updated_at = $4, completed_at = $5
		WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query,
		p.Status, p.ExternalTransferID, p.FailureReason, p.UpdatedAt, p.CompletedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	return nil
}
