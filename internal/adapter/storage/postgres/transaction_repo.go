package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, wallet_id, merchant_id, type, amount,
		available_before, reserved_before, available_after, reserved_after,
		status, reference_kind, reference_id, reference_external_id, description,
		fee_type, fee_status, fee_method, fee_rate, fee_base, fee_result, created_at`

// TransactionRepo implements ports.TransactionRepository. The table is
// append-only except for the guarded fee status transition.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, merchant_id, type, amount,
		available_before, reserved_before, available_after, reserved_after,
		status, reference_kind, reference_id, reference_external_id, description,
		fee_type, fee_status, fee_method, fee_rate, fee_base, fee_result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	var feeType, feeStatus, feeMethod, feeRate *string
	var feeBase, feeResult *int64
	if t.Fee != nil {
		ft, fs, fm := string(t.Fee.Type), string(t.Fee.Status), string(t.Fee.Calculation.Method)
		feeType, feeStatus, feeMethod = &ft, &fs, &fm
		if t.Fee.Calculation.Rate != "" {
			rate := t.Fee.Calculation.Rate
			feeRate = &rate
		}
		feeBase, feeResult = &t.Fee.Calculation.Base, &t.Fee.Calculation.Result
	}

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.MerchantID, t.Type, t.Amount,
		t.BalanceBefore.Available, t.BalanceBefore.Reserved,
		t.BalanceAfter.Available, t.BalanceAfter.Reserved,
		t.Status, t.Reference.Kind, t.Reference.ID, t.Reference.ExternalID, t.Description,
		feeType, feeStatus, feeMethod, feeRate, feeBase, feeResult, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a ledger entry by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// List fetches ledger entries with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	page := params.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+transactionColumns+`
		FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListByRange returns completed entries for a merchant in [from, to], ordered
// by creation time ascending.
func (r *TransactionRepo) ListByRange(ctx context.Context, merchantID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE merchant_id = $1 AND status = $2 AND created_at >= $3 AND created_at <= $4
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, merchantID, domain.TransactionStatusCompleted, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions by range: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// UpdateFeeStatus transitions a fee's status, guarded on the current status.
// Returns false if the guard did not match, which is how a racing waive loses.
func (r *TransactionRepo) UpdateFeeStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.FeeStatus) (bool, error) {
	query := `UPDATE transactions SET fee_status = $1
		WHERE id = $2 AND type = $3 AND fee_status = $4`

	tag, err := tx.Exec(ctx, query, to, id, domain.TransactionTypeFee, from)
	if err != nil {
		return false, fmt.Errorf("update fee status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListPendingFees returns the drift markers: failed fee entries whose fee
// status is still pending.
func (r *TransactionRepo) ListPendingFees(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE merchant_id = $1 AND type = $2 AND status = $3 AND fee_status = $4
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, merchantID,
		domain.TransactionTypeFee, domain.TransactionStatusFailed, domain.FeeStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending fees: %w", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// FeeSummary aggregates completed fee charges for a merchant over a period.
func (r *TransactionRepo) FeeSummary(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*ports.FeeSummary, error) {
	totalsQuery := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE fee_status = 'charged'), 0) AS charged,
		COALESCE(SUM(amount) FILTER (WHERE fee_status = 'waived'), 0) AS waived
		FROM transactions
		WHERE merchant_id = $1 AND type = $2 AND status = $3 AND created_at >= $4 AND created_at <= $5`

	summary := &ports.FeeSummary{ByType: make(map[domain.FeeType]int64)}
	err := r.pool.QueryRow(ctx, totalsQuery, merchantID,
		domain.TransactionTypeFee, domain.TransactionStatusCompleted, from, to).
		Scan(&summary.TotalCharged, &summary.TotalWaived)
	if err != nil {
		return nil, fmt.Errorf("fee totals: %w", err)
	}

	byTypeQuery := `SELECT fee_type, COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE merchant_id = $1 AND type = $2 AND status = $3 AND fee_status = 'charged'
			AND created_at >= $4 AND created_at <= $5
		GROUP BY fee_type`

	rows, err := r.pool.Query(ctx, byTypeQuery, merchantID,
		domain.TransactionTypeFee, domain.TransactionStatusCompleted, from, to)
	if err != nil {
		return nil, fmt.Errorf("fee totals by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feeType domain.FeeType
		var total int64
		if err := rows.Scan(&feeType, &total); err != nil {
			return nil, fmt.Errorf("scan fee type row: %w", err)
		}
		summary.ByType[feeType] = total
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fee type rows: %w", err)
	}
	return summary, nil
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var feeType, feeStatus, feeMethod, feeRate *string
	var feeBase, feeResult *int64

	err := row.Scan(
		&t.ID, &t.WalletID, &t.MerchantID, &t.Type, &t.Amount,
		&t.BalanceBefore.Available, &t.BalanceBefore.Reserved,
		&t.BalanceAfter.Available, &t.BalanceAfter.Reserved,
		&t.Status, &t.Reference.Kind, &t.Reference.ID, &t.Reference.ExternalID, &t.Description,
		&feeType, &feeStatus, &feeMethod, &feeRate, &feeBase, &feeResult, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.BalanceBefore.Total = t.BalanceBefore.Available + t.BalanceBefore.Reserved
	t.BalanceAfter.Total = t.BalanceAfter.Available + t.BalanceAfter.Reserved

	if feeType != nil && feeStatus != nil {
		fee := &domain.FeeDetails{
			Type:   domain.FeeType(*feeType),
			Status: domain.FeeStatus(*feeStatus),
		}
		if feeMethod != nil {
			fee.Calculation.Method = domain.FeeMethod(*feeMethod)
		}
		if feeRate != nil {
			fee.Calculation.Rate = *feeRate
		}
		if feeBase != nil {
			fee.Calculation.Base = *feeBase
		}
		if feeResult != nil {
			fee.Calculation.Result = *feeResult
		}
		t.Fee = fee
	}
	return t, nil
}
