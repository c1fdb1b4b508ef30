package postgres

import (
	"context"
	"errors"
	"fmt"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, merchant_id, currency, available, reserved,
		auto_deposit_enabled, auto_deposit_threshold, auto_deposit_amount, auto_deposit_method,
		low_balance_threshold, notify_low_balance,
		total_deposits, total_withdrawals, total_fees, total_commissions_paid,
		created_at, updated_at`

// WalletRepo implements ports.WalletRepository. Total is derived on read,
// only the two buckets are stored.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetByMerchantID fetches the merchant's wallet without locking.
func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE merchant_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by merchant id: %w", err)
	}
	return w, nil
}

// GetOrCreateForUpdate fetches the merchant's wallet with a row lock,
// creating an empty one on first use. MUST be called within a transaction.
func (r *WalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	w, err := r.getForUpdate(ctx, tx, merchantID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		return w, nil
	}

	// First operation for this merchant. ON CONFLICT covers the race with a
	// concurrent first operation; whoever loses still locks the row below.
	fresh := domain.NewWallet(merchantID, currency)
	insert := `INSERT INTO wallets (id, merchant_id, currency, available, reserved,
		auto_deposit_enabled, auto_deposit_threshold, auto_deposit_amount, auto_deposit_method,
		low_balance_threshold, notify_low_balance,
		total_deposits, total_withdrawals, total_fees, total_commissions_paid,
		created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, false, 0, 0, '', 0, false, 0, 0, 0, 0, $4, $5)
		ON CONFLICT (merchant_id) DO NOTHING`
	if _, err := tx.Exec(ctx, insert, fresh.ID, fresh.MerchantID, fresh.Currency, fresh.CreatedAt, fresh.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	w, err = r.getForUpdate(ctx, tx, merchantID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("wallet vanished after insert for merchant %s", merchantID)
	}
	return w, nil
}

// Update persists balance, stats and settings within a transaction.
func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets SET available = $1, reserved = $2,
		auto_deposit_enabled = $3, auto_deposit_threshold = $4, auto_deposit_amount = $5, auto_deposit_method = $6,
		low_balance_threshold = $7, notify_low_balance = $8,
		total_deposits = $9, total_withdrawals = $10, total_fees = $11, total_commissions_paid = $12,
		updated_at = $13
		WHERE id = $14`

	tag, err := tx.Exec(ctx, query,
		w.Balance.Available, w.Balance.Reserved,
		w.AutoDeposit.Enabled, w.AutoDeposit.Threshold, w.AutoDeposit.Amount, w.AutoDeposit.Method,
		w.Settings.LowBalanceThreshold, w.Settings.NotifyLowBalance,
		w.Stats.TotalDeposits, w.Stats.TotalWithdrawals, w.Stats.TotalFees, w.Stats.TotalCommissionsPaid,
		w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

func (r *WalletRepo) getForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE merchant_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.MerchantID, &w.Currency, &w.Balance.Available, &w.Balance.Reserved,
		&w.AutoDeposit.Enabled, &w.AutoDeposit.Threshold, &w.AutoDeposit.Amount, &w.AutoDeposit.Method,
		&w.Settings.LowBalanceThreshold, &w.Settings.NotifyLowBalance,
		&w.Stats.TotalDeposits, &w.Stats.TotalWithdrawals, &w.Stats.TotalFees, &w.Stats.TotalCommissionsPaid,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Balance.Total = w.Balance.Available + w.Balance.Reserved
	return w, nil
}
