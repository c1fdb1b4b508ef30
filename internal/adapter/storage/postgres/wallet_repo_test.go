package postgres

import (
	"context"
	"testing"
	"time"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(merchantID uuid.UUID) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Currency:   "USD",
		Balance:    domain.Balance{Available: 100_00, Reserved: 25_00, Total: 125_00},
		Stats:      domain.WalletStats{TotalDeposits: 300_00, TotalFees: 12_00},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func walletTestColumns() []string {
	return []string{
		"id", "merchant_id", "currency", "available", "reserved",
		"auto_deposit_enabled", "auto_deposit_threshold", "auto_deposit_amount", "auto_deposit_method",
		"low_balance_threshold", "notify_low_balance",
		"total_deposits", "total_withdrawals", "total_fees", "total_commissions_paid",
		"created_at", "updated_at",
	}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletTestColumns()).AddRow(
		w.ID, w.MerchantID, w.Currency, w.Balance.Available, w.Balance.Reserved,
		w.AutoDeposit.Enabled, w.AutoDeposit.Threshold, w.AutoDeposit.Amount, w.AutoDeposit.Method,
		w.Settings.LowBalanceThreshold, w.Settings.NotifyLowBalance,
		w.Stats.TotalDeposits, w.Stats.TotalWithdrawals, w.Stats.TotalFees, w.Stats.TotalCommissionsPaid,
		w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_GetByMerchantID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectQuery("(?s)SELECT .+ FROM wallets WHERE merchant_id").
		WithArgs(w.MerchantID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByMerchantID(context.Background(), w.MerchantID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, int64(125_00), result.Balance.Total, "total is derived from the stored buckets")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByMerchantID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	merchantID := uuid.New()

	mock.ExpectQuery("(?s)SELECT .+ FROM wallets WHERE merchant_id").
		WithArgs(merchantID).
		WillReturnRows(pgxmock.NewRows(walletTestColumns()))

	result, err := repo.GetByMerchantID(context.Background(), merchantID)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetOrCreateForUpdate_Existing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .+ FROM wallets WHERE merchant_id .+ FOR UPDATE").
		WithArgs(w.MerchantID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetOrCreateForUpdate(context.Background(), tx, w.MerchantID, "USD")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetOrCreateForUpdate_CreatesOnFirstUse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	merchantID := uuid.New()
	fresh := domain.NewWallet(merchantID, "USD")

	mock.ExpectBegin()
	mock.ExpectQuery("(?s)SELECT .+ FROM wallets WHERE merchant_id .+ FOR UPDATE").
		WithArgs(merchantID).
		WillReturnRows(pgxmock.NewRows(walletTestColumns()))
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(pgxmock.AnyArg(), merchantID, "USD", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("(?s)SELECT .+ FROM wallets WHERE merchant_id .+ FOR UPDATE").
		WithArgs(merchantID).
		WillReturnRows(walletRow(fresh))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetOrCreateForUpdate(context.Background(), tx, merchantID, "USD")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, merchantID, result.MerchantID)
	assert.Equal(t, int64(0), result.Balance.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET available").
		WithArgs(w.Balance.Available, w.Balance.Reserved,
			w.AutoDeposit.Enabled, w.AutoDeposit.Threshold, w.AutoDeposit.Amount, w.AutoDeposit.Method,
			w.Settings.LowBalanceThreshold, w.Settings.NotifyLowBalance,
			w.Stats.TotalDeposits, w.Stats.TotalWithdrawals, w.Stats.TotalFees, w.Stats.TotalCommissionsPaid,
			w.UpdatedAt, w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets SET available").
		WithArgs(w.Balance.Available, w.Balance.Reserved,
			w.AutoDeposit.Enabled, w.AutoDeposit.Threshold, w.AutoDeposit.Amount, w.AutoDeposit.Method,
			w.Settings.LowBalanceThreshold, w.Settings.NotifyLowBalance,
			w.Stats.TotalDeposits, w.Stats.TotalWithdrawals, w.Stats.TotalFees, w.Stats.TotalCommissionsPaid,
			w.UpdatedAt, w.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, w)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
