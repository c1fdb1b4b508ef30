package postgres

import (
	"context"
	"testing"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(merchantID uuid.UUID) *domain.Transaction {
	return &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      uuid.New(),
		MerchantID:    merchantID,
		Type:          domain.TransactionTypeDeposit,
		Amount:        100_00,
		BalanceBefore: domain.Balance{Available: 50_00, Total: 50_00},
		BalanceAfter:  domain.Balance{Available: 150_00, Total: 150_00},
		Status:        domain.TransactionStatusCompleted,
		Reference:     domain.OrderRef("ORD-1"),
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionTestColumns() []string {
	return []string{
		"id", "wallet_id", "merchant_id", "type", "amount",
		"available_before", "reserved_before", "available_after", "reserved_after",
		"status", "reference_kind", "reference_id", "reference_external_id", "description",
		"fee_type", "fee_status", "fee_method", "fee_rate", "fee_base", "fee_result", "created_at",
	}
}

func transactionRow(t *domain.Transaction) *pgxmock.Rows {
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
	return pgxmock.NewRows(transactionTestColumns()).AddRow(
		t.ID, t.WalletID, t.MerchantID, string(t.Type), t.Amount,
		t.BalanceBefore.Available, t.BalanceBefore.Reserved,
		t.BalanceAfter.Available, t.BalanceAfter.Reserved,
		string(t.Status), string(t.Reference.Kind), t.Reference.ID, t.Reference.ExternalID, t.Description,
		feeType, feeStatus, feeMethod, feeRate, feeBase, feeResult, t.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("(?s)INSERT INTO transactions").
		WithArgs(txn.ID, txn.WalletID, txn.MerchantID, txn.Type, txn.Amount,
			txn.BalanceBefore.Available, txn.BalanceBefore.Reserved,
			txn.BalanceAfter.Available, txn.BalanceAfter.Reserved,
			txn.Status, txn.Reference.Kind, txn.Reference.ID, txn.Reference.ExternalID, txn.Description,
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*int64)(nil), (*int64)(nil), txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_FeeEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())
	txn.Type = domain.TransactionTypeFee
	txn.Fee = &domain.FeeDetails{
		Type:   domain.FeeTypeNetwork,
		Status: domain.FeeStatusCharged,
		Calculation: domain.FeeCalculation{
			Method: domain.FeeMethodPercentage,
			Rate:   "2.5",
			Base:   100_00,
			Result: 2_50,
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("(?s)INSERT INTO transactions").
		WithArgs(txn.ID, txn.WalletID, txn.MerchantID, txn.Type, txn.Amount,
			txn.BalanceBefore.Available, txn.BalanceBefore.Reserved,
			txn.BalanceAfter.Available, txn.BalanceAfter.Reserved,
			txn.Status, txn.Reference.Kind, txn.Reference.ID, txn.Reference.ExternalID, txn.Description,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_WithFee(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New())
	txn.Type = domain.TransactionTypeFee
	txn.Fee = &domain.FeeDetails{
		Type:   domain.FeeTypeNetwork,
		Status: domain.FeeStatusCharged,
		Calculation: domain.FeeCalculation{
			Method: domain.FeeMethodPercentage,
			Rate:   "10",
			Base:   60_00,
			Result: 6_00,
		},
	}

	mock.ExpectQuery("(?s)SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Fee)
	assert.Equal(t, domain.FeeStatusCharged, result.Fee.Status)
	assert.Equal(t, "10", result.Fee.Calculation.Rate)
	assert.Equal(t, int64(50_00), result.BalanceBefore.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("(?s)SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateFeeStatus_Guarded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET fee_status").
		WithArgs(domain.FeeStatusWaived, id, domain.TransactionTypeFee, domain.FeeStatusCharged).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.UpdateFeeStatus(context.Background(), tx, id, domain.FeeStatusCharged, domain.FeeStatusWaived)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateFeeStatus_GuardMiss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET fee_status").
		WithArgs(domain.FeeStatusWaived, id, domain.TransactionTypeFee, domain.FeeStatusCharged).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ok, err := repo.UpdateFeeStatus(context.Background(), tx, id, domain.FeeStatusCharged, domain.FeeStatusWaived)
	require.NoError(t, err)
	assert.False(t, ok, "already-waived fee must not transition again")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByRange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	merchantID := uuid.New()
	txn := newTestTransaction(merchantID)
	from := txn.CreatedAt.Add(-time.Hour)
	to := txn.CreatedAt.Add(time.Hour)

	mock.ExpectQuery("(?s)SELECT .+ FROM transactions\\s+WHERE merchant_id .+ ORDER BY created_at ASC").
		WithArgs(merchantID, domain.TransactionStatusCompleted, from, to).
		WillReturnRows(transactionRow(txn))

	result, err := repo.ListByRange(context.Background(), merchantID, from, to)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, txn.ID, result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListPendingFees(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	merchantID := uuid.New()
	marker := newTestTransaction(merchantID)
	marker.Type = domain.TransactionTypeFee
	marker.Status = domain.TransactionStatusFailed
	marker.Fee = &domain.FeeDetails{Type: domain.FeeTypeNetwork, Status: domain.FeeStatusPending}

	mock.ExpectQuery("(?s)SELECT .+ FROM transactions\\s+WHERE merchant_id").
		WithArgs(merchantID, domain.TransactionTypeFee, domain.TransactionStatusFailed, domain.FeeStatusPending).
		WillReturnRows(transactionRow(marker))

	result, err := repo.ListPendingFees(context.Background(), merchantID)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, domain.FeeStatusPending, result[0].Fee.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_FeeSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	merchantID := uuid.New()
	from := time.Now().UTC().AddDate(0, -1, 0)
	to := time.Now().UTC()

	mock.ExpectQuery("SELECT\\s+COALESCE").
		WithArgs(merchantID, domain.TransactionTypeFee, domain.TransactionStatusCompleted, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"charged", "waived"}).AddRow(int64(18_00), int64(6_00)))
	mock.ExpectQuery("SELECT fee_type").
		WithArgs(merchantID, domain.TransactionTypeFee, domain.TransactionStatusCompleted, from, to).
		WillReturnRows(pgxmock.NewRows([]string{"fee_type", "sum"}).
			AddRow("network", int64(12_00)).
			AddRow("payout", int64(6_00)))

	summary, err := repo.FeeSummary(context.Background(), merchantID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(18_00), summary.TotalCharged)
	assert.Equal(t, int64(6_00), summary.TotalWaived)
	assert.Equal(t, int64(12_00), summary.ByType[domain.FeeTypeNetwork])
	assert.Equal(t, int64(6_00), summary.ByType[domain.FeeTypePayout])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_Paginated(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	merchantID := uuid.New()
	txn := newTestTransaction(merchantID)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(merchantID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery("(?s)SELECT .+ FROM transactions .+ ORDER BY created_at DESC").
		WithArgs(merchantID, 20, 20).
		WillReturnRows(transactionRow(txn))

	result, total, err := repo.List(context.Background(), ports.TransactionListParams{
		MerchantID: merchantID,
		Page:       2,
		PageSize:   20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	require.Len(t, result, 1)
	assert.Equal(t, txn.ID, result[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
