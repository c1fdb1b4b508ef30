package domain

import (
	"errors"
	"testing"

	"affiliate-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, code, appErr.Code)
}

func TestBalance_CreditHoldRelease(t *testing.T) {
	b := Balance{}
	require.NoError(t, b.Credit(100))
	assert.Equal(t, Balance{Available: 100, Reserved: 0, Total: 100}, b)

	require.NoError(t, b.Hold(40))
	assert.Equal(t, Balance{Available: 60, Reserved: 40, Total: 100}, b)

	require.NoError(t, b.ReleaseHold(40))
	assert.Equal(t, Balance{Available: 100, Reserved: 0, Total: 100}, b)
}

func TestBalance_SpendReservedDecreasesTotal(t *testing.T) {
	b := Balance{Available: 60, Reserved: 40, Total: 100}
	require.NoError(t, b.SpendReserved(40))
	assert.Equal(t, Balance{Available: 60, Reserved: 0, Total: 60}, b)
}

func TestBalance_InsufficientFundsLeaveStateUntouched(t *testing.T) {
	b := Balance{Available: 60, Reserved: 10, Total: 70}

	assertCode(t, b.Hold(100), "LEDGER_001")
	assertCode(t, b.Debit(150), "LEDGER_001")
	assertCode(t, b.ReleaseHold(20), "LEDGER_001")
	assertCode(t, b.SpendReserved(20), "LEDGER_001")

	assert.Equal(t, Balance{Available: 60, Reserved: 10, Total: 70}, b)
}

func TestBalance_RejectsNonPositiveAmounts(t *testing.T) {
	b := Balance{Available: 100, Total: 100}
	for _, amount := range []int64{0, -5} {
		assertCode(t, b.Credit(amount), "LEDGER_002")
		assertCode(t, b.Hold(amount), "LEDGER_002")
		assertCode(t, b.Debit(amount), "LEDGER_002")
	}
}

func TestBalance_IsConsistent(t *testing.T) {
	assert.True(t, Balance{Available: 10, Reserved: 5, Total: 15}.IsConsistent())
	assert.False(t, Balance{Available: 10, Reserved: 5, Total: 10}.IsConsistent())
	assert.False(t, Balance{Available: -1, Reserved: 1, Total: 0}.IsConsistent())
}

func TestWallet_IsLow(t *testing.T) {
	w := NewWallet(uuid.New(), "USD")
	w.Settings = WalletSettings{LowBalanceThreshold: 50, NotifyLowBalance: true}
	w.Balance = Balance{Available: 40, Total: 40}
	assert.True(t, w.IsLow())

	w.Settings.NotifyLowBalance = false
	assert.False(t, w.IsLow())
}

func TestTransactionType_TotalClassification(t *testing.T) {
	credits := []TransactionType{TransactionTypeDeposit, TransactionTypeAutoDeposit, TransactionTypeRefund}
	debits := []TransactionType{TransactionTypeCommissionPayment, TransactionTypePayout, TransactionTypeFee, TransactionTypeAdjustment}
	neutral := []TransactionType{TransactionTypeCommissionReserve, TransactionTypeCommissionRelease}

	for _, typ := range credits {
		assert.True(t, typ.CreditsTotal(), string(typ))
		assert.False(t, typ.DebitsTotal(), string(typ))
	}
	for _, typ := range debits {
		assert.True(t, typ.DebitsTotal(), string(typ))
		assert.False(t, typ.CreditsTotal(), string(typ))
	}
	for _, typ := range neutral {
		assert.False(t, typ.CreditsTotal(), string(typ))
		assert.False(t, typ.DebitsTotal(), string(typ))
	}
}

func TestTransaction_IsWaivable(t *testing.T) {
	txn := &Transaction{Type: TransactionTypeFee, Fee: &FeeDetails{Type: FeeTypeNetwork, Status: FeeStatusCharged}}
	assert.True(t, txn.IsWaivable())

	txn.Fee.Status = FeeStatusWaived
	assert.False(t, txn.IsWaivable())

	assert.False(t, (&Transaction{Type: TransactionTypeDeposit}).IsWaivable())
}

func TestFeeTier_Contains(t *testing.T) {
	max := int64(1000)
	bounded := FeeTier{Min: 100, Max: &max}
	assert.False(t, bounded.Contains(99))
	assert.True(t, bounded.Contains(100))
	assert.True(t, bounded.Contains(1000))
	assert.False(t, bounded.Contains(1001))

	open := FeeTier{Min: 1001}
	assert.True(t, open.Contains(50000))
}

func TestCommission_StatusGuards(t *testing.T) {
	c := NewCommission(uuid.New(), uuid.New(), "order-1", 500)
	assert.Equal(t, CommissionStatusPending, c.Status)
	assert.True(t, c.CanApprove())
	assert.True(t, c.CanCancel())
	assert.False(t, c.CanMarkPaid())

	c.Status = CommissionStatusApproved
	assert.False(t, c.CanApprove())
	assert.True(t, c.CanCancel())
	assert.True(t, c.CanMarkPaid())

	c.Status = CommissionStatusPaid
	assert.False(t, c.CanCancel())
	assert.False(t, c.CanMarkPaid())
}

func TestPayout_CanProcess(t *testing.T) {
	p := NewPayout(uuid.New(), uuid.New(), 1000, "USD", "acct_1")
	assert.True(t, p.CanProcess())
	p.Status = PayoutStatusFailed
	assert.False(t, p.CanProcess())
}

func TestPeriodReport_Balanced(t *testing.T) {
	r := &PeriodReport{OpeningBalance: 100, TotalDeposits: 50, TotalWithdrawals: 30, ClosingBalance: 120}
	assert.True(t, r.Balanced())
	r.ClosingBalance = 121
	assert.False(t, r.Balanced())
}
