package domain

import (
	"time"

	"affiliate-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// Balance holds the two money buckets of a merchant wallet. Total is derived
// and must always equal Available + Reserved; it is never set independently.
type Balance struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Total     int64 `json:"total"`
}

// AutoDepositConfig controls automatic top-ups when the balance runs low.
type AutoDepositConfig struct {
	Enabled   bool   `json:"enabled"`
	Threshold int64  `json:"threshold"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
}

// WalletSettings holds merchant-configurable alerting options.
type WalletSettings struct {
	LowBalanceThreshold int64 `json:"low_balance_threshold"`
	NotifyLowBalance    bool  `json:"notify_low_balance"`
}

// WalletStats accumulates informational totals. They are not authoritative;
// the transaction ledger is.
type WalletStats struct {
	TotalDeposits        int64 `json:"total_deposits"`
	TotalWithdrawals     int64 `json:"total_withdrawals"`
	TotalFees            int64 `json:"total_fees"`
	TotalCommissionsPaid int64 `json:"total_commissions_paid"`
}

// Wallet is a merchant's internal balance record, created lazily on the first
// financial operation and mutated only through the wallet service operations.
type Wallet struct {
	ID          uuid.UUID         `json:"id"`
	MerchantID  uuid.UUID         `json:"merchant_id"`
	Currency    string            `json:"currency"`
	Balance     Balance           `json:"balance"`
	AutoDeposit AutoDepositConfig `json:"auto_deposit"`
	Settings    WalletSettings    `json:"settings"`
	Stats       WalletStats       `json:"stats"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewWallet creates an empty wallet for a merchant.
func NewWallet(merchantID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// recompute derives Total after any bucket change.
func (b *Balance) recompute() {
	b.Total = b.Available + b.Reserved
}

// Credit adds funds to the available bucket (deposit, refund).
func (b *Balance) Credit(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	b.Available += amount
	b.recompute()
	return nil
}

// Hold moves funds from available to reserved (commission reservation).
func (b *Balance) Hold(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if b.Available < amount {
		return apperror.ErrInsufficientBalance("available")
	}
	b.Available -= amount
	b.Reserved += amount
	b.recompute()
	return nil
}

// ReleaseHold moves funds from reserved back to available.
func (b *Balance) ReleaseHold(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if b.Reserved < amount {
		return apperror.ErrInsufficientBalance("reserved")
	}
	b.Reserved -= amount
	b.Available += amount
	b.recompute()
	return nil
}

// SpendReserved removes funds from the reserved bucket entirely (commission
// approval). Total decreases.
func (b *Balance) SpendReserved(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if b.Reserved < amount {
		return apperror.ErrInsufficientBalance("reserved")
	}
	b.Reserved -= amount
	b.recompute()
	return nil
}

// Debit removes funds from the available bucket (payout, fee, direct deduct).
func (b *Balance) Debit(amount int64) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if b.Available < amount {
		return apperror.ErrInsufficientBalance("available")
	}
	b.Available -= amount
	b.recompute()
	return nil
}

// IsConsistent reports whether the derived-total invariant holds.
func (b Balance) IsConsistent() bool {
	return b.Available >= 0 && b.Reserved >= 0 && b.Total == b.Available+b.Reserved
}

// IsLow reports whether the available balance has fallen under the merchant's
// alert threshold.
func (w *Wallet) IsLow() bool {
	return w.Settings.NotifyLowBalance && w.Balance.Available < w.Settings.LowBalanceThreshold
}
