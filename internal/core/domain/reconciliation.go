package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExternalRecord is one entry of an externally supplied payment record list
// (bank statement, gateway settlement file) to reconcile the ledger against.
type ExternalRecord struct {
	ID     string    `json:"id"`
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
}

// Tolerance bounds how far apart a ledger entry and an external record may be
// and still pair up. Amount is in minor units.
type Tolerance struct {
	Amount   int64 `json:"amount"`
	DateDays int   `json:"date_days"`
}

// DefaultTolerance matches one minor unit (0.01 in currency units) and one day.
func DefaultTolerance() Tolerance {
	return Tolerance{Amount: 1, DateDays: 1}
}

// MatchedPair is a ledger entry paired with an external record.
type MatchedPair struct {
	Transaction Transaction    `json:"transaction"`
	Record      ExternalRecord `json:"record"`
	Delta       int64          `json:"delta"` // record amount minus ledger amount
}

// Discrepancy flags a matched pair whose amounts differ within tolerance.
type Discrepancy struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	RecordID      string    `json:"record_id"`
	Delta         int64     `json:"delta"` // signed, record minus ledger
}

// ReconciliationSummary aggregates counts and sums over a run.
type ReconciliationSummary struct {
	MatchedCount           int   `json:"matched_count"`
	UnmatchedLedgerCount   int   `json:"unmatched_ledger_count"`
	UnmatchedExternalCount int   `json:"unmatched_external_count"`
	DiscrepancyCount       int   `json:"discrepancy_count"`
	LedgerTotal            int64 `json:"ledger_total"`
	ExternalTotal          int64 `json:"external_total"`
	DiscrepancyTotal       int64 `json:"discrepancy_total"` // sum of signed deltas
}

// ReconciliationReport is the outcome of matching ledger transactions against
// an external record list.
type ReconciliationReport struct {
	MerchantID        uuid.UUID             `json:"merchant_id"`
	From              time.Time             `json:"from"`
	To                time.Time             `json:"to"`
	Tolerance         Tolerance             `json:"tolerance"`
	Matched           []MatchedPair         `json:"matched"`
	UnmatchedLedger   []Transaction         `json:"unmatched_ledger"`
	UnmatchedExternal []ExternalRecord      `json:"unmatched_external"`
	Discrepancies     []Discrepancy         `json:"discrepancies"`
	Summary           ReconciliationSummary `json:"summary"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// PeriodReport is a merchant statement over a date range. It must satisfy
// OpeningBalance + TotalDeposits - TotalWithdrawals == ClosingBalance, with
// fees counted inside withdrawals.
type PeriodReport struct {
	MerchantID       uuid.UUID                 `json:"merchant_id"`
	From             time.Time                 `json:"from"`
	To               time.Time                 `json:"to"`
	OpeningBalance   int64                     `json:"opening_balance"`
	ClosingBalance   int64                     `json:"closing_balance"`
	TotalDeposits    int64                     `json:"total_deposits"`
	TotalWithdrawals int64                     `json:"total_withdrawals"`
	TotalFees        int64                     `json:"total_fees"`
	ByType           map[TransactionType]int64 `json:"by_type"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// Balanced reports whether the statement invariant holds.
func (r *PeriodReport) Balanced() bool {
	return r.OpeningBalance+r.TotalDeposits-r.TotalWithdrawals == r.ClosingBalance
}
