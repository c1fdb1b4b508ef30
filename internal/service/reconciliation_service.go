package service

import (
	"context"
	"fmt"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/pkg/apperror"
	"affiliate-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconciliationServiceImpl implements ports.ReconciliationService. Matching
// is greedy first-fit: ledger entries in creation order each claim the first
// unclaimed external record within tolerance.
type ReconciliationServiceImpl struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	metrics    *metrics.LedgerMetrics
	log        zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		metrics:    m,
		log:        log,
	}
}

// Reconcile matches the merchant's ledger entries in [from, to] against the
// supplied external records. A pair within tolerance but with a nonzero
// amount delta is matched and flagged as a discrepancy; entries and records
// beyond tolerance stay unmatched on their respective sides.
func (s *ReconciliationServiceImpl) Reconcile(ctx context.Context, merchantID uuid.UUID, from, to time.Time, records []domain.ExternalRecord, tol domain.Tolerance) (*domain.ReconciliationReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveReconciliation(time.Since(start)) }()

	if !to.After(from) {
		return nil, apperror.Validation("period end must be after start")
	}
	if tol.Amount < 0 || tol.DateDays < 0 {
		return nil, apperror.Validation("tolerance must not be negative")
	}

	entries, err := s.txRepo.ListByRange(ctx, merchantID, from, to)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}

	report := &domain.ReconciliationReport{
		MerchantID:        merchantID,
		From:              from,
		To:                to,
		Tolerance:         tol,
		Matched:           []domain.MatchedPair{},
		UnmatchedLedger:   []domain.Transaction{},
		UnmatchedExternal: []domain.ExternalRecord{},
		Discrepancies:     []domain.Discrepancy{},
		GeneratedAt:       time.Now().UTC(),
	}

	used := make([]bool, len(records))
	dateTol := time.Duration(tol.DateDays) * 24 * time.Hour

	for _, entry := range entries {
		report.Summary.LedgerTotal += entry.Amount

		matched := false
		for i, rec := range records {
			if used[i] || !withinTolerance(entry, rec, tol.Amount, dateTol) {
				continue
			}
			used[i] = true
			matched = true
			delta := rec.Amount - entry.Amount
			report.Matched = append(report.Matched, domain.MatchedPair{
				Transaction: entry,
				Record:      rec,
				Delta:       delta,
			})
			if delta != 0 {
				report.Discrepancies = append(report.Discrepancies, domain.Discrepancy{
					TransactionID: entry.ID,
					RecordID:      rec.ID,
					Delta:         delta,
				})
				report.Summary.DiscrepancyTotal += delta
			}
			break
		}
		if !matched {
			report.UnmatchedLedger = append(report.UnmatchedLedger, entry)
		}
	}

	for i, rec := range records {
		report.Summary.ExternalTotal += rec.Amount
		if !used[i] {
			report.UnmatchedExternal = append(report.UnmatchedExternal, rec)
		}
	}

	report.Summary.MatchedCount = len(report.Matched)
	report.Summary.UnmatchedLedgerCount = len(report.UnmatchedLedger)
	report.Summary.UnmatchedExternalCount = len(report.UnmatchedExternal)
	report.Summary.DiscrepancyCount = len(report.Discrepancies)

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Int("matched", report.Summary.MatchedCount).
		Int("unmatched_ledger", report.Summary.UnmatchedLedgerCount).
		Int("unmatched_external", report.Summary.UnmatchedExternalCount).
		Int("discrepancies", report.Summary.DiscrepancyCount).
		Msg("reconciliation run finished")

	return report, nil
}

func withinTolerance(entry domain.Transaction, rec domain.ExternalRecord, amountTol int64, dateTol time.Duration) bool {
	diff := rec.Amount - entry.Amount
	if diff < 0 {
		diff = -diff
	}
	if diff > amountTol {
		return false
	}
	gap := entry.CreatedAt.Sub(rec.Date)
	if gap < 0 {
		gap = -gap
	}
	return gap <= dateTol
}

// Statement builds the merchant's period statement from ledger snapshots.
// Opening and closing come from the boundary entries' balance snapshots, so
// the opening + deposits - withdrawals == closing invariant holds by
// construction; Balanced() re-checks it anyway.
func (s *ReconciliationServiceImpl) Statement(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*domain.PeriodReport, error) {
	if !to.After(from) {
		return nil, apperror.Validation("period end must be after start")
	}

	entries, err := s.txRepo.ListByRange(ctx, merchantID, from, to)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}

	report := &domain.PeriodReport{
		MerchantID:  merchantID,
		From:        from,
		To:          to,
		ByType:      make(map[domain.TransactionType]int64),
		GeneratedAt: time.Now().UTC(),
	}

	if len(entries) == 0 {
		wallet, err := s.walletRepo.GetByMerchantID(ctx, merchantID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
		report.OpeningBalance = wallet.Balance.Total
		report.ClosingBalance = wallet.Balance.Total
		return report, nil
	}

	report.OpeningBalance = entries[0].BalanceBefore.Total
	report.ClosingBalance = entries[len(entries)-1].BalanceAfter.Total

	for _, entry := range entries {
		report.ByType[entry.Type] += entry.Amount
		switch {
		case entry.Type.CreditsTotal():
			report.TotalDeposits += entry.Amount
		case entry.Type.DebitsTotal():
			report.TotalWithdrawals += entry.Amount
		}
		if entry.Type == domain.TransactionTypeFee {
			report.TotalFees += entry.Amount
		}
	}

	if !report.Balanced() {
		// Snapshots disagree with the flow sums: the ledger itself drifted.
		s.log.Error().
			Str("merchant_id", merchantID.String()).
			Int64("opening", report.OpeningBalance).
			Int64("closing", report.ClosingBalance).
			Int64("deposits", report.TotalDeposits).
			Int64("withdrawals", report.TotalWithdrawals).
			Msg("period statement does not balance")
	}

	return report, nil
}

// FeeSummary aggregates fee charges for the merchant over a period.
func (s *ReconciliationServiceImpl) FeeSummary(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*ports.FeeSummary, error) {
	summary, err := s.txRepo.FeeSummary(ctx, merchantID, from, to)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("fee summary: %w", err))
	}
	return summary, nil
}

// PendingFees surfaces fee charges that failed after their primary effect
// committed, so operators can retry or waive them.
func (s *ReconciliationServiceImpl) PendingFees(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error) {
	fees, err := s.txRepo.ListPendingFees(ctx, merchantID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list pending fees: %w", err))
	}
	return fees, nil
}
