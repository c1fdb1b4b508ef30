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

const (
	balanceCacheTTL    = 30 * time.Second
	lowBalanceAlertTTL = time.Hour
)

// WalletServiceImpl implements ports.WalletService. Every operation runs as a
// single database transaction holding the wallet row lock, so concurrent
// operations on the same merchant serialize while different merchants proceed
// in parallel. Webhook publication happens strictly after commit and never
// rolls a mutation back.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	cache      ports.BalanceCache // nil = caching disabled
	alerts     ports.AlertDeduper // nil = alert dedupe disabled
	notifier   ports.WebhookNotifier
	metrics    *metrics.LedgerMetrics
	currency   string
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	cache ports.BalanceCache,
	alerts ports.AlertDeduper,
	notifier ports.WebhookNotifier,
	m *metrics.LedgerMetrics,
	currency string,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		cache:      cache,
		alerts:     alerts,
		notifier:   notifier,
		metrics:    m,
		currency:   currency,
		log:        log,
	}
}

// mutation describes one balance-affecting operation for apply.
type mutation struct {
	op      string
	txnType domain.TransactionType
	amount  int64
	ref     domain.Reference
	fee     *domain.FeeDetails
	event   string // empty = no webhook
	desc    string
	mutate  func(*domain.Balance) error
	stats   func(*domain.WalletStats, int64)
}

// Deposit credits the available balance.
func (s *WalletServiceImpl) Deposit(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error) {
	return s.apply(ctx, merchantID, mutation{
		op:      "deposit",
		txnType: domain.TransactionTypeDeposit,
		amount:  amount,
		ref:     ref,
		event:   domain.EventDepositCompleted,
		mutate:  func(b *domain.Balance) error { return b.Credit(amount) },
		stats:   func(st *domain.WalletStats, a int64) { st.TotalDeposits += a },
	})
}

// Reserve earmarks available funds against a pending commission.
func (s *WalletServiceImpl) Reserve(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error) {
	return s.apply(ctx, merchantID, mutation{
		op:      "reserve",
		txnType: domain.TransactionTypeCommissionReserve,
		amount:  amount,
		ref:     ref,
		event:   domain.EventCommissionReserved,
		mutate:  func(b *domain.Balance) error { return b.Hold(amount) },
	})
}

// Release returns reserved funds to the available bucket.
func (s *WalletServiceImpl) Release(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error) {
	return s.apply(ctx, merchantID, mutation{
		op:      "release",
		txnType: domain.TransactionTypeCommissionRelease,
		amount:  amount,
		ref:     ref,
		event:   domain.EventCommissionReleased,
		mutate:  func(b *domain.Balance) error { return b.ReleaseHold(amount) },
	})
}

// ApproveCommission spends funds out of the reserved pool; total decreases.
func (s *WalletServiceImpl) ApproveCommission(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error) {
	return s.apply(ctx, merchantID, mutation{
		op:      "approve_commission",
		txnType: domain.TransactionTypeCommissionPayment,
		amount:  amount,
		ref:     ref,
		event:   domain.EventCommissionPaid,
		mutate:  func(b *domain.Balance) error { return b.SpendReserved(amount) },
		stats:   func(st *domain.WalletStats, a int64) { st.TotalCommissionsPaid += a },
	})
}

// Deduct subtracts directly from the chosen bucket. The ledger entry type and
// webhook event follow the reference kind.
func (s *WalletServiceImpl) Deduct(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference, fromReserved bool) (*domain.Transaction, error) {
	m := mutation{
		op:     "deduct",
		amount: amount,
		ref:    ref,
	}
	if fromReserved {
		m.mutate = func(b *domain.Balance) error { return b.SpendReserved(amount) }
	} else {
		m.mutate = func(b *domain.Balance) error { return b.Debit(amount) }
	}
	switch ref.Kind {
	case domain.ReferenceKindPayout:
		m.txnType = domain.TransactionTypePayout
		m.event = domain.EventPayoutProcessed
		m.stats = func(st *domain.WalletStats, a int64) { st.TotalWithdrawals += a }
	case domain.ReferenceKindCommission:
		m.txnType = domain.TransactionTypeCommissionPayment
		m.event = domain.EventCommissionPaid
		m.stats = func(st *domain.WalletStats, a int64) { st.TotalCommissionsPaid += a }
	default:
		m.txnType = domain.TransactionTypeAdjustment
	}
	return s.apply(ctx, merchantID, m)
}

// Refund credits the available balance, compensating a prior effect.
func (s *WalletServiceImpl) Refund(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error) {
	return s.apply(ctx, merchantID, mutation{
		op:      "refund",
		txnType: domain.TransactionTypeRefund,
		amount:  amount,
		ref:     ref,
		event:   domain.EventRefundIssued,
		mutate:  func(b *domain.Balance) error { return b.Credit(amount) },
	})
}

// ChargeFee debits a platform fee from the available balance. The derivation
// that produced the amount is stored with the entry for audit.
func (s *WalletServiceImpl) ChargeFee(ctx context.Context, merchantID uuid.UUID, feeType domain.FeeType, calc domain.FeeCalculation, ref domain.Reference) (*domain.Transaction, error) {
	amount := calc.Result
	return s.apply(ctx, merchantID, mutation{
		op:      "charge_fee",
		txnType: domain.TransactionTypeFee,
		amount:  amount,
		ref:     ref,
		event:   domain.EventFeeCharged,
		desc:    fmt.Sprintf("%s fee", feeType),
		fee: &domain.FeeDetails{
			Type:        feeType,
			Status:      domain.FeeStatusCharged,
			Calculation: calc,
		},
		mutate: func(b *domain.Balance) error { return b.Debit(amount) },
		stats:  func(st *domain.WalletStats, a int64) { st.TotalFees += a },
	})
}

// WaiveFee flips a charged fee to waived and writes the compensating refund
// in the same database transaction. The status transition is guarded in the
// ledger, so a concurrent double waive loses and fails cleanly.
func (s *WalletServiceImpl) WaiveFee(ctx context.Context, merchantID uuid.UUID, feeTxID uuid.UUID) (*domain.Transaction, error) {
	feeTxn, err := s.txRepo.GetByID(ctx, feeTxID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load fee transaction: %w", err))
	}
	if feeTxn == nil || feeTxn.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("fee transaction")
	}
	if !feeTxn.IsFee() {
		return nil, apperror.ErrNotAFee()
	}
	if !feeTxn.IsWaivable() {
		return nil, apperror.ErrFeeNotWaivable(string(feeTxn.Fee.Status))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetOrCreateForUpdate(ctx, dbTx, merchantID, s.currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}

	flipped, err := s.txRepo.UpdateFeeStatus(ctx, dbTx, feeTxID, domain.FeeStatusCharged, domain.FeeStatusWaived)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update fee status: %w", err))
	}
	if !flipped {
		return nil, apperror.ErrFeeNotWaivable(string(domain.FeeStatusWaived))
	}

	before := wallet.Balance
	if err := wallet.Balance.Credit(feeTxn.Amount); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	wallet.UpdatedAt = now

	refund := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		MerchantID:    merchantID,
		Type:          domain.TransactionTypeRefund,
		Amount:        feeTxn.Amount,
		BalanceBefore: before,
		BalanceAfter:  wallet.Balance,
		Status:        domain.TransactionStatusCompleted,
		Reference:     domain.TransactionRef(feeTxID),
		Description:   fmt.Sprintf("waiver of %s fee", feeTxn.Fee.Type),
		CreatedAt:     now,
	}

	if err := s.walletRepo.Update(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update wallet: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, refund); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create refund: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.IncOperation("waive_fee", "success")
	s.afterCommit(ctx, wallet, refund, domain.EventFeeWaived)

	s.log.Info().
		Str("fee_tx_id", feeTxID.String()).
		Str("refund_tx_id", refund.ID.String()).
		Str("merchant_id", merchantID.String()).
		Int64("amount", feeTxn.Amount).
		Msg("fee waived")

	return refund, nil
}

// GetBalance returns the current balance and currency, read-through cached.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, merchantID uuid.UUID) (*domain.Balance, string, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, merchantID)
		if err != nil {
			s.log.Warn().Err(err).Msg("balance cache read failed, falling through to DB")
		}
		if cached != nil {
			return cached, s.currency, nil
		}
	}

	wallet, err := s.walletRepo.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, "", apperror.ErrNotFound("wallet")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, merchantID, wallet.Balance, balanceCacheTTL); err != nil {
			s.log.Warn().Err(err).Msg("balance cache write failed")
		}
	}
	return &wallet.Balance, wallet.Currency, nil
}

// apply runs one ledger operation: validate, lock, mutate, snapshot, persist,
// commit. A precondition failure aborts before any write, so a rejected
// operation leaves neither a balance change nor a ledger entry.
func (s *WalletServiceImpl) apply(ctx context.Context, merchantID uuid.UUID, m mutation) (*domain.Transaction, error) {
	if m.amount <= 0 {
		s.metrics.IncOperation(m.op, "invalid_amount")
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.GetOrCreateForUpdate(ctx, dbTx, merchantID, s.currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}

	before := wallet.Balance
	if err := m.mutate(&wallet.Balance); err != nil {
		s.metrics.IncOperation(m.op, "insufficient_balance")
		return nil, err
	}
	if m.stats != nil {
		m.stats(&wallet.Stats, m.amount)
	}
	now := time.Now().UTC()
	wallet.UpdatedAt = now

	txn := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		MerchantID:    merchantID,
		Type:          m.txnType,
		Amount:        m.amount,
		BalanceBefore: before,
		BalanceAfter:  wallet.Balance,
		Status:        domain.TransactionStatusCompleted,
		Reference:     m.ref,
		Description:   m.desc,
		Fee:           m.fee,
		CreatedAt:     now,
	}

	if err := s.walletRepo.Update(ctx, dbTx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update wallet: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.IncOperation(m.op, "success")
	s.afterCommit(ctx, wallet, txn, m.event)

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("merchant_id", merchantID.String()).
		Str("operation", m.op).
		Int64("amount", m.amount).
		Int64("available", wallet.Balance.Available).
		Int64("reserved", wallet.Balance.Reserved).
		Msg("wallet operation applied")

	if m.txnType != domain.TransactionTypeDeposit && m.txnType != domain.TransactionTypeAutoDeposit {
		s.maybeAutoDeposit(ctx, wallet)
	}

	return txn, nil
}

// afterCommit performs the best-effort secondary effects: cache invalidation,
// webhook publication and the low-balance alert. Failures are logged only.
func (s *WalletServiceImpl) afterCommit(ctx context.Context, wallet *domain.Wallet, txn *domain.Transaction, event string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, wallet.MerchantID); err != nil {
			s.log.Warn().Err(err).Str("merchant_id", wallet.MerchantID.String()).Msg("balance cache invalidation failed")
		}
	}

	if event != "" && s.notifier != nil {
		s.notifier.Publish(domain.WalletEvent{
			MerchantID: wallet.MerchantID,
			Name:       event,
			Payload: map[string]any{
				"transaction_id": txn.ID.String(),
				"type":           string(txn.Type),
				"amount":         txn.Amount,
				"currency":       wallet.Currency,
				"balance":        txn.BalanceAfter,
				"reference":      txn.Reference,
			},
			OccurredAt: txn.CreatedAt,
		})
	}

	if wallet.IsLow() && s.notifier != nil {
		shouldAlert := true
		if s.alerts != nil {
			ok, err := s.alerts.ShouldAlert(ctx, wallet.MerchantID, lowBalanceAlertTTL)
			if err != nil {
				s.log.Warn().Err(err).Msg("low-balance alert dedupe failed, alerting anyway")
			} else {
				shouldAlert = ok
			}
		}
		if shouldAlert {
			s.notifier.Publish(domain.WalletEvent{
				MerchantID: wallet.MerchantID,
				Name:       domain.EventLowBalance,
				Payload: map[string]any{
					"available": wallet.Balance.Available,
					"threshold": wallet.Settings.LowBalanceThreshold,
					"currency":  wallet.Currency,
				},
				OccurredAt: time.Now().UTC(),
			})
		}
	}
}

// maybeAutoDeposit tops the wallet up after a debit dropped the available
// balance under the merchant's auto-deposit threshold. Runs as its own
// committed operation; failure never affects the triggering mutation.
func (s *WalletServiceImpl) maybeAutoDeposit(ctx context.Context, wallet *domain.Wallet) {
	ad := wallet.AutoDeposit
	if !ad.Enabled || ad.Amount <= 0 || wallet.Balance.Available >= ad.Threshold {
		return
	}
	_, err := s.apply(ctx, wallet.MerchantID, mutation{
		op:      "auto_deposit",
		txnType: domain.TransactionTypeAutoDeposit,
		amount:  ad.Amount,
		ref:     domain.SystemRef("auto-deposit"),
		event:   domain.EventDepositCompleted,
		desc:    fmt.Sprintf("auto deposit via %s", ad.Method),
		mutate:  func(b *domain.Balance) error { return b.Credit(ad.Amount) },
		stats:   func(st *domain.WalletStats, a int64) { st.TotalDeposits += a },
	})
	if err != nil {
		s.log.Error().Err(err).Str("merchant_id", wallet.MerchantID.String()).Msg("auto deposit failed")
	}
}
