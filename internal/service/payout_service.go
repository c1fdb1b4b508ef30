package service

import (
	"context"
	"fmt"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PayoutServiceImpl implements ports.PayoutService. Funds are deducted only
// after the external transfer is confirmed; a gateway failure leaves the
// wallet untouched.
type PayoutServiceImpl struct {
	payoutRepo ports.PayoutRepository
	walletSvc  ports.WalletService
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	gateway    ports.TransferGateway
	feeCalc    *FeeCalculator
	log        zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	payoutRepo ports.PayoutRepository,
	walletSvc ports.WalletService,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	gateway ports.TransferGateway,
	feeCalc *FeeCalculator,
	log zerolog.Logger,
) *PayoutServiceImpl {
	return &PayoutServiceImpl{
		payoutRepo: payoutRepo,
		walletSvc:  walletSvc,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		gateway:    gateway,
		feeCalc:    feeCalc,
		log:        log,
	}
}

// Create registers a pending payout. No funds move until Process.
func (s *PayoutServiceImpl) Create(ctx context.Context, req ports.CreatePayoutRequest) (*domain.Payout, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Destination == "" {
		return nil, apperror.Validation("destination is required")
	}

	payout := domain.NewPayout(req.MerchantID, req.AffiliateID, req.Amount, req.Currency, req.Destination)
	if err := s.payoutRepo.Create(ctx, payout); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create payout: %w", err))
	}

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Int64("amount", req.Amount).
		Msg("payout created")

	return payout, nil
}

// Process executes a pending payout: check funds, transfer externally, then
// deduct. The order matters: a transfer that fails or times out must leave
// the wallet exactly as it was.
func (s *PayoutServiceImpl) Process(ctx context.Context, merchantID, payoutID uuid.UUID) (*domain.Payout, error) {
	payout, err := s.load(ctx, merchantID, payoutID)
	if err != nil {
		return nil, err
	}
	if !payout.CanProcess() {
		return nil, apperror.ErrPayoutNotProcessable(string(payout.Status))
	}

	// Cheap pre-check; the deduction after transfer is the real guard.
	balance, _, err := s.walletSvc.GetBalance(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if balance.Available < payout.Amount {
		return nil, apperror.ErrInsufficientBalance("available")
	}

	payout.Status = domain.PayoutStatusProcessing
	payout.UpdatedAt = time.Now().UTC()
	if err := s.payoutRepo.Update(ctx, payout); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update payout: %w", err))
	}

	transferID, err := s.gateway.Transfer(ctx, payout)
	if err != nil {
		reason := err.Error()
		payout.Status = domain.PayoutStatusFailed
		payout.FailureReason = &reason
		payout.UpdatedAt = time.Now().UTC()
		if updErr := s.payoutRepo.Update(ctx, payout); updErr != nil {
			s.log.Error().Err(updErr).Str("payout_id", payoutID.String()).Msg("failed to persist payout failure")
		}
		s.log.Warn().Err(err).Str("payout_id", payoutID.String()).Msg("external transfer failed")
		return nil, apperror.ErrExternalTransferFailed(err)
	}

	payout.ExternalTransferID = &transferID
	ref := domain.PayoutRef(payout.ID, transferID)

	if _, err := s.walletSvc.Deduct(ctx, merchantID, payout.Amount, ref, false); err != nil {
		// The money already left via the gateway. Keep the payout completed
		// and flag the missing ledger entry; reconciliation against gateway
		// records will surface it as an unmatched external transfer.
		reason := fmt.Sprintf("ledger deduction failed: %v", err)
		payout.FailureReason = &reason
		s.log.Error().Err(err).
			Str("payout_id", payoutID.String()).
			Str("transfer_id", transferID).
			Msg("deduction failed after confirmed transfer")
	}

	now := time.Now().UTC()
	payout.Status = domain.PayoutStatusCompleted
	payout.CompletedAt = &now
	payout.UpdatedAt = now
	if err := s.payoutRepo.Update(ctx, payout); err != nil {
		s.log.Error().Err(err).Str("payout_id", payoutID.String()).Msg("failed to persist payout completion")
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update payout: %w", err))
	}

	s.chargePayoutFee(ctx, payout, ref)

	s.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("transfer_id", transferID).
		Int64("amount", payout.Amount).
		Msg("payout processed")

	return payout, nil
}

// Get returns a single payout scoped to the merchant.
func (s *PayoutServiceImpl) Get(ctx context.Context, merchantID, payoutID uuid.UUID) (*domain.Payout, error) {
	return s.load(ctx, merchantID, payoutID)
}

func (s *PayoutServiceImpl) load(ctx context.Context, merchantID, payoutID uuid.UUID) (*domain.Payout, error) {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get payout: %w", err))
	}
	if payout == nil || payout.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("payout")
	}
	return payout, nil
}

// chargePayoutFee charges the per-payout platform fee. A failed charge never
// unwinds the completed payout: the fee is recorded as a failed ledger entry
// with a pending fee status so reconciliation can surface it.
func (s *PayoutServiceImpl) chargePayoutFee(ctx context.Context, payout *domain.Payout, ref domain.Reference) {
	if s.feeCalc == nil {
		return
	}
	calc, err := s.feeCalc.Calculate(domain.FeeTypePayout, payout.Amount)
	if err != nil {
		s.log.Warn().Err(err).Str("payout_id", payout.ID.String()).Msg("payout fee calculation failed")
		return
	}
	if calc.Result <= 0 {
		return
	}
	if _, err := s.walletSvc.ChargeFee(ctx, payout.MerchantID, domain.FeeTypePayout, calc, ref); err != nil {
		s.log.Warn().Err(err).
			Str("payout_id", payout.ID.String()).
			Int64("fee", calc.Result).
			Msg("payout fee charge failed, recording pending fee")
		recordPendingFee(ctx, s.walletRepo, s.txRepo, s.transactor, s.log,
			payout.MerchantID, domain.FeeTypePayout, calc, ref)
	}
}
