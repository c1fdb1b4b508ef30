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

// CommissionServiceImpl implements ports.CommissionService. It drives the
// commission status machine and delegates all money movement to the wallet
// service, which does the locking.
type CommissionServiceImpl struct {
	commissionRepo ports.CommissionRepository
	walletSvc      ports.WalletService
	walletRepo     ports.WalletRepository
	txRepo         ports.TransactionRepository
	transactor     ports.DBTransactor
	feeCalc        *FeeCalculator
	log            zerolog.Logger
}

// NewCommissionService creates a new CommissionServiceImpl.
func NewCommissionService(
	commissionRepo ports.CommissionRepository,
	walletSvc ports.WalletService,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	feeCalc *FeeCalculator,
	log zerolog.Logger,
) *CommissionServiceImpl {
	return &CommissionServiceImpl{
		commissionRepo: commissionRepo,
		walletSvc:      walletSvc,
		walletRepo:     walletRepo,
		txRepo:         txRepo,
		transactor:     transactor,
		feeCalc:        feeCalc,
		log:            log,
	}
}

// Create registers a pending commission. When ReserveFunds is set the
// merchant's funds are earmarked up front; insufficient balance rejects the
// commission entirely.
func (s *CommissionServiceImpl) Create(ctx context.Context, req ports.CreateCommissionRequest) (*domain.Commission, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.OrderID == "" {
		return nil, apperror.Validation("order_id is required")
	}

	commission := domain.NewCommission(req.MerchantID, req.AffiliateID, req.OrderID, req.Amount)

	if req.ReserveFunds {
		ref := domain.CommissionRef(commission.ID, req.OrderID)
		if _, err := s.walletSvc.Reserve(ctx, req.MerchantID, req.Amount, ref); err != nil {
			return nil, err
		}
		commission.Reserved = true
	}

	if err := s.commissionRepo.Create(ctx, commission); err != nil {
		if commission.Reserved {
			// Give the earmarked funds back; the commission never existed.
			ref := domain.CommissionRef(commission.ID, req.OrderID)
			if _, relErr := s.walletSvc.Release(ctx, req.MerchantID, req.Amount, ref); relErr != nil {
				s.log.Error().Err(relErr).
					Str("commission_id", commission.ID.String()).
					Msg("failed to release reservation after commission create failure")
			}
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create commission: %w", err))
	}

	s.log.Info().
		Str("commission_id", commission.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Str("order_id", req.OrderID).
		Int64("amount", req.Amount).
		Bool("reserved", commission.Reserved).
		Msg("commission created")

	return commission, nil
}

// Approve pays the commission out of the wallet. Reserved commissions spend
// their earmarked funds; unreserved ones debit available directly. The
// network fee is charged afterwards as its own operation: if the fee fails
// the approval stands and the fee is parked for a later repair pass.
func (s *CommissionServiceImpl) Approve(ctx context.Context, merchantID, commissionID uuid.UUID) (*domain.Commission, error) {
	commission, err := s.load(ctx, merchantID, commissionID)
	if err != nil {
		return nil, err
	}
	if !commission.CanApprove() {
		return nil, apperror.ErrInvalidStatusTransition(string(commission.Status), string(domain.CommissionStatusApproved))
	}

	ref := domain.CommissionRef(commission.ID, commission.OrderID)
	if commission.Reserved {
		_, err = s.walletSvc.ApproveCommission(ctx, merchantID, commission.Amount, ref)
	} else {
		_, err = s.walletSvc.Deduct(ctx, merchantID, commission.Amount, ref, false)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	commission.Status = domain.CommissionStatusApproved
	commission.ApprovedAt = &now
	commission.UpdatedAt = now
	if err := s.commissionRepo.Update(ctx, commission); err != nil {
		// Funds already moved; surface the error but do not attempt to undo
		// the ledger, the entry is the source of truth for a repair.
		s.log.Error().Err(err).Str("commission_id", commissionID.String()).Msg("commission status update failed after ledger spend")
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update commission: %w", err))
	}

	s.chargeNetworkFee(ctx, commission, ref)

	return commission, nil
}

// Cancel returns the commission's funds. A pending reserved commission gets
// its reservation released; an already-approved one is compensated with a
// refund and marked refunded.
func (s *CommissionServiceImpl) Cancel(ctx context.Context, merchantID, commissionID uuid.UUID, reason string) (*domain.Commission, error) {
	commission, err := s.load(ctx, merchantID, commissionID)
	if err != nil {
		return nil, err
	}
	if !commission.CanCancel() {
		return nil, apperror.ErrInvalidStatusTransition(string(commission.Status), string(domain.CommissionStatusCancelled))
	}

	ref := domain.CommissionRef(commission.ID, commission.OrderID)
	target := domain.CommissionStatusCancelled

	switch commission.Status {
	case domain.CommissionStatusPending:
		if commission.Reserved {
			if _, err := s.walletSvc.Release(ctx, merchantID, commission.Amount, ref); err != nil {
				return nil, err
			}
		}
	case domain.CommissionStatusApproved:
		if _, err := s.walletSvc.Refund(ctx, merchantID, commission.Amount, ref); err != nil {
			return nil, err
		}
		target = domain.CommissionStatusRefunded
	}

	commission.Status = target
	commission.UpdatedAt = time.Now().UTC()
	if err := s.commissionRepo.Update(ctx, commission); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update commission: %w", err))
	}

	s.log.Info().
		Str("commission_id", commissionID.String()).
		Str("status", string(target)).
		Str("reason", reason).
		Msg("commission cancelled")

	return commission, nil
}

// Get returns a single commission scoped to the merchant.
func (s *CommissionServiceImpl) Get(ctx context.Context, merchantID, commissionID uuid.UUID) (*domain.Commission, error) {
	return s.load(ctx, merchantID, commissionID)
}

func (s *CommissionServiceImpl) load(ctx context.Context, merchantID, commissionID uuid.UUID) (*domain.Commission, error) {
	commission, err := s.commissionRepo.GetByID(ctx, commissionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get commission: %w", err))
	}
	if commission == nil || commission.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("commission")
	}
	return commission, nil
}

// chargeNetworkFee charges the platform's cut on an approved commission. A
// failed charge never unwinds the approval: the fee is recorded as a failed
// ledger entry with a pending fee status so reconciliation can surface it.
func (s *CommissionServiceImpl) chargeNetworkFee(ctx context.Context, commission *domain.Commission, ref domain.Reference) {
	if s.feeCalc == nil {
		return
	}
	calc, err := s.feeCalc.Calculate(domain.FeeTypeNetwork, commission.Amount)
	if err != nil {
		s.log.Warn().Err(err).Str("commission_id", commission.ID.String()).Msg("network fee calculation failed")
		return
	}
	if calc.Result <= 0 {
		return
	}

	if _, err := s.walletSvc.ChargeFee(ctx, commission.MerchantID, domain.FeeTypeNetwork, calc, ref); err != nil {
		s.log.Warn().Err(err).
			Str("commission_id", commission.ID.String()).
			Int64("fee", calc.Result).
			Msg("network fee charge failed, recording pending fee")
		recordPendingFee(ctx, s.walletRepo, s.txRepo, s.transactor, s.log,
			commission.MerchantID, domain.FeeTypeNetwork, calc, ref)
	}
}
