package service

import (
	"context"
	"fmt"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// recordPendingFee writes a failed fee entry with fee status pending. The
// entry moves no money; it is a durable marker for a charge that should have
// happened after its primary operation committed, picked up by the
// reconciliation repair pass.
func recordPendingFee(
	ctx context.Context,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
	merchantID uuid.UUID,
	feeType domain.FeeType,
	calc domain.FeeCalculation,
	ref domain.Reference,
) {
	wallet, err := walletRepo.GetByMerchantID(ctx, merchantID)
	if err != nil || wallet == nil {
		log.Error().Err(err).Str("merchant_id", merchantID.String()).Msg("load wallet for pending fee marker failed")
		return
	}

	dbTx, err := transactor.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("begin tx for pending fee marker failed")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	marker := &domain.Transaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		MerchantID:    merchantID,
		Type:          domain.TransactionTypeFee,
		Amount:        calc.Result,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  wallet.Balance,
		Status:        domain.TransactionStatusFailed,
		Reference:     ref,
		Description:   fmt.Sprintf("%s fee pending collection", feeType),
		Fee: &domain.FeeDetails{
			Type:        feeType,
			Status:      domain.FeeStatusPending,
			Calculation: calc,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := txRepo.Create(ctx, dbTx, marker); err != nil {
		log.Error().Err(err).Msg("write pending fee marker failed")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("commit pending fee marker failed")
	}
}
