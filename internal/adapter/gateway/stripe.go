// Package gateway adapts external money-movement providers to the
// ports.TransferGateway interface.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"affiliate-ledger/config"
	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

const transferTimeout = 30 * time.Second

// transferCreator is the slice of the Stripe client the gateway needs.
type transferCreator interface {
	New(params *stripe.TransferParams) (*stripe.Transfer, error)
}

// StripeGateway executes affiliate payouts as Stripe transfers to connected
// accounts. A returned error means Stripe did not confirm the transfer.
type StripeGateway struct {
	transfers transferCreator
	log       zerolog.Logger
}

// NewStripeGateway creates a gateway backed by the Stripe API.
func NewStripeGateway(cfg config.GatewayConfig, log zerolog.Logger) *StripeGateway {
	sc := &client.API{}
	sc.Init(cfg.StripeSecretKey, nil)
	return &StripeGateway{
		transfers: sc.Transfers,
		log:       log.With().Str("component", "stripe_gateway").Logger(),
	}
}

// Transfer moves funds to the payout's destination account and returns the
// Stripe transfer ID.
func (g *StripeGateway) Transfer(ctx context.Context, payout *domain.Payout) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(payout.Amount),
		Currency:    stripe.String(strings.ToLower(payout.Currency)),
		Destination: stripe.String(payout.Destination),
	}
	params.Context = ctx
	params.SetIdempotencyKey(payout.ID.String())
	params.AddMetadata("payout_id", payout.ID.String())
	params.AddMetadata("affiliate_id", payout.AffiliateID.String())

	tr, err := g.transfers.New(params)
	if err != nil {
		g.log.Error().Err(err).
			Str("payout_id", payout.ID.String()).
			Int64("amount", payout.Amount).
			Msg("Stripe transfer failed")
		return "", apperror.ErrExternalTransferFailed(fmt.Errorf("stripe transfer: %w", err))
	}

	g.log.Info().
		Str("payout_id", payout.ID.String()).
		Str("transfer_id", tr.ID).
		Int64("amount", payout.Amount).
		Msg("Stripe transfer completed")
	return tr.ID, nil
}
