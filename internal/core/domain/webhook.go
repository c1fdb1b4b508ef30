package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet event names delivered to merchant webhook endpoints.
const (
	EventDepositCompleted   = "deposit.completed"
	EventCommissionReserved = "commission.reserved"
	EventCommissionReleased = "commission.released"
	EventCommissionPaid     = "commission.paid"
	EventPayoutProcessed    = "payout.processed"
	EventFeeCharged         = "fee.charged"
	EventFeeWaived          = "fee.waived"
	EventRefundIssued       = "refund.issued"
	EventLowBalance         = "balance.low"
)

// WebhookEndpoint is a merchant-configured destination for wallet events.
// The signing secret is AES-256-GCM encrypted at rest.
type WebhookEndpoint struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	URL        string    `json:"url"`
	SecretEnc  string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// WalletEvent is one outbound notification produced by a committed ledger
// mutation. Delivery is best-effort and never affects the mutation.
type WalletEvent struct {
	MerchantID uuid.UUID      `json:"merchant_id"`
	Name       string         `json:"event"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}
