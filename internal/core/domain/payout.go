package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the lifecycle state of an affiliate payout.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// Payout is an affiliate-facing withdrawal, funded from the merchant's
// available balance only after the external transfer has been confirmed.
type Payout struct {
	ID                 uuid.UUID    `json:"id"`
	MerchantID         uuid.UUID    `json:"merchant_id"`
	AffiliateID        uuid.UUID    `json:"affiliate_id"`
	Amount             int64        `json:"amount"`
	Currency           string       `json:"currency"`
	Status             PayoutStatus `json:"status"`
	Destination        string       `json:"destination"` // gateway account identifier
	ExternalTransferID *string      `json:"external_transfer_id,omitempty"`
	FailureReason      *string      `json:"failure_reason,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty"`
}

// NewPayout creates a pending payout request.
func NewPayout(merchantID, affiliateID uuid.UUID, amount int64, currency, destination string) *Payout {
	now := time.Now().UTC()
	return &Payout{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		AffiliateID: affiliateID,
		Amount:      amount,
		Currency:    currency,
		Status:      PayoutStatusPending,
		Destination: destination,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanProcess reports whether the payout is eligible for transfer.
func (p *Payout) CanProcess() bool {
	return p.Status == PayoutStatusPending
}
