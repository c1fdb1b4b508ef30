package domain

import (
	"time"

	"github.com/google/uuid"
)

// CommissionStatus is the lifecycle state of an affiliate commission.
// pending -> approved -> paid, with cancelled/refunded exits.
type CommissionStatus string

const (
	CommissionStatusPending   CommissionStatus = "pending"
	CommissionStatusApproved  CommissionStatus = "approved"
	CommissionStatusPaid      CommissionStatus = "paid"
	CommissionStatusCancelled CommissionStatus = "cancelled"
	CommissionStatusRefunded  CommissionStatus = "refunded"
)

// Commission is an affiliate's earned amount on one order. The entity tracks
// its own reservation history (Reserved), so approval can pick the matching
// ledger operation without the caller carrying that state.
type Commission struct {
	ID          uuid.UUID        `json:"id"`
	MerchantID  uuid.UUID        `json:"merchant_id"`
	AffiliateID uuid.UUID        `json:"affiliate_id"`
	OrderID     string           `json:"order_id"`
	Amount      int64            `json:"amount"`
	Status      CommissionStatus `json:"status"`
	Reserved    bool             `json:"reserved"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	ApprovedAt  *time.Time       `json:"approved_at,omitempty"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
}

// NewCommission creates a pending commission for an order.
func NewCommission(merchantID, affiliateID uuid.UUID, orderID string, amount int64) *Commission {
	now := time.Now().UTC()
	return &Commission{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		AffiliateID: affiliateID,
		OrderID:     orderID,
		Amount:      amount,
		Status:      CommissionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanApprove reports whether the commission may transition to approved.
func (c *Commission) CanApprove() bool {
	return c.Status == CommissionStatusPending
}

// CanCancel reports whether funds can still be returned. A paid commission is
// final.
func (c *Commission) CanCancel() bool {
	return c.Status == CommissionStatusPending || c.Status == CommissionStatusApproved
}

// CanMarkPaid reports whether a payout may close this commission out.
func (c *Commission) CanMarkPaid() bool {
	return c.Status == CommissionStatusApproved
}
