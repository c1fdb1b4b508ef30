package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit           TransactionType = "deposit"
	TransactionTypeAutoDeposit       TransactionType = "auto_deposit"
	TransactionTypeCommissionPayment TransactionType = "commission_payment"
	TransactionTypeCommissionReserve TransactionType = "commission_reserve"
	TransactionTypeCommissionRelease TransactionType = "commission_release"
	TransactionTypePayout            TransactionType = "payout"
	TransactionTypeRefund            TransactionType = "refund"
	TransactionTypeFee               TransactionType = "fee"
	TransactionTypeAdjustment        TransactionType = "adjustment"
)

// CreditsTotal reports whether this type adds to the wallet total.
func (t TransactionType) CreditsTotal() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeAutoDeposit, TransactionTypeRefund:
		return true
	}
	return false
}

// DebitsTotal reports whether this type removes from the wallet total.
// Reserve and release only move funds between buckets.
func (t TransactionType) DebitsTotal() bool {
	switch t {
	case TransactionTypeCommissionPayment, TransactionTypePayout,
		TransactionTypeFee, TransactionTypeAdjustment:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// ReferenceKind identifies the business object a ledger entry originated from.
type ReferenceKind string

const (
	ReferenceKindCommission  ReferenceKind = "commission"
	ReferenceKindPayout      ReferenceKind = "payout"
	ReferenceKindOrder       ReferenceKind = "order"
	ReferenceKindTransaction ReferenceKind = "transaction"
	ReferenceKindSystem      ReferenceKind = "system"
)

// Reference is a polymorphic pointer to the originating business object. It is
// not an enforced foreign key; the ledger records effects, it does not own the
// referenced entity's lifecycle.
type Reference struct {
	Kind       ReferenceKind `json:"kind"`
	ID         string        `json:"id"`
	ExternalID string        `json:"external_id,omitempty"`
}

func CommissionRef(id uuid.UUID, externalID string) Reference {
	return Reference{Kind: ReferenceKindCommission, ID: id.String(), ExternalID: externalID}
}

func PayoutRef(id uuid.UUID, externalID string) Reference {
	return Reference{Kind: ReferenceKindPayout, ID: id.String(), ExternalID: externalID}
}

func OrderRef(id string) Reference {
	return Reference{Kind: ReferenceKindOrder, ID: id}
}

// TransactionRef points at another ledger entry, used by compensating refunds.
func TransactionRef(id uuid.UUID) Reference {
	return Reference{Kind: ReferenceKindTransaction, ID: id.String()}
}

func SystemRef(id string) Reference {
	return Reference{Kind: ReferenceKindSystem, ID: id}
}

// Transaction is an immutable ledger entry. Amount, type and reference never
// change after creation; the sole sanctioned mutation is a fee's status
// transition charged -> waived, paired with a compensating refund entry.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	WalletID      uuid.UUID         `json:"wallet_id"`
	MerchantID    uuid.UUID         `json:"merchant_id"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"`
	BalanceBefore Balance           `json:"balance_before"`
	BalanceAfter  Balance           `json:"balance_after"`
	Status        TransactionStatus `json:"status"`
	Reference     Reference         `json:"reference"`
	Description   string            `json:"description,omitempty"`
	Fee           *FeeDetails       `json:"fee,omitempty"` // nil unless Type == fee
	CreatedAt     time.Time         `json:"created_at"`
}

// IsFee reports whether this entry is a fee charge carrying fee details.
func (t *Transaction) IsFee() bool {
	return t.Type == TransactionTypeFee && t.Fee != nil
}

// IsWaivable reports whether this entry is a charged fee eligible for waiver.
func (t *Transaction) IsWaivable() bool {
	return t.IsFee() && t.Fee.Status == FeeStatusCharged
}
