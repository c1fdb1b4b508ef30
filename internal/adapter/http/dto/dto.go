package dto

import "time"

// DepositRequest is the request body for a wallet deposit.
type DepositRequest struct {
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	OrderID string `json:"order_id" binding:"omitempty,safe_id,max=100"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
	Total     int64  `json:"total"`
	Currency  string `json:"currency"`
}

// BalanceSnapshot mirrors the balance captured on a ledger entry.
type BalanceSnapshot struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
	Total     int64 `json:"total"`
}

// ReferenceResponse identifies what a ledger entry was recorded against.
type ReferenceResponse struct {
	Kind       string `json:"kind"`
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// FeeResponse is attached to fee-typed ledger entries.
type FeeResponse struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	Method string `json:"method,omitempty"`
	Rate   string `json:"rate,omitempty"`
	Base   int64  `json:"base,omitempty"`
	Result int64  `json:"result,omitempty"`
}

// TransactionResponse is the response body for ledger entries.
type TransactionResponse struct {
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	Amount        int64             `json:"amount"`
	Status        string            `json:"status"`
	BalanceBefore BalanceSnapshot   `json:"balance_before"`
	BalanceAfter  BalanceSnapshot   `json:"balance_after"`
	Reference     ReferenceResponse `json:"reference"`
	Fee           *FeeResponse      `json:"fee,omitempty"`
	Description   string            `json:"description,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

// TransactionListResponse wraps a paginated ledger page.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// CreateCommissionRequest is the request body for commission creation.
// ReserveFunds defaults to true; pass false only for historical imports.
type CreateCommissionRequest struct {
	AffiliateID  string `json:"affiliate_id" binding:"required,uuid"`
	OrderID      string `json:"order_id" binding:"required,safe_id,max=100"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	ReserveFunds *bool  `json:"reserve_funds,omitempty"`
}

// CancelCommissionRequest is the request body for commission cancellation.
type CancelCommissionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// CommissionResponse is the response body for commissions.
type CommissionResponse struct {
	ID          string  `json:"id"`
	MerchantID  string  `json:"merchant_id"`
	AffiliateID string  `json:"affiliate_id"`
	OrderID     string  `json:"order_id"`
	Amount      int64   `json:"amount"`
	Status      string  `json:"status"`
	Reserved    bool    `json:"reserved"`
	CreatedAt   string  `json:"created_at"`
	ApprovedAt  *string `json:"approved_at,omitempty"`
}

// CreatePayoutRequest is the request body for payout creation.
type CreatePayoutRequest struct {
	AffiliateID string `json:"affiliate_id" binding:"required,uuid"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,len=3"`
	Destination string `json:"destination" binding:"required,safe_id,max=100"`
}

// PayoutResponse is the response body for payouts.
type PayoutResponse struct {
	ID                 string  `json:"id"`
	MerchantID         string  `json:"merchant_id"`
	AffiliateID        string  `json:"affiliate_id"`
	Amount             int64   `json:"amount"`
	Currency           string  `json:"currency"`
	Status             string  `json:"status"`
	Destination        string  `json:"destination"`
	ExternalTransferID *string `json:"external_transfer_id,omitempty"`
	FailureReason      *string `json:"failure_reason,omitempty"`
	CreatedAt          string  `json:"created_at"`
	CompletedAt        *string `json:"completed_at,omitempty"`
}

// ExternalRecordRequest is one externally supplied record to reconcile.
type ExternalRecordRequest struct {
	ID     string    `json:"id" binding:"required,max=100"`
	Amount int64     `json:"amount" binding:"required"`
	Date   time.Time `json:"date" binding:"required"`
}

// ToleranceRequest bounds reconciliation matching.
type ToleranceRequest struct {
	Amount   int64 `json:"amount" binding:"min=0"`
	DateDays int   `json:"date_days" binding:"min=0"`
}

// ReconcileRequest is the request body for a reconciliation run.
type ReconcileRequest struct {
	From      time.Time               `json:"from" binding:"required"`
	To        time.Time               `json:"to" binding:"required"`
	Records   []ExternalRecordRequest `json:"records" binding:"required"`
	Tolerance *ToleranceRequest       `json:"tolerance,omitempty"`
}

// RegisterWebhookRequest is the request body for webhook endpoint registration.
type RegisterWebhookRequest struct {
	URL    string `json:"url" binding:"required,safe_url,max=500"`
	Secret string `json:"secret" binding:"required,min=16,max=128"`
}

// WebhookEndpointResponse is the response body for a registered endpoint.
// The signing secret is never echoed back.
type WebhookEndpointResponse struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// FeeSummaryResponse aggregates fees over a period.
type FeeSummaryResponse struct {
	TotalCharged int64            `json:"total_charged"`
	TotalWaived  int64            `json:"total_waived"`
	ByType       map[string]int64 `json:"by_type"`
}
