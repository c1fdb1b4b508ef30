package ports

import (
	"context"
	"time"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// WalletService exposes the ledger operations. Each operation validates its
// precondition, mutates both balance buckets and the ledger atomically, and
// notifies webhooks best-effort after commit. A failed precondition leaves no
// partial state: no balance change, no ledger entry.
type WalletService interface {
	// Deposit credits the available balance.
	Deposit(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error)
	// Reserve earmarks available funds against a pending commission.
	Reserve(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error)
	// Release returns reserved funds to the available bucket.
	Release(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error)
	// ApproveCommission spends funds out of the reserved pool; total decreases.
	ApproveCommission(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error)
	// Deduct subtracts directly from the chosen bucket.
	Deduct(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference, fromReserved bool) (*domain.Transaction, error)
	// Refund credits the available balance, compensating a prior effect.
	Refund(ctx context.Context, merchantID uuid.UUID, amount int64, ref domain.Reference) (*domain.Transaction, error)
	// ChargeFee debits a platform fee from the available balance, recording
	// its derivation for audit.
	ChargeFee(ctx context.Context, merchantID uuid.UUID, feeType domain.FeeType, calc domain.FeeCalculation, ref domain.Reference) (*domain.Transaction, error)
	// WaiveFee flips a charged fee to waived and writes the compensating
	// refund. Waiving a non-charged fee fails without side effects.
	WaiveFee(ctx context.Context, merchantID uuid.UUID, feeTxID uuid.UUID) (*domain.Transaction, error)
	// GetBalance returns the current balance and currency, read-through cached.
	GetBalance(ctx context.Context, merchantID uuid.UUID) (*domain.Balance, string, error)
}

// CreateCommissionRequest holds validated input for commission creation.
type CreateCommissionRequest struct {
	MerchantID   uuid.UUID
	AffiliateID  uuid.UUID
	OrderID      string
	Amount       int64
	ReserveFunds bool // false for externally ingested historical commissions
}

// CommissionService drives the commission status machine and invokes the
// matching ledger operations. The commission entity tracks whether funds were
// reserved, so approval selects approveCommission vs deduct itself.
type CommissionService interface {
	Create(ctx context.Context, req CreateCommissionRequest) (*domain.Commission, error)
	Approve(ctx context.Context, merchantID, commissionID uuid.UUID) (*domain.Commission, error)
	Cancel(ctx context.Context, merchantID, commissionID uuid.UUID, reason string) (*domain.Commission, error)
	Get(ctx context.Context, merchantID, commissionID uuid.UUID) (*domain.Commission, error)
}

// CreatePayoutRequest holds validated input for payout creation.
type CreatePayoutRequest struct {
	MerchantID  uuid.UUID
	AffiliateID uuid.UUID
	Amount      int64
	Currency    string
	Destination string
}

// PayoutService drives the payout workflow: pre-check balance, call the
// external transfer gateway, and deduct only after confirmed success.
type PayoutService interface {
	Create(ctx context.Context, req CreatePayoutRequest) (*domain.Payout, error)
	Process(ctx context.Context, merchantID, payoutID uuid.UUID) (*domain.Payout, error)
	Get(ctx context.Context, merchantID, payoutID uuid.UUID) (*domain.Payout, error)
}

// ReconciliationService matches ledger entries against external records and
// produces merchant statements.
type ReconciliationService interface {
	Reconcile(ctx context.Context, merchantID uuid.UUID, from, to time.Time, records []domain.ExternalRecord, tol domain.Tolerance) (*domain.ReconciliationReport, error)
	Statement(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*domain.PeriodReport, error)
	FeeSummary(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*FeeSummary, error)
	// PendingFees surfaces fee charges that failed after their primary effect
	// committed, for a repair pass.
	PendingFees(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error)
}

// WebhookNotifier delivers wallet events to merchant endpoints. Publish never
// blocks the caller; delivery is at-most-once and failures are logged only.
type WebhookNotifier interface {
	Publish(event domain.WalletEvent)
	Close()
}

// TransferGateway executes external payout transfers. Implementations must
// respect ctx deadlines; a timeout or error means no funds moved as far as
// the ledger is concerned.
type TransferGateway interface {
	Transfer(ctx context.Context, payout *domain.Payout) (transferID string, err error)
}

// EncryptionService handles AES-256-GCM encryption of webhook secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing of webhook payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService validates dashboard JWTs issued by the platform auth service.
type TokenService interface {
	Generate(merchantID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID uuid.UUID
}
