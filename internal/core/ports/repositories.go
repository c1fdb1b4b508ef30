package ports

import (
	"context"
	"time"

	"affiliate-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence for wallets. Methods accepting pgx.Tx
// run inside transaction blocks and lock the wallet row; every balance
// mutation for a merchant is serialized through that lock.
type WalletRepository interface {
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	// GetOrCreateForUpdate fetches the merchant's wallet with a row lock,
	// creating an empty one on first use.
	GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error)
	// Update persists balance, stats and settings within a transaction.
	Update(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// TransactionListParams holds filter + pagination for listing ledger entries.
type TransactionListParams struct {
	MerchantID uuid.UUID
	Type       *domain.TransactionType
	Status     *domain.TransactionStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// FeeSummary aggregates fee charges for a merchant over a period.
type FeeSummary struct {
	TotalCharged int64
	TotalWaived  int64
	ByType       map[domain.FeeType]int64
}

// TransactionRepository defines persistence for the append-only ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// List returns entries newest-first with filtering and pagination.
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// ListByRange returns completed entries for a merchant ordered by
	// creation time ascending, for reconciliation and statements.
	ListByRange(ctx context.Context, merchantID uuid.UUID, from, to time.Time) ([]domain.Transaction, error)
	// UpdateFeeStatus transitions a fee's status, guarded on the current
	// status. Returns false if the guard did not match.
	UpdateFeeStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.FeeStatus) (bool, error)
	// ListPendingFees returns fee entries recorded as drift markers: charges
	// that failed after their primary effect committed.
	ListPendingFees(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error)
	FeeSummary(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*FeeSummary, error)
}

// CommissionRepository defines persistence for commissions.
type CommissionRepository interface {
	Create(ctx context.Context, commission *domain.Commission) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Commission, error)
	Update(ctx context.Context, commission *domain.Commission) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID, status *domain.CommissionStatus) ([]domain.Commission, error)
}

// PayoutRepository defines persistence for payouts.
type PayoutRepository interface {
	Create(ctx context.Context, payout *domain.Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	Update(ctx context.Context, payout *domain.Payout) error
}

// WebhookEndpointRepository defines persistence for merchant webhook endpoints.
type WebhookEndpointRepository interface {
	Create(ctx context.Context, endpoint *domain.WebhookEndpoint) error
	ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookEndpoint, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BalanceCache is a read cache for wallet balances, invalidated on mutation.
type BalanceCache interface {
	Get(ctx context.Context, merchantID uuid.UUID) (*domain.Balance, error) // nil, nil on miss
	Set(ctx context.Context, merchantID uuid.UUID, balance domain.Balance, ttl time.Duration) error
	Invalidate(ctx context.Context, merchantID uuid.UUID) error
}

// AlertDeduper suppresses repeated low-balance alerts for a merchant.
type AlertDeduper interface {
	// ShouldAlert returns true at most once per TTL window per merchant.
	ShouldAlert(ctx context.Context, merchantID uuid.UUID, ttl time.Duration) (bool, error)
}
