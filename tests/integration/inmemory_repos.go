package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]*domain.Wallet // keyed by merchant id
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[uuid.UUID]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[merchantID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetOrCreateForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wallets[merchantID]; ok {
		cp := *w
		return &cp, nil
	}
	w := domain.NewWallet(merchantID, currency)
	r.wallets[merchantID] = w
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) Update(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[wallet.MerchantID]; !ok {
		return fmt.Errorf("wallet not found")
	}
	cp := *wallet
	r.wallets[wallet.MerchantID] = &cp
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu      sync.RWMutex
	entries []*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *txn
	if txn.Fee != nil {
		fee := *txn.Fee
		cp.Fee = &fee
	}
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.entries {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if t.MerchantID != params.MerchantID {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.From != nil && t.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && t.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, *t)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryTransactionRepo) ListByRange(ctx context.Context, merchantID uuid.UUID, from, to time.Time) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if t.MerchantID != merchantID || t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		result = append(result, *t)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *inMemoryTransactionRepo) UpdateFeeStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.FeeStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.entries {
		if t.ID != id || t.Type != domain.TransactionTypeFee || t.Fee == nil {
			continue
		}
		if t.Fee.Status != from {
			return false, nil
		}
		t.Fee.Status = to
		return true, nil
	}
	return false, nil
}

func (r *inMemoryTransactionRepo) ListPendingFees(ctx context.Context, merchantID uuid.UUID) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.entries {
		if t.MerchantID != merchantID || t.Type != domain.TransactionTypeFee {
			continue
		}
		if t.Status != domain.TransactionStatusFailed || t.Fee == nil || t.Fee.Status != domain.FeeStatusPending {
			continue
		}
		result = append(result, *t)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *inMemoryTransactionRepo) FeeSummary(ctx context.Context, merchantID uuid.UUID, from, to time.Time) (*ports.FeeSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary := &ports.FeeSummary{ByType: make(map[domain.FeeType]int64)}
	for _, t := range r.entries {
		if t.MerchantID != merchantID || t.Type != domain.TransactionTypeFee || t.Fee == nil {
			continue
		}
		if t.Status != domain.TransactionStatusCompleted {
			continue
		}
		if t.CreatedAt.Before(from) || t.CreatedAt.After(to) {
			continue
		}
		switch t.Fee.Status {
		case domain.FeeStatusCharged:
			summary.TotalCharged += t.Amount
			summary.ByType[t.Fee.Type] += t.Amount
		case domain.FeeStatusWaived:
			summary.TotalWaived += t.Amount
		}
	}
	return summary, nil
}

// --- In-Memory Commission Repo ---

type inMemoryCommissionRepo struct {
	mu          sync.RWMutex
	commissions map[uuid.UUID]*domain.Commission
}

func newInMemoryCommissionRepo() *inMemoryCommissionRepo {
	return &inMemoryCommissionRepo{commissions: make(map[uuid.UUID]*domain.Commission)}
}

func (r *inMemoryCommissionRepo) Create(ctx context.Context, c *domain.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.commissions[c.ID] = &cp
	return nil
}

func (r *inMemoryCommissionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Commission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commissions[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *inMemoryCommissionRepo) Update(ctx context.Context, c *domain.Commission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commissions[c.ID]; !ok {
		return fmt.Errorf("commission not found")
	}
	cp := *c
	r.commissions[c.ID] = &cp
	return nil
}

func (r *inMemoryCommissionRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, status *domain.CommissionStatus) ([]domain.Commission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Commission
	for _, c := range r.commissions {
		if c.MerchantID != merchantID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		result = append(result, *c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// --- In-Memory Payout Repo ---

type inMemoryPayoutRepo struct {
	mu      sync.RWMutex
	payouts map[uuid.UUID]*domain.Payout
}

func newInMemoryPayoutRepo() *inMemoryPayoutRepo {
	return &inMemoryPayoutRepo{payouts: make(map[uuid.UUID]*domain.Payout)}
}

func (r *inMemoryPayoutRepo) Create(ctx context.Context, p *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payouts[p.ID] = &cp
	return nil
}

func (r *inMemoryPayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPayoutRepo) Update(ctx context.Context, p *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payouts[p.ID]; !ok {
		return fmt.Errorf("payout not found")
	}
	cp := *p
	r.payouts[p.ID] = &cp
	return nil
}

// --- In-Memory Webhook Endpoint Repo ---

type inMemoryWebhookEndpointRepo struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]*domain.WebhookEndpoint
}

func newInMemoryWebhookEndpointRepo() *inMemoryWebhookEndpointRepo {
	return &inMemoryWebhookEndpointRepo{endpoints: make(map[uuid.UUID]*domain.WebhookEndpoint)}
}

func (r *inMemoryWebhookEndpointRepo) Create(ctx context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.endpoints[e.ID] = &cp
	return nil
}

func (r *inMemoryWebhookEndpointRepo) ListActiveByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WebhookEndpoint
	for _, e := range r.endpoints {
		if e.MerchantID == merchantID && e.Active {
			result = append(result, *e)
		}
	}
	return result, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor serializes transaction blocks with a single mutex,
// standing in for the row lock GetOrCreateForUpdate takes in postgres. The
// services defer Rollback and then Commit, so the unlock must fire once.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &lockingTx{unlock: &sync.Once{}, release: t.mu.Unlock}, nil
}

// lockingTx is a pgx.Tx that only releases the transactor lock.
type lockingTx struct {
	unlock  *sync.Once
	release func()
}

func (t *lockingTx) Commit(ctx context.Context) error {
	t.unlock.Do(t.release)
	return nil
}

func (t *lockingTx) Rollback(ctx context.Context) error {
	t.unlock.Do(t.release)
	return nil
}

func (t *lockingTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *lockingTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *lockingTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *lockingTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *lockingTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *lockingTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *lockingTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *lockingTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *lockingTx) Conn() *pgx.Conn { return nil }
