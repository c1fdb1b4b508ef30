package service

import (
	"context"
	"errors"
	"testing"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type payoutTestDeps struct {
	svc        *PayoutServiceImpl
	payoutRepo *mocks.MockPayoutRepository
	walletSvc  *mocks.MockWalletService
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
	gateway    *mocks.MockTransferGateway
	ctrl       *gomock.Controller
}

func setupPayoutService(t *testing.T) *payoutTestDeps {
	ctrl := gomock.NewController(t)
	d := &payoutTestDeps{
		payoutRepo: mocks.NewMockPayoutRepository(ctrl),
		walletSvc:  mocks.NewMockWalletService(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		gateway:    mocks.NewMockTransferGateway(ctrl),
		ctrl:       ctrl,
	}
	feeCalc := NewFeeCalculator(map[domain.FeeType]domain.FeeConfig{
		domain.FeeTypePayout: {Method: domain.FeeMethodFixed, Amount: 2_50},
	})
	d.svc = NewPayoutService(d.payoutRepo, d.walletSvc, d.walletRepo, d.txRepo,
		d.transactor, d.gateway, feeCalc, zerolog.Nop())
	return d
}

func TestPayoutService_Create_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.payoutRepo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	payout, err := d.svc.Create(ctx, ports.CreatePayoutRequest{
		MerchantID:  uuid.New(),
		AffiliateID: uuid.New(),
		Amount:      50_00,
		Currency:    "USD",
		Destination: "acct_aff_1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
	assert.Nil(t, payout.ExternalTransferID)
}

func TestPayoutService_Create_Invalid(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Create(context.Background(), ports.CreatePayoutRequest{
		MerchantID: uuid.New(), Amount: 0, Destination: "acct_aff_1",
	})
	assertAppError(t, err, "LEDGER_002")

	_, err = d.svc.Create(context.Background(), ports.CreatePayoutRequest{
		MerchantID: uuid.New(), Amount: 50_00,
	})
	assertAppError(t, err, "LEDGER_002")
}

func TestPayoutService_Process_Success(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payout := domain.NewPayout(merchantID, uuid.New(), 50_00, "USD", "acct_aff_1")

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)
	d.walletSvc.EXPECT().GetBalance(ctx, merchantID).
		Return(&domain.Balance{Available: 100_00, Total: 100_00}, "USD", nil)
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil) // -> processing
	d.gateway.EXPECT().Transfer(ctx, payout).Return("tr_abc123", nil)
	d.walletSvc.EXPECT().
		Deduct(ctx, merchantID, int64(50_00), gomock.Any(), false).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ int64, ref domain.Reference, _ bool) (*domain.Transaction, error) {
			assert.Equal(t, domain.ReferenceKindPayout, ref.Kind)
			assert.Equal(t, "tr_abc123", ref.ExternalID)
			return &domain.Transaction{}, nil
		})
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil) // -> completed
	d.walletSvc.EXPECT().
		ChargeFee(ctx, merchantID, domain.FeeTypePayout, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, _ domain.FeeType, calc domain.FeeCalculation, _ domain.Reference) (*domain.Transaction, error) {
			assert.Equal(t, int64(2_50), calc.Result)
			return &domain.Transaction{}, nil
		})

	got, err := d.svc.Process(ctx, merchantID, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, got.Status)
	require.NotNil(t, got.ExternalTransferID)
	assert.Equal(t, "tr_abc123", *got.ExternalTransferID)
	require.NotNil(t, got.CompletedAt)
}

func TestPayoutService_Process_FeeFailureRecordsPendingFee(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payout := domain.NewPayout(merchantID, uuid.New(), 50_00, "USD", "acct_aff_1")
	wallet := testWallet(merchantID, 0, 0)
	tx := &mockTx{}

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)
	d.walletSvc.EXPECT().GetBalance(ctx, merchantID).
		Return(&domain.Balance{Available: 100_00, Total: 100_00}, "USD", nil)
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil) // -> processing
	d.gateway.EXPECT().Transfer(ctx, payout).Return("tr_abc123", nil)
	d.walletSvc.EXPECT().
		Deduct(ctx, merchantID, int64(50_00), gomock.Any(), false).
		Return(&domain.Transaction{}, nil)
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil) // -> completed
	d.walletSvc.EXPECT().
		ChargeFee(ctx, merchantID, domain.FeeTypePayout, gomock.Any(), gomock.Any()).
		Return(nil, errors.New("[LEDGER_001] insufficient available balance"))

	// Drift marker: a failed fee entry with fee status pending, no balance move.
	d.walletRepo.EXPECT().GetByMerchantID(ctx, merchantID).Return(wallet, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)

	var marker *domain.Transaction
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			marker = txn
			return nil
		})

	got, err := d.svc.Process(ctx, merchantID, payout.ID)
	require.NoError(t, err) // the completed payout wins
	assert.Equal(t, domain.PayoutStatusCompleted, got.Status)

	require.NotNil(t, marker)
	assert.Equal(t, domain.TransactionTypeFee, marker.Type)
	assert.Equal(t, domain.TransactionStatusFailed, marker.Status)
	require.NotNil(t, marker.Fee)
	assert.Equal(t, domain.FeeTypePayout, marker.Fee.Type)
	assert.Equal(t, domain.FeeStatusPending, marker.Fee.Status)
	assert.Equal(t, int64(2_50), marker.Amount)
	assert.Equal(t, marker.BalanceBefore, marker.BalanceAfter)
}

func TestPayoutService_Process_InsufficientBalance(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payout := domain.NewPayout(merchantID, uuid.New(), 50_00, "USD", "acct_aff_1")

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)
	d.walletSvc.EXPECT().GetBalance(ctx, merchantID).
		Return(&domain.Balance{Available: 10_00, Total: 10_00}, "USD", nil)
	// Neither the gateway nor the wallet is touched.

	got, err := d.svc.Process(ctx, merchantID, payout.ID)
	assert.Nil(t, got)
	assertAppError(t, err, "LEDGER_001")
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
}

func TestPayoutService_Process_TransferFailure_NoDeduction(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payout := domain.NewPayout(merchantID, uuid.New(), 50_00, "USD", "acct_aff_1")

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)
	d.walletSvc.EXPECT().GetBalance(ctx, merchantID).
		Return(&domain.Balance{Available: 100_00, Total: 100_00}, "USD", nil)
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil) // -> processing
	d.gateway.EXPECT().Transfer(ctx, payout).Return("", errors.New("gateway timeout"))
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil) // -> failed
	// Deduct is never called: the wallet stays untouched.

	got, err := d.svc.Process(ctx, merchantID, payout.ID)
	assert.Nil(t, got)
	assertAppError(t, err, "PAYOUT_001")
	assert.Equal(t, domain.PayoutStatusFailed, payout.Status)
	require.NotNil(t, payout.FailureReason)
	assert.Contains(t, *payout.FailureReason, "gateway timeout")
}

func TestPayoutService_Process_DeductionFailureAfterTransfer(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payout := domain.NewPayout(merchantID, uuid.New(), 50_00, "USD", "acct_aff_1")

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)
	d.walletSvc.EXPECT().GetBalance(ctx, merchantID).
		Return(&domain.Balance{Available: 100_00, Total: 100_00}, "USD", nil)
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	d.gateway.EXPECT().Transfer(ctx, payout).Return("tr_abc124", nil)
	d.walletSvc.EXPECT().
		Deduct(ctx, merchantID, int64(50_00), gomock.Any(), false).
		Return(nil, errors.New("[LEDGER_001] insufficient available balance"))
	d.payoutRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil)
	d.walletSvc.EXPECT().
		ChargeFee(ctx, merchantID, domain.FeeTypePayout, gomock.Any(), gomock.Any()).
		Return(&domain.Transaction{}, nil)

	// The transfer went through, so the payout completes; the missing ledger
	// entry is flagged for reconciliation.
	got, err := d.svc.Process(ctx, merchantID, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusCompleted, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Contains(t, *got.FailureReason, "ledger deduction failed")
}

func TestPayoutService_Process_NotProcessable(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()
	payout := domain.NewPayout(merchantID, uuid.New(), 50_00, "USD", "acct_aff_1")
	payout.Status = domain.PayoutStatusCompleted

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)

	got, err := d.svc.Process(ctx, merchantID, payout.ID)
	assert.Nil(t, got)
	assertAppError(t, err, "PAYOUT_002")
}

func TestPayoutService_Get_WrongMerchant(t *testing.T) {
	d := setupPayoutService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	payout := domain.NewPayout(uuid.New(), uuid.New(), 50_00, "USD", "acct_aff_1")

	d.payoutRepo.EXPECT().GetByID(ctx, payout.ID).Return(payout, nil)

	got, err := d.svc.Get(ctx, uuid.New(), payout.ID)
	assert.Nil(t, got)
	assertAppError(t, err, "LEDGER_003")
}
