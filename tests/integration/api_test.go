package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	httpHandler "affiliate-ledger/internal/adapter/http/handler"
	redisStorage "affiliate-ledger/internal/adapter/storage/redis"
	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/internal/service"
	"affiliate-ledger/pkg/logger"
	"affiliate-ledger/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack: real HTTP layer, middleware,
// services and Redis stores (miniredis), with in-memory postgres repos.

type testApp struct {
	server   *httptest.Server
	redis    *miniredis.Miniredis
	notifier *service.ChannelWebhookNotifier
	tokenSvc *service.JWTTokenService
	gateway  *stubTransferGateway
}

// stubTransferGateway stands in for the Stripe adapter.
type stubTransferGateway struct {
	mu         sync.Mutex
	transferID string
	err        error
	calls      int
}

func (g *stubTransferGateway) Transfer(ctx context.Context, payout *domain.Payout) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.transferID, nil
}

func (g *stubTransferGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	balanceCache := redisStorage.NewBalanceCache(rdb)
	alertDeduper := redisStorage.NewAlertDeduper(rdb)

	encSvc, err := service.NewAESEncryptionService("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService("integration-test-secret-32bytes!", 24*time.Hour, "affiliate-ledger-test")

	walletRepo := newInMemoryWalletRepo()
	txRepo := newInMemoryTransactionRepo()
	commissionRepo := newInMemoryCommissionRepo()
	payoutRepo := newInMemoryPayoutRepo()
	endpointRepo := newInMemoryWebhookEndpointRepo()
	transactor := newInMemoryTransactor()

	log := logger.New("error", false)
	m := metrics.NewLedgerMetrics(prometheus.NewRegistry())

	feeCalc := service.NewFeeCalculator(map[domain.FeeType]domain.FeeConfig{
		domain.FeeTypeNetwork: {Method: domain.FeeMethodPercentage, Rate: decimal.NewFromInt(10)},
		domain.FeeTypePayout:  {Method: domain.FeeMethodFixed, Amount: 2_00},
	})

	notifier := service.NewChannelWebhookNotifier(endpointRepo, encSvc, sigSvc, http.DefaultClient, 16, m, log)

	gateway := &stubTransferGateway{transferID: "tr_test_1"}

	walletSvc := service.NewWalletService(walletRepo, txRepo, transactor, balanceCache, alertDeduper, notifier, m, "USD", log)
	commissionSvc := service.NewCommissionService(commissionRepo, walletSvc, walletRepo, txRepo, transactor, feeCalc, log)
	payoutSvc := service.NewPayoutService(payoutRepo, walletSvc, walletRepo, txRepo,
		transactor, gateway, feeCalc, log)
	reconSvc := service.NewReconciliationService(txRepo, walletRepo, m, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		CommissionSvc:  commissionSvc,
		PayoutSvc:      payoutSvc,
		ReconSvc:       reconSvc,
		TxRepo:         txRepo,
		EndpointRepo:   endpointRepo,
		EncSvc:         encSvc,
		TokenSvc:       tokenSvc,
		HealthCheckers: []ports.HealthChecker{redisStorage.NewHealthCheck(rdb)},
		Logger:         log,
	})

	return &testApp{
		server:   httptest.NewServer(router),
		redis:    mr,
		notifier: notifier,
		tokenSvc: tokenSvc,
		gateway:  gateway,
	}
}

func (a *testApp) close() {
	a.notifier.Close()
	a.server.Close()
	a.redis.Close()
}

func (a *testApp) token(t *testing.T, merchantID uuid.UUID) string {
	t.Helper()
	token, _, err := a.tokenSvc.Generate(merchantID)
	require.NoError(t, err)
	return token
}

// do issues an authenticated JSON request and returns status plus the decoded
// envelope body.
func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	d, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "missing data in envelope: %v", envelope)
	return d
}

func (a *testApp) deposit(t *testing.T, token string, amount int64) map[string]any {
	t.Helper()
	status, envelope := a.do(t, http.MethodPost, "/api/v1/wallet/deposit", token, map[string]any{"amount": amount})
	require.Equal(t, http.StatusCreated, status, "deposit failed: %v", envelope)
	return data(t, envelope)
}

func (a *testApp) balance(t *testing.T, token string) map[string]any {
	t.Helper()
	status, envelope := a.do(t, http.MethodGet, "/api/v1/wallet/balance", token, nil)
	require.Equal(t, http.StatusOK, status)
	return data(t, envelope)
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_Unauthorized(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	status, envelope := app.do(t, http.MethodGet, "/api/v1/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", envelope["error_code"])
}

func TestIntegration_DepositAndBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())

	txn := app.deposit(t, token, 500_00)
	assert.Equal(t, "deposit", txn["type"])
	assert.Equal(t, float64(500_00), txn["amount"])
	assert.Equal(t, "completed", txn["status"])

	// The wallet did not exist before the deposit; it is created lazily.
	bal := app.balance(t, token)
	assert.Equal(t, float64(500_00), bal["available"])
	assert.Equal(t, float64(0), bal["reserved"])
	assert.Equal(t, float64(500_00), bal["total"])
	assert.Equal(t, "USD", bal["currency"])

	app.deposit(t, token, 250_00)

	// Second read comes from the invalidated-then-repopulated cache.
	bal = app.balance(t, token)
	assert.Equal(t, float64(750_00), bal["available"])
	bal = app.balance(t, token)
	assert.Equal(t, float64(750_00), bal["total"])
}

func TestIntegration_CommissionLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	merchantID := uuid.New()
	token := app.token(t, merchantID)
	app.deposit(t, token, 500_00)

	// Create with the default funds reservation.
	status, envelope := app.do(t, http.MethodPost, "/api/v1/commissions", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"order_id":     "ORD-1001",
		"amount":       200_00,
	})
	require.Equal(t, http.StatusCreated, status, "create commission: %v", envelope)
	commission := data(t, envelope)
	assert.Equal(t, "pending", commission["status"])
	assert.Equal(t, true, commission["reserved"])
	commissionID := commission["id"].(string)

	bal := app.balance(t, token)
	assert.Equal(t, float64(300_00), bal["available"])
	assert.Equal(t, float64(200_00), bal["reserved"])
	assert.Equal(t, float64(500_00), bal["total"])

	// Approval pays the reserved funds out and charges the 10% network fee.
	status, envelope = app.do(t, http.MethodPost, "/api/v1/commissions/"+commissionID+"/approve", token, nil)
	require.Equal(t, http.StatusOK, status, "approve commission: %v", envelope)
	assert.Equal(t, "approved", data(t, envelope)["status"])

	bal = app.balance(t, token)
	assert.Equal(t, float64(280_00), bal["available"])
	assert.Equal(t, float64(0), bal["reserved"])
	assert.Equal(t, float64(280_00), bal["total"])

	// The ledger now holds deposit, reserve, commission and fee entries.
	status, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/transactions?page_size=50", token, nil)
	require.Equal(t, http.StatusOK, status)
	list := data(t, envelope)
	assert.Equal(t, float64(4), list["total"])

	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	status, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/fees/summary?from="+from+"&to="+to, token, nil)
	require.Equal(t, http.StatusOK, status)
	summary := data(t, envelope)
	assert.Equal(t, float64(20_00), summary["total_charged"])
	byType := summary["by_type"].(map[string]any)
	assert.Equal(t, float64(20_00), byType["network"])
}

func TestIntegration_FeeWaiver(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	merchantID := uuid.New()
	token := app.token(t, merchantID)
	app.deposit(t, token, 500_00)

	status, envelope := app.do(t, http.MethodPost, "/api/v1/commissions", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"order_id":     "ORD-2002",
		"amount":       100_00,
	})
	require.Equal(t, http.StatusCreated, status)
	commissionID := data(t, envelope)["id"].(string)

	status, _ = app.do(t, http.MethodPost, "/api/v1/commissions/"+commissionID+"/approve", token, nil)
	require.Equal(t, http.StatusOK, status)

	// Locate the fee entry the approval charged.
	status, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/transactions?type=fee", token, nil)
	require.Equal(t, http.StatusOK, status)
	items := data(t, envelope)["items"].([]any)
	require.Len(t, items, 1)
	feeEntry := items[0].(map[string]any)
	feeID := feeEntry["id"].(string)
	assert.Equal(t, "charged", feeEntry["fee"].(map[string]any)["status"])

	balBefore := app.balance(t, token)["available"].(float64)

	// Waiving refunds the 10% fee on the 100.00 commission.
	status, envelope = app.do(t, http.MethodPost, "/api/v1/wallet/fees/"+feeID+"/waive", token, nil)
	require.Equal(t, http.StatusOK, status, "waive fee: %v", envelope)

	balAfter := app.balance(t, token)["available"].(float64)
	assert.Equal(t, balBefore+10_00, balAfter)

	// A waived fee cannot be waived again.
	status, envelope = app.do(t, http.MethodPost, "/api/v1/wallet/fees/"+feeID+"/waive", token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "FEE_001", envelope["error_code"])
}

func TestIntegration_CommissionCancelReleasesFunds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	app.deposit(t, token, 300_00)

	status, envelope := app.do(t, http.MethodPost, "/api/v1/commissions", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"order_id":     "ORD-3003",
		"amount":       120_00,
	})
	require.Equal(t, http.StatusCreated, status)
	commissionID := data(t, envelope)["id"].(string)

	status, envelope = app.do(t, http.MethodPost, "/api/v1/commissions/"+commissionID+"/cancel", token, map[string]any{"reason": "order returned"})
	require.Equal(t, http.StatusOK, status, "cancel commission: %v", envelope)
	assert.Equal(t, "cancelled", data(t, envelope)["status"])

	bal := app.balance(t, token)
	assert.Equal(t, float64(300_00), bal["available"])
	assert.Equal(t, float64(0), bal["reserved"])
}

func TestIntegration_InsufficientFunds(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	app.deposit(t, token, 50_00)

	status, envelope := app.do(t, http.MethodPost, "/api/v1/commissions", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"order_id":     "ORD-4004",
		"amount":       80_00,
	})
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "LEDGER_001", envelope["error_code"])

	// The failed reservation left the wallet untouched.
	bal := app.balance(t, token)
	assert.Equal(t, float64(50_00), bal["available"])
	assert.Equal(t, float64(0), bal["reserved"])
}

func TestIntegration_PayoutFlow(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	app.deposit(t, token, 500_00)

	status, envelope := app.do(t, http.MethodPost, "/api/v1/payouts", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"amount":       100_00,
		"currency":     "USD",
		"destination":  "acct_affiliate_9",
	})
	require.Equal(t, http.StatusCreated, status, "create payout: %v", envelope)
	payout := data(t, envelope)
	assert.Equal(t, "pending", payout["status"])
	payoutID := payout["id"].(string)

	// No funds move until processing.
	assert.Equal(t, float64(500_00), app.balance(t, token)["available"])

	status, envelope = app.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/process", token, nil)
	require.Equal(t, http.StatusOK, status, "process payout: %v", envelope)
	processed := data(t, envelope)
	assert.Equal(t, "completed", processed["status"])
	assert.Equal(t, "tr_test_1", processed["external_transfer_id"])
	assert.Equal(t, 1, app.gateway.callCount())

	// 100.00 transferred plus the fixed 2.00 payout fee.
	assert.Equal(t, float64(398_00), app.balance(t, token)["available"])

	// A completed payout cannot be processed again.
	status, envelope = app.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/process", token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "PAYOUT_002", envelope["error_code"])
}

func TestIntegration_PayoutTransferFailureLeavesWalletIntact(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	app.gateway.err = fmt.Errorf("gateway unavailable")

	token := app.token(t, uuid.New())
	app.deposit(t, token, 200_00)

	status, envelope := app.do(t, http.MethodPost, "/api/v1/payouts", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"amount":       150_00,
		"currency":     "USD",
		"destination":  "acct_affiliate_9",
	})
	require.Equal(t, http.StatusCreated, status)
	payoutID := data(t, envelope)["id"].(string)

	status, envelope = app.do(t, http.MethodPost, "/api/v1/payouts/"+payoutID+"/process", token, nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "PAYOUT_001", envelope["error_code"])

	status, envelope = app.do(t, http.MethodGet, "/api/v1/payouts/"+payoutID, token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "failed", data(t, envelope)["status"])

	assert.Equal(t, float64(200_00), app.balance(t, token)["available"])
}

func TestIntegration_Statement(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	app.deposit(t, token, 400_00)

	status, envelope := app.do(t, http.MethodPost, "/api/v1/commissions", token, map[string]any{
		"affiliate_id": uuid.NewString(),
		"order_id":     "ORD-5005",
		"amount":       100_00,
	})
	require.Equal(t, http.StatusCreated, status)
	commissionID := data(t, envelope)["id"].(string)
	status, _ = app.do(t, http.MethodPost, "/api/v1/commissions/"+commissionID+"/approve", token, nil)
	require.Equal(t, http.StatusOK, status)

	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	status, envelope = app.do(t, http.MethodGet, "/api/v1/wallet/statement?from="+from+"&to="+to, token, nil)
	require.Equal(t, http.StatusOK, status, "statement: %v", envelope)
	report := data(t, envelope)

	assert.Equal(t, float64(0), report["opening_balance"])
	assert.Equal(t, float64(400_00), report["total_deposits"])
	assert.Equal(t, float64(110_00), report["total_withdrawals"]) // commission plus network fee
	assert.Equal(t, float64(10_00), report["total_fees"])
	assert.Equal(t, float64(290_00), report["closing_balance"])
}

func TestIntegration_Reconcile(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	token := app.token(t, uuid.New())
	app.deposit(t, token, 100_00)
	app.deposit(t, token, 200_00)

	now := time.Now().UTC()
	status, envelope := app.do(t, http.MethodPost, "/api/v1/wallet/reconcile", token, map[string]any{
		"from": now.Add(-time.Hour).Format(time.RFC3339),
		"to":   now.Add(time.Hour).Format(time.RFC3339),
		"records": []map[string]any{
			{"id": "ext-1", "amount": 100_00, "date": now.Format(time.RFC3339)},
			{"id": "ext-2", "amount": 200_01, "date": now.Format(time.RFC3339)},
			{"id": "ext-3", "amount": 999_00, "date": now.Format(time.RFC3339)},
		},
		"tolerance": map[string]any{"amount": 1, "date_days": 1},
	})
	require.Equal(t, http.StatusOK, status, "reconcile: %v", envelope)
	report := data(t, envelope)
	summary := report["summary"].(map[string]any)

	// ext-2 matches within the one-cent tolerance and is flagged.
	assert.Equal(t, float64(2), summary["matched_count"])
	assert.Equal(t, float64(0), summary["unmatched_ledger_count"])
	assert.Equal(t, float64(1), summary["unmatched_external_count"])
	assert.Equal(t, float64(1), summary["discrepancy_count"])
	assert.Equal(t, float64(1), summary["discrepancy_total"])
}

func TestIntegration_WebhookDelivery(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	type received struct {
		body      []byte
		signature string
	}
	got := make(chan received, 4)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, signature: r.Header.Get("X-Webhook-Signature")}
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	merchantID := uuid.New()
	token := app.token(t, merchantID)

	secret := "whsec_integration_test_secret"
	status, envelope := app.do(t, http.MethodPost, "/api/v1/webhooks", token, map[string]any{
		"url":    receiver.URL,
		"secret": secret,
	})
	require.Equal(t, http.StatusCreated, status, "register webhook: %v", envelope)
	endpoint := data(t, envelope)
	assert.Equal(t, receiver.URL, endpoint["url"])
	_, echoed := endpoint["secret"]
	assert.False(t, echoed, "secret must never be echoed")

	app.deposit(t, token, 100_00)

	select {
	case r := <-got:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(r.body)
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.signature)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(r.body, &payload))
		assert.Equal(t, "deposit.completed", payload["event"])
		assert.Equal(t, merchantID.String(), payload["merchant_id"])
	case <-time.After(5 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}
