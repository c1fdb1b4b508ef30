package handler

import (
	"strconv"
	"time"

	"affiliate-ledger/internal/adapter/http/dto"
	"affiliate-ledger/internal/adapter/http/middleware"
	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/pkg/apperror"
	"affiliate-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet, ledger and reconciliation endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
	reconSvc  ports.ReconciliationService
	txRepo    ports.TransactionRepository
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reconSvc ports.ReconciliationService, txRepo ports.TransactionRepository) *WalletHandler {
	return &WalletHandler{
		walletSvc: walletSvc,
		reconSvc:  reconSvc,
		txRepo:    txRepo,
	}
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	ref := domain.SystemRef("deposit")
	if req.OrderID != "" {
		ref = domain.OrderRef(req.OrderID)
	}

	txn, err := h.walletSvc.Deposit(c.Request.Context(), merchantID, req.Amount, ref)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(txn))
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	balance, currency, err := h.walletSvc.GetBalance(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		Available: balance.Available,
		Reserved:  balance.Reserved,
		Total:     balance.Total,
		Currency:  currency,
	})
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params, err := parseListParams(c, merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, total, err := h.txRepo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	totalPages := int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	})
}

// WaiveFee handles POST /api/v1/wallet/fees/:id/waive.
func (h *WalletHandler) WaiveFee(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	feeTxID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid transaction id"))
		return
	}

	refund, err := h.walletSvc.WaiveFee(c.Request.Context(), merchantID, feeTxID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(refund))
}

// Statement handles GET /api/v1/wallet/statement.
func (h *WalletHandler) Statement(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	from, to, err := parsePeriod(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.reconSvc.Statement(c.Request.Context(), merchantID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, report)
}

// FeeSummary handles GET /api/v1/wallet/fees/summary.
func (h *WalletHandler) FeeSummary(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	from, to, err := parsePeriod(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.reconSvc.FeeSummary(c.Request.Context(), merchantID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}

	byType := make(map[string]int64, len(summary.ByType))
	for feeType, total := range summary.ByType {
		byType[string(feeType)] = total
	}
	response.OK(c, dto.FeeSummaryResponse{
		TotalCharged: summary.TotalCharged,
		TotalWaived:  summary.TotalWaived,
		ByType:       byType,
	})
}

// PendingFees handles GET /api/v1/wallet/fees/pending.
func (h *WalletHandler) PendingFees(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	pending, err := h.reconSvc.PendingFees(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(pending))
	for i := range pending {
		items = append(items, toTransactionResponse(&pending[i]))
	}
	response.OK(c, items)
}

// Reconcile handles POST /api/v1/wallet/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	records := make([]domain.ExternalRecord, 0, len(req.Records))
	for _, r := range req.Records {
		records = append(records, domain.ExternalRecord{ID: r.ID, Amount: r.Amount, Date: r.Date})
	}

	tol := domain.DefaultTolerance()
	if req.Tolerance != nil {
		tol = domain.Tolerance{Amount: req.Tolerance.Amount, DateDays: req.Tolerance.DateDays}
	}

	report, err := h.reconSvc.Reconcile(c.Request.Context(), merchantID, req.From, req.To, records, tol)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, report)
}

func parseListParams(c *gin.Context, merchantID uuid.UUID) (ports.TransactionListParams, error) {
	params := ports.TransactionListParams{
		MerchantID: merchantID,
		Page:       intQuery(c, "page", 1),
		PageSize:   intQuery(c, "page_size", 20),
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	if t := c.Query("type"); t != "" {
		txnType := domain.TransactionType(t)
		params.Type = &txnType
	}
	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if f := c.Query("from"); f != "" {
		from, err := time.Parse(time.RFC3339, f)
		if err != nil {
			return params, apperror.Validation("invalid from date, expected RFC3339")
		}
		params.From = &from
	}
	if t := c.Query("to"); t != "" {
		to, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return params, apperror.Validation("invalid to date, expected RFC3339")
		}
		params.To = &to
	}
	return params, nil
}

func parsePeriod(c *gin.Context) (time.Time, time.Time, error) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("invalid from date, expected RFC3339")
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, apperror.Validation("invalid to date, expected RFC3339")
	}
	return from, to, nil
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
