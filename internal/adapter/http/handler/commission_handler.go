package handler

import (
	"affiliate-ledger/internal/adapter/http/dto"
	"affiliate-ledger/internal/adapter/http/middleware"
	"affiliate-ledger/internal/core/ports"
	"affiliate-ledger/pkg/apperror"
	"affiliate-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CommissionHandler handles commission lifecycle endpoints.
type CommissionHandler struct {
	commissionSvc ports.CommissionService
}

// NewCommissionHandler creates a new CommissionHandler.
func NewCommissionHandler(commissionSvc ports.CommissionService) *CommissionHandler {
	return &CommissionHandler{commissionSvc: commissionSvc}
}

// Create handles POST /api/v1/commissions.
func (h *CommissionHandler) Create(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	affiliateID, err := uuid.Parse(req.AffiliateID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid affiliate id"))
		return
	}

	reserve := true
	if req.ReserveFunds != nil {
		reserve = *req.ReserveFunds
	}

	commission, err := h.commissionSvc.Create(c.Request.Context(), ports.CreateCommissionRequest{
		MerchantID:   merchantID,
		AffiliateID:  affiliateID,
		OrderID:      req.OrderID,
		Amount:       req.Amount,
		ReserveFunds: reserve,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toCommissionResponse(commission))
}

// Approve handles POST /api/v1/commissions/:id/approve.
func (h *CommissionHandler) Approve(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	commissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid commission id"))
		return
	}

	commission, err := h.commissionSvc.Approve(c.Request.Context(), merchantID, commissionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCommissionResponse(commission))
}

// Cancel handles POST /api/v1/commissions/:id/cancel.
func (h *CommissionHandler) Cancel(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	commissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid commission id"))
		return
	}

	var req dto.CancelCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	commission, err := h.commissionSvc.Cancel(c.Request.Context(), merchantID, commissionID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCommissionResponse(commission))
}

// Get handles GET /api/v1/commissions/:id.
func (h *CommissionHandler) Get(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	commissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid commission id"))
		return
	}

	commission, err := h.commissionSvc.Get(c.Request.Context(), merchantID, commissionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toCommissionResponse(commission))
}
