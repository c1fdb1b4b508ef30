package handler

import (
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

// WebhookHandler handles merchant webhook endpoint registration.
type WebhookHandler struct {
	endpointRepo ports.WebhookEndpointRepository
	encSvc       ports.EncryptionService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(endpointRepo ports.WebhookEndpointRepository, encSvc ports.EncryptionService) *WebhookHandler {
	return &WebhookHandler{
		endpointRepo: endpointRepo,
		encSvc:       encSvc,
	}
}

// Register handles POST /api/v1/webhooks. The signing secret is encrypted
// before it touches storage and never returned.
func (h *WebhookHandler) Register(c *gin.Context) {
	merchantID, ok := middleware.MerchantID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RegisterWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	secretEnc, err := h.encSvc.Encrypt(req.Secret)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	now := time.Now().UTC()
	endpoint := &domain.WebhookEndpoint{
		ID:         uuid.New(),
		MerchantID: merchantID,
		URL:        req.URL,
		SecretEnc:  secretEnc,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.endpointRepo.Create(c.Request.Context(), endpoint); err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	response.Created(c, dto.WebhookEndpointResponse{
		ID:        endpoint.ID.String(),
		URL:       endpoint.URL,
		Active:    endpoint.Active,
		CreatedAt: endpoint.CreatedAt.Format(time.RFC3339),
	})
}
