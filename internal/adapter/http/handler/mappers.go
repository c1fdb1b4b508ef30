package handler

import (
	"time"

	"affiliate-ledger/internal/adapter/http/dto"
	"affiliate-ledger/internal/core/domain"
)

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:     t.ID.String(),
		Type:   string(t.Type),
		Amount: t.Amount,
		Status: string(t.Status),
		BalanceBefore: dto.BalanceSnapshot{
			Available: t.BalanceBefore.Available,
			Reserved:  t.BalanceBefore.Reserved,
			Total:     t.BalanceBefore.Total,
		},
		BalanceAfter: dto.BalanceSnapshot{
			Available: t.BalanceAfter.Available,
			Reserved:  t.BalanceAfter.Reserved,
			Total:     t.BalanceAfter.Total,
		},
		Reference: dto.ReferenceResponse{
			Kind:       string(t.Reference.Kind),
			ID:         t.Reference.ID,
			ExternalID: t.Reference.ExternalID,
		},
		Description: t.Description,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.Fee != nil {
		resp.Fee = &dto.FeeResponse{
			Type:   string(t.Fee.Type),
			Status: string(t.Fee.Status),
			Method: string(t.Fee.Calculation.Method),
			Rate:   t.Fee.Calculation.Rate,
			Base:   t.Fee.Calculation.Base,
			Result: t.Fee.Calculation.Result,
		}
	}
	return resp
}

func toCommissionResponse(cm *domain.Commission) dto.CommissionResponse {
	resp := dto.CommissionResponse{
		ID:          cm.ID.String(),
		MerchantID:  cm.MerchantID.String(),
		AffiliateID: cm.AffiliateID.String(),
		OrderID:     cm.OrderID,
		Amount:      cm.Amount,
		Status:      string(cm.Status),
		Reserved:    cm.Reserved,
		CreatedAt:   cm.CreatedAt.Format(time.RFC3339),
	}
	if cm.ApprovedAt != nil {
		approved := cm.ApprovedAt.Format(time.RFC3339)
		resp.ApprovedAt = &approved
	}
	return resp
}

func toPayoutResponse(p *domain.Payout) dto.PayoutResponse {
	resp := dto.PayoutResponse{
		ID:                 p.ID.String(),
		MerchantID:         p.MerchantID.String(),
		AffiliateID:        p.AffiliateID.String(),
		Amount:             p.Amount,
		Currency:           p.Currency,
		Status:             string(p.Status),
		Destination:        p.Destination,
		ExternalTransferID: p.ExternalTransferID,
		FailureReason:      p.FailureReason,
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
	if p.CompletedAt != nil {
		completed := p.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}
