package service

import (
	"fmt"

	"affiliate-ledger/internal/core/domain"
	"affiliate-ledger/pkg/apperror"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// FeeCalculator derives fee amounts from a per-type schedule. It is pure
// arithmetic over minor units; rates are exact decimals, results rounded
// half-up to the nearest minor unit.
type FeeCalculator struct {
	schedule map[domain.FeeType]domain.FeeConfig
}

// NewFeeCalculator creates a calculator over the given schedule.
func NewFeeCalculator(schedule map[domain.FeeType]domain.FeeConfig) *FeeCalculator {
	return &FeeCalculator{schedule: schedule}
}

// Calculate computes the fee for base minor units under the config registered
// for feeType. An unknown fee type or negative base is a validation error.
func (c *FeeCalculator) Calculate(feeType domain.FeeType, base int64) (domain.FeeCalculation, error) {
	cfg, ok := c.schedule[feeType]
	if !ok {
		return domain.FeeCalculation{}, apperror.Validation(fmt.Sprintf("no fee schedule for type %q", feeType))
	}
	return CalculateFee(cfg, base)
}

// CalculateFee applies one fee config to a base amount.
func CalculateFee(cfg domain.FeeConfig, base int64) (domain.FeeCalculation, error) {
	if base < 0 {
		return domain.FeeCalculation{}, apperror.ErrInvalidAmount()
	}

	switch cfg.Method {
	case domain.FeeMethodPercentage:
		return percentageFee(cfg.Rate, base), nil

	case domain.FeeMethodFixed:
		if cfg.Amount < 0 {
			return domain.FeeCalculation{}, apperror.Validation("fixed fee amount must not be negative")
		}
		return domain.FeeCalculation{
			Method: domain.FeeMethodFixed,
			Base:   base,
			Result: cfg.Amount,
		}, nil

	case domain.FeeMethodTiered:
		for _, tier := range cfg.Tiers {
			if tier.Contains(base) {
				calc := percentageFee(tier.Rate, base)
				calc.Method = domain.FeeMethodTiered
				return calc, nil
			}
		}
		// No covering tier means no fee; callers skip zero-result charges.
		return domain.FeeCalculation{
			Method: domain.FeeMethodTiered,
			Base:   base,
			Result: 0,
		}, nil

	default:
		return domain.FeeCalculation{}, apperror.Validation(fmt.Sprintf("unknown fee method %q", cfg.Method))
	}
}

// percentageFee computes round(base * rate / 100) in exact decimal arithmetic.
func percentageFee(rate decimal.Decimal, base int64) domain.FeeCalculation {
	result := decimal.NewFromInt(base).Mul(rate).Div(oneHundred).Round(0).IntPart()
	return domain.FeeCalculation{
		Method: domain.FeeMethodPercentage,
		Rate:   rate.String(),
		Base:   base,
		Result: result,
	}
}
