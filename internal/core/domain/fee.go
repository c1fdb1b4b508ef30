package domain

import "github.com/shopspring/decimal"

// FeeType names the platform charge a fee transaction represents.
type FeeType string

const (
	FeeTypeNetwork      FeeType = "network"      // percentage of an approved commission
	FeeTypePayout       FeeType = "payout"       // charged at payout completion
	FeeTypeSubscription FeeType = "subscription" // fixed, periodic platform fee
)

// FeeStatus tracks the lifecycle of a charged fee.
type FeeStatus string

const (
	FeeStatusPending  FeeStatus = "pending"
	FeeStatusCharged  FeeStatus = "charged"
	FeeStatusWaived   FeeStatus = "waived"
	FeeStatusRefunded FeeStatus = "refunded"
)

// FeeMethod names the calculation strategy used to derive a fee amount.
type FeeMethod string

const (
	FeeMethodPercentage FeeMethod = "percentage"
	FeeMethodFixed      FeeMethod = "fixed"
	FeeMethodTiered     FeeMethod = "tiered"
)

// FeeCalculation records a fee derivation for audit: the method, its inputs
// and the result, so any charge can be re-verified without the fee config.
type FeeCalculation struct {
	Method FeeMethod `json:"method"`
	Rate   string    `json:"rate,omitempty"` // percentage rate, decimal string
	Base   int64     `json:"base"`           // amount the fee was derived from
	Result int64     `json:"result"`
}

// FeeDetails is attached to fee-typed transactions only.
type FeeDetails struct {
	Type        FeeType        `json:"type"`
	Status      FeeStatus      `json:"status"`
	Calculation FeeCalculation `json:"calculation"`
}

// FeeTier is one band of a tiered fee schedule. Max nil means unbounded.
type FeeTier struct {
	Min  int64           `json:"min"`
	Max  *int64          `json:"max,omitempty"`
	Rate decimal.Decimal `json:"rate"`
}

// Contains reports whether base falls inside this tier.
func (t FeeTier) Contains(base int64) bool {
	if base < t.Min {
		return false
	}
	return t.Max == nil || base <= *t.Max
}

// FeeConfig describes how one fee kind is computed.
type FeeConfig struct {
	Method FeeMethod       `json:"method"`
	Rate   decimal.Decimal `json:"rate,omitempty"`   // percentage
	Amount int64           `json:"amount,omitempty"` // fixed
	Tiers  []FeeTier       `json:"tiers,omitempty"`  // tiered
}
