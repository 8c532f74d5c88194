package meter

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default safety and pricing limits.
const (
	DefaultConsumptionLimit      = 1000.0
	DefaultBasicConsumptionLimit = 200.0
	DefaultConsumptionSpike      = 50.0
	DefaultExtraConsumptionPrice = "0.5"
	DefaultDebtPeriods           = 5
	DefaultCurrency              = "RM"
)

// Limits holds the thresholds a meter enforces and the overage price.
type Limits struct {
	// ConsumptionLimit is the period ceiling above which the meter is cut off until reactivated.
	ConsumptionLimit float64
	// BasicConsumptionLimit is the threshold above which extra consumption is priced.
	BasicConsumptionLimit float64
	// ConsumptionSpike is the single-reading size that triggers a temporary disable.
	ConsumptionSpike float64
	// ExtraConsumptionPrice is charged per kWh above the basic limit.
	ExtraConsumptionPrice decimal.Decimal
	// DebtPeriods is how many consecutive debt settlements switch a meter to PrePaid.
	DebtPeriods int
	// SpikeCooldown is how long a spike keeps the meter disabled. Zero re-enables immediately.
	SpikeCooldown time.Duration
	// Currency is appended to balances in human readable output.
	Currency string
}

// DefaultLimits returns the stock building limits.
func DefaultLimits() Limits {
	return Limits{
		ConsumptionLimit:      DefaultConsumptionLimit,
		BasicConsumptionLimit: DefaultBasicConsumptionLimit,
		ConsumptionSpike:      DefaultConsumptionSpike,
		ExtraConsumptionPrice: decimal.RequireFromString(DefaultExtraConsumptionPrice),
		DebtPeriods:           DefaultDebtPeriods,
		Currency:              DefaultCurrency,
	}
}

// WithDefaults fills unset fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	def := DefaultLimits()
	if l.ConsumptionLimit <= 0 {
		l.ConsumptionLimit = def.ConsumptionLimit
	}
	if l.BasicConsumptionLimit <= 0 {
		l.BasicConsumptionLimit = def.BasicConsumptionLimit
	}
	if l.ConsumptionSpike <= 0 {
		l.ConsumptionSpike = def.ConsumptionSpike
	}
	if l.ExtraConsumptionPrice.IsZero() {
		l.ExtraConsumptionPrice = def.ExtraConsumptionPrice
	}
	if l.DebtPeriods <= 0 {
		l.DebtPeriods = def.DebtPeriods
	}
	if l.SpikeCooldown < 0 {
		l.SpikeCooldown = 0
	}
	if l.Currency == "" {
		l.Currency = def.Currency
	}
	return l
}
