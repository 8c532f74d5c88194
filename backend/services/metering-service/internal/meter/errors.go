package meter

import "errors"

var (
	// ErrMeterDisabled is reported when consumption hits an inactive meter.
	ErrMeterDisabled = errors.New("meter: disabled meter")
	// ErrInsufficientFunds is reported by PrePaid when a debit leaves the balance negative.
	ErrInsufficientFunds = errors.New("meter: insufficient funds")
	// ErrInvalidAmount is reported for negative, NaN or infinite consumption.
	ErrInvalidAmount = errors.New("meter: invalid consumption amount")
	// ErrOffLimit is reported when a consumption was recorded but left the meter disabled.
	ErrOffLimit = errors.New("meter: off limit consumption")
	// ErrCoolingDown is reported when a consumption was recorded but a spike cooldown is pending.
	ErrCoolingDown = errors.New("meter: consumption spike cooldown")
	// ErrUnknownPolicy is returned by PolicyByName.
	ErrUnknownPolicy = errors.New("meter: unknown billing policy")
)
