package meter

// Failure classifies why a consumption was not fully accepted.
type Failure int

const (
	FailureNone Failure = iota
	FailureMeterDisabled
	FailureInsufficientFunds
	FailureInvalidAmount
	// FailureOffLimit means the amount was recorded but the ceiling cutout disabled the meter.
	FailureOffLimit
	// FailureCoolingDown means the amount was recorded but a spike put the meter
	// in a timed cooldown; it comes back on by itself.
	FailureCoolingDown
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureMeterDisabled:
		return "disabled meter"
	case FailureInsufficientFunds:
		return "insufficient funds"
	case FailureInvalidAmount:
		return "invalid amount"
	case FailureOffLimit:
		return "off limit consumption"
	case FailureCoolingDown:
		return "consumption spike cooldown"
	default:
		return "unknown"
	}
}

// MarshalText renders the failure by name in JSON payloads.
func (f Failure) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Err maps the failure onto the package sentinel errors.
func (f Failure) Err() error {
	switch f {
	case FailureMeterDisabled:
		return ErrMeterDisabled
	case FailureInsufficientFunds:
		return ErrInsufficientFunds
	case FailureInvalidAmount:
		return ErrInvalidAmount
	case FailureOffLimit:
		return ErrOffLimit
	case FailureCoolingDown:
		return ErrCoolingDown
	default:
		return nil
	}
}

// Outcome is the result of a Consume call.
type Outcome struct {
	Accepted bool    `json:"accepted"`
	Active   bool    `json:"active"`
	Failure  Failure `json:"failure"`
}

// Err returns nil for an accepted consumption.
func (o Outcome) Err() error {
	return o.Failure.Err()
}
