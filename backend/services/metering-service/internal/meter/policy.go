package meter

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy names.
const (
	PostPaidName = "PostPaid"
	PrePaidName  = "PrePaid"
)

// Account is the view of a meter a billing policy may act on.
type Account interface {
	ID() string
	Balance() decimal.Decimal
	Debit(amount decimal.Decimal)
	Deactivate()
	Warning(message string)
}

// Policy prices consumption that lands above the basic limit.
type Policy interface {
	Name() string
	// HandleExtraConsumption is called with the amount added by the call that
	// landed above the basic limit, not the cumulative overage.
	HandleExtraConsumption(acct Account, extra float64, price decimal.Decimal) error
}

// PostPaid lets the balance go negative; debt is collected at settlement.
type PostPaid struct{}

// Name implements Policy.
func (PostPaid) Name() string { return PostPaidName }

// HandleExtraConsumption implements Policy.
func (PostPaid) HandleExtraConsumption(acct Account, extra float64, price decimal.Decimal) error {
	acct.Debit(extraCharge(extra, price))
	return nil
}

// PrePaid cuts the meter off as soon as a debit leaves it without credit.
type PrePaid struct{}

// Name implements Policy.
func (PrePaid) Name() string { return PrePaidName }

// HandleExtraConsumption implements Policy.
func (PrePaid) HandleExtraConsumption(acct Account, extra float64, price decimal.Decimal) error {
	acct.Debit(extraCharge(extra, price))
	if acct.Balance().IsNegative() {
		acct.Deactivate()
		acct.Warning(fmt.Sprintf("Meter %s is deactivated due to insufficient funds", acct.ID()))
		return ErrInsufficientFunds
	}
	return nil
}

func extraCharge(extra float64, price decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(extra).Mul(price)
}

// PolicyByName resolves a policy from configuration or request input.
func PolicyByName(name string) (Policy, error) {
	normalized := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.TrimSpace(name)))
	switch normalized {
	case "", "postpaid":
		return PostPaid{}, nil
	case "prepaid":
		return PrePaid{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
}
