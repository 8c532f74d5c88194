package meter

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record is one monthly settlement. Balance is the pre-settlement balance
// when it was negative, zero otherwise.
type Record struct {
	ID          uuid.UUID       `json:"id"`
	Period      string          `json:"period"`
	Consumption float64         `json:"consumption_kwh"`
	Balance     decimal.Decimal `json:"balance"`
	SettledAt   time.Time       `json:"settled_at"`
}

// InDebt reports whether the record captured an amount owed.
func (r Record) InDebt() bool {
	return r.Balance.IsNegative()
}

func (r Record) String() string {
	return fmt.Sprintf("MeterRecord[Date=%s, consumption=%s, balance=%s]", r.Period, formatKWh(r.Consumption), r.Balance.String())
}

// PeriodLabel formats t as the month label used for settlements, e.g. 1/2025.
func PeriodLabel(t time.Time) string {
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Year())
}
