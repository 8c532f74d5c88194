package coordinator

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"submeter/backend/services/metering-service/internal/meter"
)

// Handle is the tenant-facing side of one meter. Consumption failures are
// absorbed here and reported to the sink instead of propagating.
type Handle struct {
	meter *meter.Meter
	coord *Coordinator
}

// ID returns the apartment identifier.
func (h *Handle) ID() string {
	return h.meter.ID()
}

// Meter exposes the underlying meter.
func (h *Handle) Meter() *meter.Meter {
	return h.meter
}

// Consume records consumption and logs whether it went through.
func (h *Handle) Consume(amount float64) meter.Outcome {
	out := h.meter.Consume(amount)
	if out.Accepted {
		h.coord.Log("Consumption successful")
	} else {
		h.coord.Log("Consumption interrupted due to " + out.Failure.String())
	}
	h.coord.publish(h.meter)
	return out
}

// TopUp credits the meter.
func (h *Handle) TopUp(amount decimal.Decimal) {
	h.meter.TopUp(amount)
	h.coord.publish(h.meter)
}

// Balance returns the current balance.
func (h *Handle) Balance() decimal.Decimal {
	return h.meter.Balance()
}

// Settle closes the current period under an explicit label.
func (h *Handle) Settle(period string) meter.Record {
	return h.coord.settle(h.meter, period)
}

// PayBill credits amount when positive and settles the month of now.
func (h *Handle) PayBill(amount decimal.Decimal, now time.Time) meter.Record {
	if amount.IsPositive() {
		h.TopUp(amount)
	}
	return h.Settle(meter.PeriodLabel(now))
}

func (h *Handle) String() string {
	snap := h.meter.Snapshot()
	return "Meter for apartment " + snap.ID + " {balance=" + snap.ToPay + ", current consumption=" +
		strconv.FormatFloat(snap.Consumption, 'f', -1, 64) + "KWh}"
}
