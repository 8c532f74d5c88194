package meter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notifier receives the informational and warning events a meter emits.
type Notifier interface {
	Log(message string)
	Warning(message string)
}

// Config seeds a new meter.
type Config struct {
	Policy      Policy
	Consumption float64
	Balance     decimal.Decimal
	Limits      Limits
	Clock       func() time.Time
	// OnReenable runs after a spike cooldown expires and the meter is back on.
	// It is called without the meter lock held.
	OnReenable func()
}

// Meter is a single apartment sub-meter. All methods are safe for concurrent use;
// operations on one meter are serialized.
type Meter struct {
	mu          sync.Mutex
	id          string
	consumption float64
	balance     decimal.Decimal
	active      bool
	policy      Policy
	history     []Record
	limits      Limits
	notifier    Notifier
	now         func() time.Time
	onReenable  func()

	cooldown    *time.Timer
	cooldownGen uint64
}

// New builds an active meter reporting to notifier.
func New(id string, notifier Notifier, cfg Config) *Meter {
	if cfg.Policy == nil {
		cfg.Policy = PostPaid{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Consumption < 0 {
		cfg.Consumption = 0
	}
	return &Meter{
		id:          id,
		consumption: cfg.Consumption,
		balance:     cfg.Balance,
		active:      true,
		policy:      cfg.Policy,
		limits:      cfg.Limits.WithDefaults(),
		notifier:    notifier,
		now:         cfg.Clock,
		onReenable:  cfg.OnReenable,
	}
}

// ID returns the apartment identifier.
func (m *Meter) ID() string {
	return m.id
}

// Consume records amount kWh against the current period.
func (m *Meter) Consume(amount float64) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return Outcome{Failure: FailureMeterDisabled}
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Outcome{Active: true, Failure: FailureInvalidAmount}
	}

	if amount > m.limits.ConsumptionSpike {
		m.notifier.Warning(fmt.Sprintf("Individual meter %s was interrupted for the consumption of %s kWh", m.id, formatKWh(amount)))
		m.temporaryDisable()
	}

	m.setConsumption(m.consumption + amount)
	if m.consumption > m.limits.BasicConsumptionLimit {
		if err := m.policy.HandleExtraConsumption(ledger{m}, amount, m.limits.ExtraConsumptionPrice); err != nil {
			return Outcome{Active: m.active, Failure: failureOf(err)}
		}
	}

	if !m.active {
		if m.cooldown != nil {
			return Outcome{Failure: FailureCoolingDown}
		}
		return Outcome{Failure: FailureOffLimit}
	}
	return Outcome{Accepted: true, Active: true}
}

func failureOf(err error) Failure {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return FailureInsufficientFunds
	case errors.Is(err, ErrMeterDisabled):
		return FailureMeterDisabled
	default:
		return FailureOffLimit
	}
}

func (m *Meter) setConsumption(consumption float64) {
	if consumption > m.limits.ConsumptionLimit {
		m.active = false
		m.stopCooldown()
		m.notifier.Warning(fmt.Sprintf("Individual meter %s was disabled for exceeding the consumption limit", m.id))
	}
	m.consumption = consumption
}

func (m *Meter) temporaryDisable() {
	m.active = false
	m.notifier.Warning("Meter disabled due to consumption spike")
	m.stopCooldown()
	if m.limits.SpikeCooldown <= 0 {
		m.active = true
		m.notifier.Warning("Meter enabled")
		return
	}
	gen := m.cooldownGen
	m.cooldown = time.AfterFunc(m.limits.SpikeCooldown, func() { m.endCooldown(gen) })
}

func (m *Meter) endCooldown(gen uint64) {
	m.mu.Lock()
	if m.cooldown == nil || gen != m.cooldownGen {
		m.mu.Unlock()
		return
	}
	m.cooldown = nil
	m.active = true
	m.notifier.Warning("Meter enabled")
	m.mu.Unlock()

	if m.onReenable != nil {
		m.onReenable()
	}
}

// stopCooldown cancels a pending re-enable. Callers hold m.mu.
func (m *Meter) stopCooldown() {
	m.cooldownGen++
	if m.cooldown != nil {
		m.cooldown.Stop()
		m.cooldown = nil
	}
}

// CoolingDown reports whether a spike re-enable is pending.
func (m *Meter) CoolingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cooldown != nil
}

// TopUp credits the balance.
func (m *Meter) TopUp(amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = m.balance.Add(amount)
	m.notifier.Log(fmt.Sprintf("Individual meter %s was topped up with %s and the balance is now %s", m.id, amount.String(), m.balance.String()))
}

// Debit charges the balance without logging.
func (m *Meter) Debit(amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance = m.balance.Sub(amount)
}

// MonthlyPayment closes the current period: it records the settlement,
// resets consumption and applies the debt downgrade rule.
func (m *Meter) MonthlyPayment(period string) Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := Record{
		ID:          uuid.New(),
		Period:      period,
		Consumption: m.consumption,
		Balance:     decimal.Min(m.balance, decimal.Zero),
		SettledAt:   m.now().UTC(),
	}
	m.history = append([]Record{rec}, m.history...)
	m.notifier.Log(fmt.Sprintf("Individual meter %s was reset for the month %s with a balance of %s and a consumption of %s",
		m.id, period, m.toPay(), formatKWh(m.consumption)))
	m.consumption = 0

	if m.balance.IsNegative() && m.inDebtStreak() && m.policy.Name() != PrePaidName {
		m.policy = PrePaid{}
		m.notifier.Warning(fmt.Sprintf("Individual meter %s switched to %s after %d periods in debt", m.id, PrePaidName, m.limits.DebtPeriods))
	}
	return rec
}

// inDebtStreak reports whether the last DebtPeriods settlements all recorded debt.
func (m *Meter) inDebtStreak() bool {
	if len(m.history) < m.limits.DebtPeriods {
		return false
	}
	for _, rec := range m.history[:m.limits.DebtPeriods] {
		if !rec.InDebt() {
			return false
		}
	}
	return true
}

// Reset zeroes consumption and balance and rebinds PostPaid. History is kept.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumption = 0
	m.balance = decimal.Zero
	m.policy = PostPaid{}
}

// SetActive flips the active flag directly, cancelling any spike cooldown.
func (m *Meter) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCooldown()
	m.active = active
}

// SetPolicy rebinds the billing policy.
func (m *Meter) SetPolicy(p Policy) {
	if p == nil {
		p = PostPaid{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
}

// Consumption returns the kWh recorded in the open period.
func (m *Meter) Consumption() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumption
}

// Balance returns the signed balance; negative means money is owed.
func (m *Meter) Balance() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance
}

// Active reports whether the meter accepts consumption.
func (m *Meter) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Policy returns the bound billing policy.
func (m *Meter) Policy() Policy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// History returns settlements most recent first.
func (m *Meter) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.history))
	copy(out, m.history)
	return out
}

// Snapshot is a consistent copy of a meter's state.
type Snapshot struct {
	ID          string          `json:"id"`
	Consumption float64         `json:"consumption_kwh"`
	Balance     decimal.Decimal `json:"balance"`
	Active      bool            `json:"active"`
	Policy      string          `json:"policy"`
	ToPay       string          `json:"to_pay"`
	History     []Record        `json:"history"`
}

// Snapshot captures the meter state under a single lock.
func (m *Meter) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]Record, len(m.history))
	copy(history, m.history)
	return Snapshot{
		ID:          m.id,
		Consumption: m.consumption,
		Balance:     m.balance,
		Active:      m.active,
		Policy:      m.policy.Name(),
		ToPay:       m.toPay(),
		History:     history,
	}
}

// ToPay describes the balance as an amount owed or left.
func (m *Meter) ToPay() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toPay()
}

func (m *Meter) toPay() string {
	if m.balance.IsNegative() {
		return m.balance.Neg().String() + m.limits.Currency + " to pay"
	}
	return m.balance.String() + m.limits.Currency + " left"
}

// String renders the meter for monitoring output.
func (m *Meter) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := "disabled"
	if m.active {
		status = "active"
	}
	return fmt.Sprintf("IndividualMeter{strategy=%s, consumption=%s kWh, status=%s, balance=%s, apartmentNumber='%s'}",
		m.policy.Name(), formatKWh(m.consumption), status, m.toPay(), m.id)
}

// HistoryReport lists the settlements most recent first.
func (m *Meter) HistoryReport() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	fmt.Fprintf(&b, "History of consumption and payments for individual meter %s:\n", m.id)
	for _, rec := range m.history {
		b.WriteString(rec.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// ledger exposes a locked meter to policies without re-acquiring m.mu.
type ledger struct {
	m *Meter
}

func (l ledger) ID() string                   { return l.m.id }
func (l ledger) Balance() decimal.Decimal     { return l.m.balance }
func (l ledger) Debit(amount decimal.Decimal) { l.m.balance = l.m.balance.Sub(amount) }
func (l ledger) Warning(message string)       { l.m.notifier.Warning(message) }

func (l ledger) Deactivate() {
	l.m.stopCooldown()
	l.m.active = false
}

func formatKWh(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
