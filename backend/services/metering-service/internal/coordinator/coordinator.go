package coordinator

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"submeter/backend/services/metering-service/internal/meter"
)

var (
	// ErrUnknownMeter is returned for identifiers missing from the registry.
	ErrUnknownMeter = errors.New("coordinator: unknown meter")
	// ErrMeterExists is returned when adding an identifier that is already registered.
	ErrMeterExists = errors.New("coordinator: meter already exists")
	// ErrEmptyID is returned when adding a meter without identifier.
	ErrEmptyID = errors.New("coordinator: meter id is required")
)

// Registry stores meters by apartment identifier.
type Registry interface {
	Get(id string) (*meter.Meter, bool)
	Put(id string, m *meter.Meter)
	Remove(id string) bool
	All() []*meter.Meter
}

// Sink accepts log and warning events. Implementations must not fail back into the caller.
type Sink interface {
	Log(message string)
	Warning(message string)
}

// SettlementJournal receives every settlement made through the coordinator.
type SettlementJournal interface {
	Settled(meterID string, rec meter.Record)
}

// SnapshotPublisher mirrors meter state after coordinator-driven changes.
type SnapshotPublisher interface {
	Publish(snap meter.Snapshot)
	Forget(meterID string)
}

// Coordinator owns the building's meters and relays their events to the sink.
type Coordinator struct {
	mu        sync.Mutex
	registry  Registry
	sink      Sink
	limits    meter.Limits
	journal   SettlementJournal
	publisher SnapshotPublisher
	clock     func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLimits sets the limits applied to meters created afterwards.
func WithLimits(l meter.Limits) Option {
	return func(c *Coordinator) { c.limits = l.WithDefaults() }
}

// WithJournal records settlements.
func WithJournal(j SettlementJournal) Option {
	return func(c *Coordinator) { c.journal = j }
}

// WithPublisher mirrors snapshots.
func WithPublisher(p SnapshotPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithClock overrides the settlement clock.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// New builds a coordinator over registry that reports to sink.
func New(registry Registry, sink Sink, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		sink:     sink,
		limits:   meter.DefaultLimits(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MeterOption seeds a meter created by AddMeter.
type MeterOption func(*meter.Config)

// WithPolicy binds the initial billing policy.
func WithPolicy(p meter.Policy) MeterOption {
	return func(cfg *meter.Config) { cfg.Policy = p }
}

// WithConsumption sets the initial period consumption.
func WithConsumption(kwh float64) MeterOption {
	return func(cfg *meter.Config) { cfg.Consumption = kwh }
}

// WithBalance sets the initial balance.
func WithBalance(balance decimal.Decimal) MeterOption {
	return func(cfg *meter.Config) { cfg.Balance = balance }
}

// AddMeter creates and registers a meter, PostPaid with zero consumption and balance by default.
func (c *Coordinator) AddMeter(id string, opts ...MeterOption) (*Handle, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrEmptyID
	}

	cfg := meter.Config{Limits: c.limits, Clock: c.clock}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	if _, exists := c.registry.Get(id); exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMeterExists, id)
	}
	var m *meter.Meter
	cfg.OnReenable = func() { c.publish(m) }
	m = meter.New(id, c, cfg)
	c.registry.Put(id, m)
	c.mu.Unlock()

	c.Log("Meter for apartment " + id + " added")
	c.publish(m)
	return &Handle{meter: m, coord: c}, nil
}

// GetMeter returns the registered meter.
func (c *Coordinator) GetMeter(id string) (*meter.Meter, error) {
	m, ok := c.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMeter, id)
	}
	return m, nil
}

// Handle returns the tenant facade for a registered meter.
func (c *Coordinator) Handle(id string) (*Handle, error) {
	m, err := c.GetMeter(id)
	if err != nil {
		return nil, err
	}
	return &Handle{meter: m, coord: c}, nil
}

// ActivateMeter turns a meter on, bypassing billing rules.
func (c *Coordinator) ActivateMeter(id string) error {
	return c.setActive(id, true, "activated")
}

// DeactivateMeter turns a meter off, bypassing billing rules.
func (c *Coordinator) DeactivateMeter(id string) error {
	return c.setActive(id, false, "deactivated")
}

func (c *Coordinator) setActive(id string, active bool, verb string) error {
	m, err := c.GetMeter(id)
	if err != nil {
		return err
	}
	m.SetActive(active)
	c.Log("Meter for apartment " + id + " " + verb)
	c.publish(m)
	return nil
}

// RemoveMeter unregisters a meter.
func (c *Coordinator) RemoveMeter(id string) error {
	c.mu.Lock()
	removed := c.registry.Remove(id)
	c.mu.Unlock()
	if !removed {
		return fmt.Errorf("%w: %s", ErrUnknownMeter, id)
	}
	c.Log("Meter for apartment " + id + " removed")
	if c.publisher != nil {
		c.publisher.Forget(id)
	}
	return nil
}

// ChangeStrategy rebinds a meter's billing policy.
func (c *Coordinator) ChangeStrategy(id string, p meter.Policy) error {
	m, err := c.GetMeter(id)
	if err != nil {
		return err
	}
	m.SetPolicy(p)
	c.Log("Strategy for apartment " + id + " changed")
	c.publish(m)
	return nil
}

// ResetMeter fully resets one meter, keeping its history.
func (c *Coordinator) ResetMeter(id string) error {
	m, err := c.GetMeter(id)
	if err != nil {
		return err
	}
	m.Reset()
	c.Log("Meter for apartment " + id + " reset")
	c.publish(m)
	return nil
}

// ResetAll resets every meter. It is best effort: a failure does not stop
// or roll back the others, and all failures are returned joined.
func (c *Coordinator) ResetAll() error {
	var errs []error
	for _, m := range c.registry.All() {
		if err := c.ResetMeter(m.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear drops every meter from the registry.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	for _, m := range c.registry.All() {
		c.registry.Remove(m.ID())
		if c.publisher != nil {
			c.publisher.Forget(m.ID())
		}
	}
	c.mu.Unlock()
	c.Log("Main meter reset")
}

// Settle closes the current period of one meter.
func (c *Coordinator) Settle(id, period string) (meter.Record, error) {
	m, err := c.GetMeter(id)
	if err != nil {
		return meter.Record{}, err
	}
	return c.settle(m, period), nil
}

// SettleAll closes the current period of every meter.
func (c *Coordinator) SettleAll(period string) []meter.Record {
	meters := c.registry.All()
	records := make([]meter.Record, 0, len(meters))
	for _, m := range meters {
		records = append(records, c.settle(m, period))
	}
	return records
}

func (c *Coordinator) settle(m *meter.Meter, period string) meter.Record {
	rec := m.MonthlyPayment(period)
	if c.journal != nil {
		c.journal.Settled(m.ID(), rec)
	}
	c.publish(m)
	return rec
}

// TotalConsumption sums the current-period consumption of all meters.
func (c *Coordinator) TotalConsumption() float64 {
	total := 0.0
	for _, m := range c.registry.All() {
		total += m.Consumption()
	}
	return total
}

// Meters returns snapshots of every meter ordered by identifier.
func (c *Coordinator) Meters() []meter.Snapshot {
	meters := c.registry.All()
	snaps := make([]meter.Snapshot, 0, len(meters))
	for _, m := range meters {
		snaps = append(snaps, m.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// MonitorMeters logs every meter followed by the building total.
func (c *Coordinator) MonitorMeters() {
	meters := c.registry.All()
	sort.Slice(meters, func(i, j int) bool { return meters[i].ID() < meters[j].ID() })
	for _, m := range meters {
		c.Log(m.String())
	}
	c.Log("total consumption: " + strconv.FormatFloat(c.TotalConsumption(), 'f', -1, 64) + " kWh")
}

// MonitorMeterHistory logs the settlement history of one meter.
func (c *Coordinator) MonitorMeterHistory(id string) error {
	m, err := c.GetMeter(id)
	if err != nil {
		return err
	}
	c.Log(m.HistoryReport())
	return nil
}

// Log implements meter.Notifier.
func (c *Coordinator) Log(message string) {
	c.sink.Log(message)
}

// Warning implements meter.Notifier.
func (c *Coordinator) Warning(message string) {
	c.sink.Warning(message)
}

func (c *Coordinator) publish(m *meter.Meter) {
	if c.publisher != nil {
		c.publisher.Publish(m.Snapshot())
	}
}
