package coordinator

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"submeter/backend/services/metering-service/internal/meter"
	"submeter/backend/services/metering-service/internal/registry"
)

type recordingSink struct {
	mu       sync.Mutex
	logs     []string
	warnings []string
}

func (s *recordingSink) Log(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, message)
}

func (s *recordingSink) Warning(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, message)
}

func (s *recordingSink) hasLog(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

type fakeJournal struct {
	settled map[string][]meter.Record
}

func (j *fakeJournal) Settled(meterID string, rec meter.Record) {
	if j.settled == nil {
		j.settled = make(map[string][]meter.Record)
	}
	j.settled[meterID] = append(j.settled[meterID], rec)
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string]meter.Snapshot
	forgotten []string
}

func (p *fakePublisher) Publish(snap meter.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		p.published = make(map[string]meter.Snapshot)
	}
	p.published[snap.ID] = snap
}

func (p *fakePublisher) Forget(meterID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.published, meterID)
	p.forgotten = append(p.forgotten, meterID)
}

func (p *fakePublisher) snapshot(id string) meter.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published[id]
}

func newTestCoordinator(opts ...Option) (*Coordinator, *recordingSink) {
	sink := &recordingSink{}
	return New(registry.NewMemoryRegistry(), sink, opts...), sink
}

func TestAddMeter_Defaults(t *testing.T) {
	c, sink := newTestCoordinator()

	h, err := c.AddMeter("A-15-1")
	require.NoError(t, err)

	m := h.Meter()
	assert.Equal(t, "A-15-1", m.ID())
	assert.Equal(t, meter.PostPaidName, m.Policy().Name())
	assert.Zero(t, m.Consumption())
	assert.True(t, m.Balance().IsZero())
	assert.True(t, m.Active())
	assert.True(t, sink.hasLog("Meter for apartment A-15-1 added"))

	got, err := c.GetMeter("A-15-1")
	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestAddMeter_WithOptions(t *testing.T) {
	c, _ := newTestCoordinator()

	h, err := c.AddMeter("A-420-3", WithPolicy(meter.PrePaid{}), WithConsumption(190), WithBalance(decimal.NewFromInt(10)))
	require.NoError(t, err)

	assert.Equal(t, meter.PrePaidName, h.Meter().Policy().Name())
	assert.Equal(t, 190.0, h.Meter().Consumption())
	assert.True(t, h.Balance().Equal(decimal.NewFromInt(10)))
}

func TestAddMeter_RejectsDuplicatesAndEmptyIDs(t *testing.T) {
	c, _ := newTestCoordinator()
	_, err := c.AddMeter("A-1")
	require.NoError(t, err)

	_, err = c.AddMeter("A-1")
	assert.ErrorIs(t, err, ErrMeterExists)

	_, err = c.AddMeter("  ")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestUnknownMeterFailsFast(t *testing.T) {
	c, _ := newTestCoordinator()

	_, err := c.GetMeter("nope")
	assert.ErrorIs(t, err, ErrUnknownMeter)
	assert.ErrorIs(t, c.ActivateMeter("nope"), ErrUnknownMeter)
	assert.ErrorIs(t, c.DeactivateMeter("nope"), ErrUnknownMeter)
	assert.ErrorIs(t, c.RemoveMeter("nope"), ErrUnknownMeter)
	assert.ErrorIs(t, c.ChangeStrategy("nope", meter.PrePaid{}), ErrUnknownMeter)
	assert.ErrorIs(t, c.ResetMeter("nope"), ErrUnknownMeter)
	assert.ErrorIs(t, c.MonitorMeterHistory("nope"), ErrUnknownMeter)
	_, err = c.Settle("nope", "1/2025")
	assert.ErrorIs(t, err, ErrUnknownMeter)
	_, err = c.Handle("nope")
	assert.ErrorIs(t, err, ErrUnknownMeter)
}

func TestActivateDeactivateBypassPolicy(t *testing.T) {
	c, sink := newTestCoordinator()
	h, _ := c.AddMeter("A-1", WithPolicy(meter.PrePaid{}), WithConsumption(190))
	h.Consume(40)
	require.False(t, h.Meter().Active())

	require.NoError(t, c.ActivateMeter("A-1"))
	assert.True(t, h.Meter().Active())
	assert.True(t, h.Balance().IsNegative(), "activation must not touch the balance")

	require.NoError(t, c.DeactivateMeter("A-1"))
	assert.False(t, h.Meter().Active())
	assert.True(t, sink.hasLog("Meter for apartment A-1 activated"))
	assert.True(t, sink.hasLog("Meter for apartment A-1 deactivated"))
}

func TestChangeStrategyAndRemove(t *testing.T) {
	pub := &fakePublisher{}
	c, _ := newTestCoordinator(WithPublisher(pub))
	_, _ = c.AddMeter("A-1")

	require.NoError(t, c.ChangeStrategy("A-1", meter.PrePaid{}))
	m, _ := c.GetMeter("A-1")
	assert.Equal(t, meter.PrePaidName, m.Policy().Name())
	assert.Equal(t, meter.PrePaidName, pub.published["A-1"].Policy)

	require.NoError(t, c.RemoveMeter("A-1"))
	_, err := c.GetMeter("A-1")
	assert.ErrorIs(t, err, ErrUnknownMeter)
	assert.Equal(t, []string{"A-1"}, pub.forgotten)
}

func TestTotalConsumption(t *testing.T) {
	c, _ := newTestCoordinator()
	assert.Zero(t, c.TotalConsumption())

	a, _ := c.AddMeter("A-1")
	b, _ := c.AddMeter("A-2")
	a.Consume(10)
	b.Consume(30)
	b.Consume(500)

	assert.Equal(t, 540.0, c.TotalConsumption())
}

func TestResetAllKeepsHistory(t *testing.T) {
	c, sink := newTestCoordinator()
	a, _ := c.AddMeter("A-1", WithBalance(decimal.NewFromInt(-5)))
	b, _ := c.AddMeter("A-2", WithPolicy(meter.PrePaid{}))
	a.Consume(20)
	a.Settle("1/2025")
	b.Consume(5)

	require.NoError(t, c.ResetAll())

	for _, h := range []*Handle{a, b} {
		assert.Zero(t, h.Meter().Consumption())
		assert.True(t, h.Balance().IsZero())
		assert.Equal(t, meter.PostPaidName, h.Meter().Policy().Name())
	}
	assert.Len(t, a.Meter().History(), 1)
	assert.True(t, sink.hasLog("Meter for apartment A-2 reset"))
}

func TestClearEmptiesRegistry(t *testing.T) {
	c, sink := newTestCoordinator()
	_, _ = c.AddMeter("A-1")
	_, _ = c.AddMeter("A-2")

	c.Clear()

	assert.Empty(t, c.Meters())
	assert.True(t, sink.hasLog("Main meter reset"))
}

func TestSettleAllJournalsEveryMeter(t *testing.T) {
	journal := &fakeJournal{}
	c, _ := newTestCoordinator(WithJournal(journal))
	a, _ := c.AddMeter("A-1")
	b, _ := c.AddMeter("A-2")
	a.Consume(12)
	b.Consume(7)

	records := c.SettleAll("3/2025")

	assert.Len(t, records, 2)
	assert.Zero(t, c.TotalConsumption())
	require.Len(t, journal.settled["A-1"], 1)
	assert.Equal(t, 12.0, journal.settled["A-1"][0].Consumption)
	assert.Equal(t, "3/2025", journal.settled["A-2"][0].Period)
}

func TestMonitoring(t *testing.T) {
	c, sink := newTestCoordinator()
	a, _ := c.AddMeter("A-1")
	a.Consume(10)
	a.Settle("1/2025")

	c.MonitorMeters()
	require.NoError(t, c.MonitorMeterHistory("A-1"))

	assert.True(t, sink.hasLog("IndividualMeter{strategy=PostPaid, consumption=0 kWh, status=active"))
	assert.True(t, sink.hasLog("total consumption: 0 kWh"))
	assert.True(t, sink.hasLog("History of consumption and payments for individual meter A-1"))
}

func TestMetersAreSortedSnapshots(t *testing.T) {
	c, _ := newTestCoordinator()
	_, _ = c.AddMeter("B")
	_, _ = c.AddMeter("A")

	snaps := c.Meters()

	require.Len(t, snaps, 2)
	assert.Equal(t, "A", snaps[0].ID)
	assert.Equal(t, "B", snaps[1].ID)
}

func TestLimitsApplyToNewMeters(t *testing.T) {
	limits := meter.DefaultLimits()
	limits.BasicConsumptionLimit = 10
	limits.ExtraConsumptionPrice = decimal.NewFromInt(2)
	c, _ := newTestCoordinator(WithLimits(limits))
	h, _ := c.AddMeter("A-1")

	h.Consume(15)

	assert.True(t, h.Balance().Equal(decimal.NewFromInt(-30)))
}

func TestSettlementClock(t *testing.T) {
	at := time.Date(2025, 2, 28, 12, 0, 0, 0, time.UTC)
	c, _ := newTestCoordinator(WithClock(func() time.Time { return at }))
	h, _ := c.AddMeter("A-1")

	rec := h.Settle("2/2025")

	assert.Equal(t, at, rec.SettledAt)
}

func TestCooldownReenablePublishesSnapshot(t *testing.T) {
	pub := &fakePublisher{}
	limits := meter.DefaultLimits()
	limits.SpikeCooldown = 20 * time.Millisecond
	c, _ := newTestCoordinator(WithLimits(limits), WithPublisher(pub))
	h, _ := c.AddMeter("A-1")

	out := h.Consume(60)

	require.Equal(t, meter.FailureCoolingDown, out.Failure)
	assert.False(t, pub.snapshot("A-1").Active)
	assert.Eventually(t, func() bool { return pub.snapshot("A-1").Active }, time.Second, 5*time.Millisecond)
	assert.True(t, h.Meter().Active())
}
