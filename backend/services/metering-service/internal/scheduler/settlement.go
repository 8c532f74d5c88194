package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"submeter/backend/services/metering-service/internal/meter"
)

// Settler closes a billing period for every meter.
type Settler interface {
	SettleAll(period string) []meter.Record
}

// MonthlySettlement settles all meters when the calendar month rolls over.
type MonthlySettlement struct {
	mu       sync.Mutex
	settler  Settler
	interval time.Duration
	clock    func() time.Time
	logger   *zap.Logger
	current  time.Time
}

// NewMonthlySettlement builds the scheduler. The month in progress at
// construction time is the first one settled.
func NewMonthlySettlement(settler Settler, interval time.Duration, clock func() time.Time, logger *zap.Logger) *MonthlySettlement {
	if interval <= 0 {
		interval = time.Minute
	}
	if clock == nil {
		clock = time.Now
	}
	return &MonthlySettlement{
		settler:  settler,
		interval: interval,
		clock:    clock,
		logger:   logger,
		current:  monthStart(clock()),
	}
}

// Start checks for a month change every interval until ctx is done.
func (s *MonthlySettlement) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check()
		}
	}
}

// Check settles the finished month if now is past it. It returns the label
// that was settled, or "" when the month is still open.
func (s *MonthlySettlement) Check() string {
	now := monthStart(s.clock())

	s.mu.Lock()
	if !now.After(s.current) {
		s.mu.Unlock()
		return ""
	}
	period := meter.PeriodLabel(s.current)
	s.current = now
	s.mu.Unlock()

	records := s.settler.SettleAll(period)
	s.logger.Info("monthly settlement completed",
		zap.String("period", period),
		zap.Int("meters", len(records)),
	)
	return period
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
