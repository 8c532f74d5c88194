package sink

import (
	"go.uber.org/zap"

	"submeter/backend/services/metering-service/internal/coordinator"
)

// ZapSink writes meter events to a zap logger.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink returns a sink tagged with the meters component.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.With(zap.String("component", "meters"))}
}

// Log implements coordinator.Sink.
func (s *ZapSink) Log(message string) {
	s.logger.Info(message)
}

// Warning implements coordinator.Sink.
func (s *ZapSink) Warning(message string) {
	s.logger.Warn(message)
}

// Fanout forwards each event to every sink in order.
type Fanout []coordinator.Sink

// Log implements coordinator.Sink.
func (f Fanout) Log(message string) {
	for _, s := range f {
		s.Log(message)
	}
}

// Warning implements coordinator.Sink.
func (f Fanout) Warning(message string) {
	for _, s := range f {
		s.Warning(message)
	}
}
