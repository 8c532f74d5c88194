package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewZapSink(zap.New(core))

	s.Log("Meter for apartment A-1 added")
	s.Warning("Meter disabled due to consumption spike")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "Meter for apartment A-1 added", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "meters", entries[1].ContextMap()["component"])
}

func TestFanout(t *testing.T) {
	core1, logs1 := observer.New(zapcore.DebugLevel)
	core2, logs2 := observer.New(zapcore.DebugLevel)
	f := Fanout{NewZapSink(zap.New(core1)), NewZapSink(zap.New(core2))}

	f.Log("a")
	f.Warning("b")

	assert.Equal(t, 2, logs1.Len())
	assert.Equal(t, 2, logs2.Len())
}
