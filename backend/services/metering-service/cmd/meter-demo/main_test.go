package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"submeter/backend/services/metering-service/internal/coordinator"
	"submeter/backend/services/metering-service/internal/registry"
	"submeter/backend/services/metering-service/internal/sink"
)

func TestRunReplaysScript(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	building := coordinator.New(registry.NewMemoryRegistry(), sink.NewZapSink(zap.New(core)))

	require.NoError(t, run(building, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, 1, logs.FilterMessage("Meter disabled due to consumption spike").Len())
	assert.Equal(t, 1, logs.FilterMessage("Meter A-420-3 is deactivated due to insufficient funds").Len())
	assert.Equal(t, 1, logs.FilterMessage("Meter for apartment A-21-11 {balance=250RM to pay, current consumption=530KWh}").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("History of consumption and payments for individual meter A-420-3").Len())
	assert.GreaterOrEqual(t, logs.FilterMessage("Consumption interrupted due to insufficient funds").Len(), 1)

	for _, snap := range building.Meters() {
		assert.Zero(t, snap.Consumption)
		assert.True(t, snap.Balance.IsZero())
		assert.NotEmpty(t, snap.History)
	}
	assert.Zero(t, building.TotalConsumption())
}
