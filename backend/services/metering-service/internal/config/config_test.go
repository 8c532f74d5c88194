package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libconfig "submeter/backend/libs/config"
	"submeter/backend/services/metering-service/internal/meter"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(libconfig.ConfigPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.HTTPAddress())
	assert.Equal(t, 24*time.Hour, cfg.SnapshotTTL())
	assert.True(t, cfg.Settlement.Enabled)

	limits, err := cfg.Limits()
	require.NoError(t, err)
	assert.Equal(t, meter.DefaultLimits().ConsumptionLimit, limits.ConsumptionLimit)
	assert.True(t, limits.ExtraConsumptionPrice.Equal(meter.DefaultLimits().ExtraConsumptionPrice))
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metering.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: "9090"
billing:
  basicConsumptionLimit: 150
  extraConsumptionPrice: "0.75"
  spikeCooldown: 5m
  currency: EUR
meters:
  - id: A-15-1
  - id: A-420-3
    policy: prepaid
    consumption: 190
    balance: "10"
`), 0o600))
	t.Setenv(libconfig.ConfigPathEnv, path)
	t.Setenv("METERING_HTTP_PORT", ":7000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTPAddress())
	limits, err := cfg.Limits()
	require.NoError(t, err)
	assert.Equal(t, 150.0, limits.BasicConsumptionLimit)
	assert.Equal(t, "0.75", limits.ExtraConsumptionPrice.String())
	assert.Equal(t, 5*time.Minute, limits.SpikeCooldown)
	assert.Equal(t, "EUR", limits.Currency)
	require.Len(t, cfg.Meters, 2)
	assert.Equal(t, "prepaid", cfg.Meters[1].Policy)
}

func TestValidate(t *testing.T) {
	cases := map[string]Config{
		"bad price":      {Billing: BillingConfig{ExtraConsumptionPrice: "cheap"}},
		"negative price": {Billing: BillingConfig{ExtraConsumptionPrice: "-1"}},
		"empty seed":     {Meters: []SeedMeter{{ID: " "}}},
		"duplicate seed": {Meters: []SeedMeter{{ID: "A"}, {ID: "A"}}},
		"bad policy":     {Meters: []SeedMeter{{ID: "A", Policy: "barter"}}},
		"bad balance":    {Meters: []SeedMeter{{ID: "A", Balance: "lots"}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}
