package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	libconfig "submeter/backend/libs/config"
	"submeter/backend/services/metering-service/internal/meter"
)

const defaultHTTPPort = "8085"

// Config defines metering service configuration.
type Config struct {
	LogLevel   string           `yaml:"logLevel" env:"LOG_LEVEL"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Billing    BillingConfig    `yaml:"billing"`
	Settlement SettlementConfig `yaml:"settlement"`
	Events     EventsConfig     `yaml:"events"`
	Meters     []SeedMeter      `yaml:"meters"`
}

// HTTPConfig holds the listen port.
type HTTPConfig struct {
	Port string `yaml:"port" env:"METERING_HTTP_PORT"`
}

// DatabaseConfig enables the settlement journal when DSN is set.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"METERING_POSTGRES_DSN"`
}

// RedisConfig enables the snapshot cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"METERING_REDIS_ADDR"`
	Password string `yaml:"password" env:"METERING_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"METERING_REDIS_DB"`
	TTL      int    `yaml:"ttlSeconds" env:"METERING_REDIS_TTL"`
}

// AuthConfig guards admin endpoints when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"METERING_JWT_SECRET"`
}

// BillingConfig mirrors meter.Limits; zero values take the stock defaults.
type BillingConfig struct {
	ConsumptionLimit      float64       `yaml:"consumptionLimit" env:"METERING_CONSUMPTION_LIMIT"`
	BasicConsumptionLimit float64       `yaml:"basicConsumptionLimit" env:"METERING_BASIC_CONSUMPTION_LIMIT"`
	ConsumptionSpike      float64       `yaml:"consumptionSpike" env:"METERING_CONSUMPTION_SPIKE"`
	ExtraConsumptionPrice string        `yaml:"extraConsumptionPrice" env:"METERING_EXTRA_CONSUMPTION_PRICE"`
	DebtPeriods           int           `yaml:"debtPeriods" env:"METERING_DEBT_PERIODS"`
	SpikeCooldown         time.Duration `yaml:"spikeCooldown" env:"METERING_SPIKE_COOLDOWN"`
	Currency              string        `yaml:"currency" env:"METERING_CURRENCY"`
}

// SettlementConfig controls the monthly settlement scheduler.
type SettlementConfig struct {
	Enabled       bool          `yaml:"enabled" env:"METERING_SETTLEMENT_ENABLED"`
	CheckInterval time.Duration `yaml:"checkInterval" env:"METERING_SETTLEMENT_INTERVAL"`
}

// EventsConfig tunes the websocket event stream.
type EventsConfig struct {
	PingInterval time.Duration `yaml:"pingInterval" env:"METERING_EVENTS_PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"METERING_EVENTS_WRITE_TIMEOUT"`
}

// SeedMeter is a meter registered at startup.
type SeedMeter struct {
	ID          string  `yaml:"id"`
	Policy      string  `yaml:"policy"`
	Consumption float64 `yaml:"consumption"`
	Balance     string  `yaml:"balance"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:  HTTPConfig{Port: defaultHTTPPort},
		Redis: RedisConfig{TTL: 86400},
		Settlement: SettlementConfig{
			Enabled:       true,
			CheckInterval: time.Minute,
		},
		Events: EventsConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks billing values and the seed list.
func (c *Config) Validate() error {
	if _, err := c.Limits(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Meters))
	for _, seed := range c.Meters {
		id := strings.TrimSpace(seed.ID)
		if id == "" {
			return errors.New("config: seed meter id required")
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("config: duplicate seed meter %q", id)
		}
		seen[id] = struct{}{}
		if _, err := meter.PolicyByName(seed.Policy); err != nil {
			return fmt.Errorf("config: seed meter %q: %w", id, err)
		}
		if _, err := seed.BalanceDecimal(); err != nil {
			return fmt.Errorf("config: seed meter %q: %w", id, err)
		}
	}
	return nil
}

// Limits converts the billing section into meter limits.
func (c *Config) Limits() (meter.Limits, error) {
	limits := meter.Limits{
		ConsumptionLimit:      c.Billing.ConsumptionLimit,
		BasicConsumptionLimit: c.Billing.BasicConsumptionLimit,
		ConsumptionSpike:      c.Billing.ConsumptionSpike,
		DebtPeriods:           c.Billing.DebtPeriods,
		SpikeCooldown:         c.Billing.SpikeCooldown,
		Currency:              c.Billing.Currency,
	}
	if raw := strings.TrimSpace(c.Billing.ExtraConsumptionPrice); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return meter.Limits{}, fmt.Errorf("config: extra consumption price: %w", err)
		}
		if price.IsNegative() {
			return meter.Limits{}, errors.New("config: extra consumption price must not be negative")
		}
		limits.ExtraConsumptionPrice = price
	}
	return limits.WithDefaults(), nil
}

// BalanceDecimal parses the seed balance; empty means zero.
func (s SeedMeter) BalanceDecimal() (decimal.Decimal, error) {
	raw := strings.TrimSpace(s.Balance)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultHTTPPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SnapshotTTL returns ttl as duration.
func (c *Config) SnapshotTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}
