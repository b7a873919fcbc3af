package realtime

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// default values for configuration
const (
	defaultMarketHubURL = "https://rtc.gateway.projectx.com/hubs/market"
	defaultUserHubURL   = "https://rtc.gateway.projectx.com/hubs/user"

	defaultKeepAliveIntervalSeconds = 15
	defaultReconnectIntervalSeconds = 2
	defaultMaxAttempts              = 5
)

// Config define options for the realtime service and its transports.  The
// reconnect options are passed through to the transport unchanged.
type Config struct {
	// MarketHubURL base URL of the market data hub.
	MarketHubURL string `yaml:"market_hub_url"`

	// UserHubURL base URL of the account/order hub.
	UserHubURL string `yaml:"user_hub_url"`

	// KeepAliveIntervalSeconds interval between client pings while connected.
	KeepAliveIntervalSeconds int `yaml:"keep_alive_interval_seconds"`

	// ReconnectIntervalSeconds base delay of the transport's exponential
	// reconnect backoff.
	ReconnectIntervalSeconds int `yaml:"reconnect_interval_seconds"`

	// MaxAttempts reconnect attempts before the transport gives up and reports
	// a terminal close.
	MaxAttempts int `yaml:"max_attempts"`
}

// LoadConfig reads a Config from a YAML file and applies defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	cfg = cfg.withDefaults()

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// withDefaults fills zero values without mutating the receiver.
func (c Config) withDefaults() Config {
	if c.MarketHubURL == "" {
		c.MarketHubURL = defaultMarketHubURL
	}
	if c.UserHubURL == "" {
		c.UserHubURL = defaultUserHubURL
	}
	if c.KeepAliveIntervalSeconds == 0 {
		c.KeepAliveIntervalSeconds = defaultKeepAliveIntervalSeconds
	}
	if c.ReconnectIntervalSeconds == 0 {
		c.ReconnectIntervalSeconds = defaultReconnectIntervalSeconds
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

func (c Config) validate() error {
	if c.KeepAliveIntervalSeconds < 0 {
		return fmt.Errorf("keep alive interval cannot be negative: %d", c.KeepAliveIntervalSeconds)
	}
	if c.ReconnectIntervalSeconds < 0 {
		return fmt.Errorf("reconnect interval cannot be negative: %d", c.ReconnectIntervalSeconds)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max attempts cannot be negative: %d", c.MaxAttempts)
	}
	return nil
}

func (c Config) keepAliveInterval() time.Duration {
	return time.Duration(c.KeepAliveIntervalSeconds) * time.Second
}

func (c Config) reconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSeconds) * time.Second
}
