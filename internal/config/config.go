package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lequangminh/ema-futures-bot/internal/exchange"
)

// Mode selects the execution environment
type Mode string

const (
	ModePaper   Mode = "paper"
	ModeTestnet Mode = "testnet"
	ModeLive    Mode = "live"
)

// Config is the complete engine configuration loaded from a JSON file
type Config struct {
	Mode      Mode `json:"mode"`
	AllowLive bool `json:"allow_live"`

	Symbols              []string `json:"symbols"`
	Leverage             int      `json:"leverage"`
	PositionSizePct      float64  `json:"position_size_pct"`
	SlippagePct          float64  `json:"slippage_pct"`
	DailyLossLimitPct    float64  `json:"daily_loss_limit_pct"`
	MaxConsecutiveLosses int      `json:"max_consecutive_losses"`
	CooldownMinutes      int      `json:"cooldown_minutes"`
	PollIntervalSeconds  int      `json:"poll_interval_seconds"`
	InitialEquity        float64  `json:"initial_equity"`

	Strategy      StrategyConfig      `json:"strategy"`
	Risk          RiskConfig          `json:"risk"`
	Storage       StorageConfig       `json:"storage"`
	Control       ControlConfig       `json:"control"`
	Logging       LoggingConfig       `json:"logging"`
	Metrics       MetricsConfig       `json:"metrics"`
	Notifications *NotificationConfig `json:"notifications,omitempty"`
	Exchange      exchange.Config     `json:"exchange"`
}

// StrategyConfig holds the EMA crossover parameters
type StrategyConfig struct {
	FastPeriod int `json:"fast_period"`
	SlowPeriod int `json:"slow_period"`
}

// RiskConfig holds risk behavior toggles
type RiskConfig struct {
	KillSwitchClosePositions bool `json:"kill_switch_close_positions"`
}

// StorageConfig holds the database location
type StorageConfig struct {
	Path string `json:"path"`
}

// ControlConfig holds the interlock flag directory
type ControlConfig struct {
	Dir string `json:"dir"`
}

// LoggingConfig holds the log directory
type LoggingConfig struct {
	Dir string `json:"dir"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled    bool   `json:"enabled"`
	ListenAddr string `json:"listen_addr"`
}

// NotificationConfig holds optional Telegram alert settings
type NotificationConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty"`
}

// Load reads, defaults and validates the configuration at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = ModePaper
	}
	if c.Leverage == 0 {
		c.Leverage = 1
	}
	if c.PositionSizePct == 0 {
		c.PositionSizePct = 0.1
	}
	if c.DailyLossLimitPct == 0 {
		c.DailyLossLimitPct = 0.05
	}
	if c.MaxConsecutiveLosses == 0 {
		c.MaxConsecutiveLosses = 3
	}
	if c.CooldownMinutes == 0 {
		c.CooldownMinutes = 30
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = 5
	}
	if c.InitialEquity == 0 {
		c.InitialEquity = 10000
	}
	if c.Strategy.FastPeriod == 0 {
		c.Strategy.FastPeriod = 12
	}
	if c.Strategy.SlowPeriod == 0 {
		c.Strategy.SlowPeriod = 26
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/engine.db"
	}
	if c.Control.Dir == "" {
		c.Control.Dir = "control"
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
}

// Validate checks the configuration for unsafe or inconsistent settings.
// Validation failures are fatal: the engine must not start on a config it
// cannot trust.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePaper, ModeTestnet, ModeLive:
	default:
		return fmt.Errorf("unsupported mode: %q", c.Mode)
	}

	if c.Mode == ModeLive && !c.AllowLive {
		return fmt.Errorf("live mode is disabled by default, set allow_live=true to proceed")
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Leverage < 1 {
		return fmt.Errorf("leverage must be >= 1, got %d", c.Leverage)
	}
	if c.PositionSizePct <= 0 || c.PositionSizePct > 1 {
		return fmt.Errorf("position_size_pct must be in (0, 1], got %v", c.PositionSizePct)
	}
	if c.SlippagePct < 0 {
		return fmt.Errorf("slippage_pct must not be negative, got %v", c.SlippagePct)
	}
	if c.InitialEquity <= 0 {
		return fmt.Errorf("initial_equity must be positive, got %v", c.InitialEquity)
	}
	if c.Strategy.FastPeriod < 1 || c.Strategy.SlowPeriod < 1 {
		return fmt.Errorf("strategy periods must be positive")
	}
	if c.Strategy.FastPeriod >= c.Strategy.SlowPeriod {
		return fmt.Errorf("fast_period (%d) must be smaller than slow_period (%d)",
			c.Strategy.FastPeriod, c.Strategy.SlowPeriod)
	}

	return nil
}

// PollInterval returns the cycle sleep duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Cooldown returns the consecutive-loss cooldown duration
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}
