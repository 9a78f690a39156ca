// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading       TradingConfig      `mapstructure:"trading"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Swarm         SwarmConfig        `mapstructure:"swarm"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Store         StoreConfig        `mapstructure:"store"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds trading-loop configuration.
type TradingConfig struct {
	Mode            string   `mapstructure:"mode"` // "live", "paper"
	Symbols         []string `mapstructure:"symbols"`
	IntervalMinutes int      `mapstructure:"interval_minutes"`  // decision cycle
	PnLCheckSeconds int      `mapstructure:"pnl_check_seconds"` // position monitoring
	LongOnly        bool     `mapstructure:"long_only"`
	ExchangeBaseURL string   `mapstructure:"exchange_base_url"`
	ExchangeWSURL   string   `mapstructure:"exchange_ws_url"` // empty = REST polling only
}

// RiskConfig holds risk-limit configuration. Immutable for a session.
type RiskConfig struct {
	MaxPositionPct  float64 `mapstructure:"max_position_pct"`
	Leverage        int     `mapstructure:"leverage"`
	StopLossPct     float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64 `mapstructure:"take_profit_pct"`
	MinConfidence   float64 `mapstructure:"min_confidence"`
	MaxDailyTrades  int     `mapstructure:"max_daily_trades"`
	CooldownMinutes int     `mapstructure:"cooldown_minutes"`
}

// SwarmConfig holds voter-pool configuration.
type SwarmConfig struct {
	Models              []string `mapstructure:"models"` // one voter per model
	MinVoters           int      `mapstructure:"min_voters"`
	VoterTimeoutSeconds int      `mapstructure:"voter_timeout_seconds"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Level    string         `mapstructure:"level"` // all, trades_only, errors_only
	Terminal bool           `mapstructure:"terminal"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification and command configuration.
type TelegramConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Credentials holds API credentials, loaded from credentials.toml.
type Credentials struct {
	Exchange ExchangeCredentials `mapstructure:"exchange"`
	OpenAI   OpenAICredentials   `mapstructure:"openai"`
	Telegram TelegramCredentials `mapstructure:"telegram"`
}

// ExchangeCredentials holds exchange API credentials.
type ExchangeCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// OpenAICredentials holds LLM provider credentials.
type OpenAICredentials struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // empty = api.openai.com
}

// TelegramCredentials holds Telegram bot credentials.
type TelegramCredentials struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/swarm-trader"
	}
	return filepath.Join(home, ".config", "swarm-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A malformed configuration is fatal: the process must not start ticking.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := createTemplateConfig(configDir); werr != nil {
				return werr
			}
			// Template written with defaults; proceed with them.
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

// setDefaults applies the stock settings: 50% of balance per trade at 5x
// leverage, 10% stop loss, 15% take profit, 60% minimum confidence, at
// most 10 trades a day with a 30 minute cooldown after a losing close.
func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "paper")
	v.SetDefault("trading.symbols", []string{"BTC"})
	v.SetDefault("trading.interval_minutes", 15)
	v.SetDefault("trading.pnl_check_seconds", 10)
	v.SetDefault("trading.long_only", true)

	v.SetDefault("risk.max_position_pct", 50.0)
	v.SetDefault("risk.leverage", 5)
	v.SetDefault("risk.stop_loss_pct", 10.0)
	v.SetDefault("risk.take_profit_pct", 15.0)
	v.SetDefault("risk.min_confidence", 60.0)
	v.SetDefault("risk.max_daily_trades", 10)
	v.SetDefault("risk.cooldown_minutes", 30)

	v.SetDefault("swarm.models", []string{
		"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini", "o3-mini", "gpt-3.5-turbo",
	})
	v.SetDefault("swarm.min_voters", 3)
	v.SetDefault("swarm.voter_timeout_seconds", 60)

	v.SetDefault("notifications.enabled", true)
	v.SetDefault("notifications.level", "all")
	v.SetDefault("notifications.terminal", true)

	v.SetDefault("store.path", filepath.Join(DefaultConfigDir(), "trader.db"))
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Credentials.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Credentials.Exchange.APISecret = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Credentials.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Credentials.Telegram.ChatID = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return fmt.Errorf("invalid trading mode: %s (must be 'live' or 'paper')", c.Trading.Mode)
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Trading.IntervalMinutes <= 0 {
		return fmt.Errorf("interval_minutes must be positive")
	}
	if c.Trading.PnLCheckSeconds <= 0 {
		return fmt.Errorf("pnl_check_seconds must be positive")
	}

	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return fmt.Errorf("max_position_pct must be between 0 and 100")
	}
	if c.Risk.Leverage < 1 {
		return fmt.Errorf("leverage must be at least 1")
	}
	if c.Risk.StopLossPct <= 0 {
		return fmt.Errorf("stop_loss_pct must be positive")
	}
	if c.Risk.TakeProfitPct <= 0 {
		return fmt.Errorf("take_profit_pct must be positive")
	}
	if c.Risk.MinConfidence < 0 || c.Risk.MinConfidence > 100 {
		return fmt.Errorf("min_confidence must be between 0 and 100")
	}
	if c.Risk.MaxDailyTrades < 0 {
		return fmt.Errorf("max_daily_trades must be non-negative")
	}
	if c.Risk.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must be non-negative")
	}

	if len(c.Swarm.Models) == 0 {
		return fmt.Errorf("at least one swarm model is required")
	}
	if c.Swarm.MinVoters < 1 {
		return fmt.Errorf("min_voters must be at least 1")
	}
	if c.Swarm.MinVoters > len(c.Swarm.Models) {
		return fmt.Errorf("min_voters (%d) exceeds configured models (%d)",
			c.Swarm.MinVoters, len(c.Swarm.Models))
	}

	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode != "live"
}
