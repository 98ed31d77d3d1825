package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/helix-trading/helix/internal/bot"
	"github.com/helix-trading/helix/internal/solana"
)

// Config is the root configuration structure for the bot.
type Config struct {
	General GeneralConfig       `yaml:"general"`
	Scanner bot.ScannerConfig   `yaml:"scanner"`
	Source  solana.SourceConfig `yaml:"source"`
	Feed    solana.FeedConfig   `yaml:"feed"`
	Trading TradingConfig       `yaml:"trading"`
	Control ControlConfig       `yaml:"control"`
}

type GeneralConfig struct {
	InstanceID string `yaml:"instance_id"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"` // json|text
}

type TradingConfig struct {
	DefaultBuySOL float64 `yaml:"default_buy_sol"`
	TxWindow      int     `yaml:"tx_window"` // transaction history limit
}

type ControlConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	MetricsEnabled *bool  `yaml:"metrics_enabled"` // defaults to true
}

// Load reads and parses a YAML configuration file. Environment variables
// in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "helix-1"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if cfg.Scanner == (bot.ScannerConfig{}) {
		cfg.Scanner = bot.DefaultScannerConfig()
	}
	if cfg.Source.DiscoveryURL == "" {
		cfg.Source = solana.DefaultSourceConfig()
	}
	if cfg.Feed.WSEndpoint == "" {
		cfg.Feed = solana.DefaultFeedConfig()
	}
	if cfg.Trading.DefaultBuySOL == 0 {
		cfg.Trading.DefaultBuySOL = 0.1
	}
	if cfg.Trading.TxWindow == 0 {
		cfg.Trading.TxWindow = 200
	}
	if cfg.Control.ListenAddr == "" {
		cfg.Control.ListenAddr = ":8787"
	}
	if cfg.Control.MetricsEnabled == nil {
		enabled := true
		cfg.Control.MetricsEnabled = &enabled
	}
}

// Validate checks cross-field invariants before the bot starts.
func (c *Config) Validate() error {
	if err := c.Scanner.Validate(); err != nil {
		return fmt.Errorf("scanner: %w", err)
	}
	if c.Trading.DefaultBuySOL <= 0 {
		return fmt.Errorf("trading: default_buy_sol must be positive")
	}
	if c.Trading.TxWindow < 1 {
		return fmt.Errorf("trading: tx_window must be at least 1")
	}
	if c.Source.Timeout < 0 || c.Source.Timeout > time.Minute {
		return fmt.Errorf("source: timeout out of range")
	}
	return nil
}
