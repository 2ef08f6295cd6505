// Package config defines all configuration for the galoisd server. Config
// is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via GALOIS_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Ingress  IngressConfig  `mapstructure:"ingress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Symbols  []SymbolSeed   `mapstructure:"symbols"`
}

// StoreConfig sets where the pebble-backed command log, status, proof,
// and snapshot column families live on disk.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig controls when the engine writes a full-state dump in
// addition to an explicit DUMP command.
type SnapshotConfig struct {
	IntervalEvents uint64 `mapstructure:"interval_events"`
}

// IngressConfig controls the command-ingress HTTP/WebSocket sidecar.
type IngressConfig struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	RequireSigs bool   `mapstructure:"require_sigs"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SymbolSeed declares a symbol the engine should create at startup via an
// implicit NEW_SYMBOL + OPEN pair, for devnets and tests that need a
// ready-to-trade market without an operator issuing the commands by hand.
type SymbolSeed struct {
	Base              uint32 `mapstructure:"base"`
	Quote             uint32 `mapstructure:"quote"`
	BaseScale         int32  `mapstructure:"base_scale"`
	QuoteScale        int32  `mapstructure:"quote_scale"`
	TakerFee          string `mapstructure:"taker_fee"`
	MakerFee          string `mapstructure:"maker_fee"`
	MinAmount         string `mapstructure:"min_amount"`
	MinVol            string `mapstructure:"min_vol"`
	EnableMarketOrder bool   `mapstructure:"enable_market_order"`
	Open              bool   `mapstructure:"open"`
}

// Load reads config from a YAML file with env var overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GALOIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.path", "data/galois")
	v.SetDefault("snapshot.interval_events", 10000)
	v.SetDefault("ingress.listen_addr", ":8761")
	v.SetDefault("ingress.require_sigs", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if path := os.Getenv("GALOIS_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if addr := os.Getenv("GALOIS_INGRESS_LISTEN_ADDR"); addr != "" {
		cfg.Ingress.ListenAddr = addr
	}
	if os.Getenv("GALOIS_INGRESS_REQUIRE_SIGS") == "false" || os.Getenv("GALOIS_INGRESS_REQUIRE_SIGS") == "0" {
		cfg.Ingress.RequireSigs = false
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Ingress.ListenAddr == "" {
		return fmt.Errorf("ingress.listen_addr is required")
	}
	for i, sym := range c.Symbols {
		if sym.Base == sym.Quote {
			return fmt.Errorf("symbols[%d]: base and quote must differ", i)
		}
		if sym.BaseScale < 0 || sym.BaseScale > 18 || sym.QuoteScale < 0 || sym.QuoteScale > 18 {
			return fmt.Errorf("symbols[%d]: scales must be in [0,18]", i)
		}
	}
	return nil
}

// StartupTimeout is how long galoisd waits for recovery to finish before
// giving up and exiting non-zero, so a corrupt store fails fast in an
// orchestrated deployment instead of hanging a liveness probe forever.
const StartupTimeout = 2 * time.Minute
