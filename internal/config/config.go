// Package config defines all configuration for the matching core.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via SPOTMATCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Symbols   []string        `mapstructure:"symbols"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Session   SessionConfig   `mapstructure:"session"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	API       APIConfig       `mapstructure:"api"`
}

// MatchingConfig tunes the order admission and matching behavior.
//
//   - MaxSlippagePct: how far a market order may walk from the book's best
//     price before the remainder is rejected instead of executed.
//   - GTDSweepInterval: how often the engine scans for expired GTD orders.
//   - SelfMatchPolicy: "decrement_take" or "reject" (spec.md §4.B).
//   - MinOrderSize/MaxOrderSize: admission bounds on order quantity
//     (spec.md §4.B step 1).
type MatchingConfig struct {
	MaxSlippagePct   float64       `mapstructure:"max_slippage_pct"`
	GTDSweepInterval time.Duration `mapstructure:"gtd_sweep_interval"`
	SelfMatchPolicy  string        `mapstructure:"self_match_policy"`
	CommissionRate   float64       `mapstructure:"commission_rate"`
	MinOrderSize     float64       `mapstructure:"min_order_size"`
	MaxOrderSize     float64       `mapstructure:"max_order_size"`
}

// WalletConfig controls the balance gate and external wallet oracle.
type WalletConfig struct {
	OracleBaseURL    string        `mapstructure:"oracle_base_url"`
	OracleTimeout    time.Duration `mapstructure:"oracle_timeout"`
	NonceTTL         time.Duration `mapstructure:"nonce_ttl"`
	QuoteScale       int32         `mapstructure:"quote_scale"` // decimal places for quote asset
	BaseScale        int32         `mapstructure:"base_scale"`  // decimal places for base asset
}

// PubSubConfig selects and configures the pub/sub bridge.
type PubSubConfig struct {
	Backend  string `mapstructure:"backend"` // "local" or "redis"
	RedisURL string `mapstructure:"redis_url"`
}

// SessionConfig tunes the WebSocket session hub.
type SessionConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// AnalyticsConfig tunes anomaly-detection and risk-scoring thresholds.
// Constants mirror the retrieved trade-stream analytics source; see DESIGN.md.
type AnalyticsConfig struct {
	VolumeSpikeStdDevK   float64       `mapstructure:"volume_spike_stddev_k"`
	LargeTradePercentile float64       `mapstructure:"large_trade_percentile"`
	RapidTradeThreshold  int           `mapstructure:"rapid_trade_threshold"`
	WashTradeRatio       float64       `mapstructure:"wash_trade_ratio"`
	WashTradeMinCount    int           `mapstructure:"wash_trade_min_count"`
	EvalWindow           time.Duration `mapstructure:"eval_window"`
}

// StoreConfig sets where order/trade state is persisted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig controls the REST/WebSocket server.
type APIConfig struct {
	Port             int      `mapstructure:"port"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	OrdersPerSecond  float64  `mapstructure:"orders_per_second"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: SPOTMATCH_REDIS_URL, SPOTMATCH_ORACLE_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SPOTMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("SPOTMATCH_REDIS_URL"); url != "" {
		cfg.PubSub.RedisURL = url
	}
	if url := os.Getenv("SPOTMATCH_ORACLE_BASE_URL"); url != "" {
		cfg.Wallet.OracleBaseURL = url
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one tradeable symbol")
	}
	if c.Matching.MaxSlippagePct <= 0 {
		return fmt.Errorf("matching.max_slippage_pct must be > 0")
	}
	if c.Matching.MinOrderSize <= 0 {
		return fmt.Errorf("matching.min_order_size must be > 0")
	}
	if c.Matching.MaxOrderSize <= c.Matching.MinOrderSize {
		return fmt.Errorf("matching.max_order_size must be > matching.min_order_size")
	}
	switch c.Matching.SelfMatchPolicy {
	case "decrement_take", "reject":
	default:
		return fmt.Errorf("matching.self_match_policy must be one of: decrement_take, reject")
	}
	if c.PubSub.Backend != "local" && c.PubSub.Backend != "redis" {
		return fmt.Errorf("pubsub.backend must be one of: local, redis")
	}
	if c.PubSub.Backend == "redis" && c.PubSub.RedisURL == "" {
		return fmt.Errorf("pubsub.redis_url is required when pubsub.backend is redis")
	}
	if c.Wallet.QuoteScale <= 0 {
		return fmt.Errorf("wallet.quote_scale must be > 0")
	}
	if c.Wallet.BaseScale <= 0 {
		return fmt.Errorf("wallet.base_scale must be > 0")
	}
	if c.API.Port == 0 {
		return fmt.Errorf("api.port is required")
	}
	if c.API.OrdersPerSecond <= 0 {
		return fmt.Errorf("api.orders_per_second must be > 0")
	}
	return nil
}
