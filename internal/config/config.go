// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ARBIBOT_* environment
// variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Scanner    ScannerConfig    `toml:"scanner"`
	Execution  ExecutionConfig  `toml:"execution"`
	Risk       RiskConfig       `toml:"risk"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	StatePath  string           `toml:"state_path"`
}

// WalletConfig holds Ethereum wallet credentials for order signing.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	FunderAddress    string `toml:"funder_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints, chain parameters and
// optional pre-derived API credentials.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`

	// API credentials for L2 auth. Left empty, the bot derives them from the
	// wallet at startup.
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`

	// BookRateLimit bounds direct REST book fetches per BookRateWindow.
	BookRateLimit  int      `toml:"book_rate_limit"`
	BookRateWindow duration `toml:"book_rate_window"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for ledger archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// DiscoveryConfig controls which multi-outcome events are scanned.
type DiscoveryConfig struct {
	MinOutcomes int `toml:"min_outcomes"`
	MaxOutcomes int `toml:"max_outcomes"`
	PageSize    int `toml:"page_size"`
	MaxPages    int `toml:"max_pages"`

	// RefreshInterval is how often the basket universe is re-discovered.
	RefreshInterval duration `toml:"refresh_interval"`
}

// ScannerConfig holds the opportunity detection thresholds.
type ScannerConfig struct {
	MinProfitPct         float64  `toml:"min_profit_pct"`
	MaxProfitPct         float64  `toml:"max_profit_pct"`
	FeeBufferPct         float64  `toml:"fee_buffer_pct"`
	MinExecutableSize    float64  `toml:"min_executable_size"`
	MaxConcurrentFetches int      `toml:"max_concurrent_fetches"`
	Interval             duration `toml:"interval"`
}

// ExecutionConfig holds order placement and unwind parameters.
type ExecutionConfig struct {
	PriceBuffer     float64  `toml:"price_buffer"`
	PriceCap        float64  `toml:"price_cap"`
	MaxStaleness    duration `toml:"max_staleness"`
	OrderTimeout    duration `toml:"order_timeout"`
	PollInterval    duration `toml:"poll_interval"`
	MaxParallelLegs int      `toml:"max_parallel_legs"`
	GTCFallback     bool     `toml:"gtc_fallback"`

	UnwindPriceDiscount float64  `toml:"unwind_price_discount"`
	UnwindPriceFloor    float64  `toml:"unwind_price_floor"`
	UnwindPollInterval  duration `toml:"unwind_poll_interval"`
	UnwindDeadline      duration `toml:"unwind_deadline"`
}

// RiskConfig holds the session capital and safety limits. MaxPositionCost -1
// disables the per-event budget.
type RiskConfig struct {
	MaxPositionCost     float64 `toml:"max_position_cost"`
	CooldownScans       int     `toml:"cooldown_scans"`
	MaxDrawdown         float64 `toml:"max_drawdown"`
	MaxTradesPerSession int     `toml:"max_trades_per_session"`
	MaxEmptyScans       int     `toml:"max_empty_scans"`
}

// LedgerConfig controls the session JSONL ledger.
type LedgerConfig struct {
	Dir     string `toml:"dir"`
	Archive bool   `toml:"archive"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:       "https://clob.polymarket.com",
			GammaHost:      "https://gamma-api.polymarket.com",
			WsHost:         "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			ChainID:        137,
			SignatureType:  0,
			BookRateLimit:  10,
			BookRateWindow: duration{time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "arbibot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbibot-ledgers",
			ForcePathStyle: true,
		},
		Discovery: DiscoveryConfig{
			MinOutcomes:     3,
			MaxOutcomes:     20,
			PageSize:        200,
			MaxPages:        5,
			RefreshInterval: duration{10 * time.Minute},
		},
		Scanner: ScannerConfig{
			MinProfitPct:         2.0,
			MaxProfitPct:         15.0,
			FeeBufferPct:         1.0,
			MinExecutableSize:    5.0,
			MaxConcurrentFetches: 5,
			Interval:             duration{5 * time.Second},
		},
		Execution: ExecutionConfig{
			PriceBuffer:         0.02,
			PriceCap:            0.99,
			MaxStaleness:        duration{5 * time.Second},
			OrderTimeout:        duration{20 * time.Second},
			PollInterval:        duration{500 * time.Millisecond},
			MaxParallelLegs:     10,
			GTCFallback:         false,
			UnwindPriceDiscount: 0.02,
			UnwindPriceFloor:    0.01,
			UnwindPollInterval:  duration{time.Second},
			UnwindDeadline:      duration{30 * time.Second},
		},
		Risk: RiskConfig{
			MaxPositionCost:     20.0,
			CooldownScans:       10,
			MaxDrawdown:         20.0,
			MaxTradesPerSession: 50,
			MaxEmptyScans:       100,
		},
		Ledger: LedgerConfig{
			Dir:     "ledgers",
			Archive: false,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "execution", "escalation", "error"},
		},
		Mode:      "paper",
		LogLevel:  "info",
		StatePath: "state/positions.json",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":  true,
	"paper": true,
	"scan":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, paper, scan)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet is only needed when real orders go out.
	if mode == "live" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for live mode")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
			errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType))
		}
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.BookRateLimit < 1 {
		errs = append(errs, "polymarket: book_rate_limit must be >= 1")
	}

	// Postgres backs execution history in live and paper mode.
	if mode == "live" || mode == "paper" {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Ledger.Archive {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when ledger archival is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when ledger archival is enabled")
		}
	}

	if c.Discovery.MinOutcomes < 2 {
		errs = append(errs, "discovery: min_outcomes must be >= 2")
	}
	if c.Discovery.MaxOutcomes < c.Discovery.MinOutcomes {
		errs = append(errs, "discovery: max_outcomes must be >= min_outcomes")
	}
	if c.Discovery.PageSize < 1 {
		errs = append(errs, "discovery: page_size must be >= 1")
	}

	if c.Scanner.MinProfitPct < 0 {
		errs = append(errs, "scanner: min_profit_pct must be >= 0")
	}
	if c.Scanner.MaxProfitPct <= c.Scanner.MinProfitPct {
		errs = append(errs, "scanner: max_profit_pct must exceed min_profit_pct")
	}
	if c.Scanner.MinExecutableSize <= 0 {
		errs = append(errs, "scanner: min_executable_size must be > 0")
	}
	if c.Scanner.Interval.Duration <= 0 {
		errs = append(errs, "scanner: interval must be > 0")
	}

	if c.Execution.PriceBuffer < 0 {
		errs = append(errs, "execution: price_buffer must be >= 0")
	}
	if c.Execution.PriceCap <= 0 || c.Execution.PriceCap > 0.99 {
		errs = append(errs, fmt.Sprintf("execution: price_cap must be in (0, 0.99], got %g", c.Execution.PriceCap))
	}
	if c.Execution.OrderTimeout.Duration <= 0 {
		errs = append(errs, "execution: order_timeout must be > 0")
	}
	if c.Execution.UnwindPriceFloor <= 0 {
		errs = append(errs, "execution: unwind_price_floor must be > 0")
	}

	if c.Risk.MaxPositionCost <= 0 && c.Risk.MaxPositionCost != -1 {
		errs = append(errs, "risk: max_position_cost must be > 0, or -1 for unlimited")
	}
	if c.Risk.CooldownScans < 0 {
		errs = append(errs, "risk: cooldown_scans must be >= 0")
	}

	if c.Ledger.Dir == "" {
		errs = append(errs, "ledger: dir must not be empty")
	}
	if c.StatePath == "" {
		errs = append(errs, "state_path must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
