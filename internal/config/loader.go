package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBIBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBIBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ARBIBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.FunderAddress, "ARBIBOT_WALLET_FUNDER_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ARBIBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ARBIBOT_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "ARBIBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "ARBIBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "ARBIBOT_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "ARBIBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "ARBIBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ApiKey, "ARBIBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "ARBIBOT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "ARBIBOT_POLYMARKET_API_PASSPHRASE")
	setInt(&cfg.Polymarket.BookRateLimit, "ARBIBOT_POLYMARKET_BOOK_RATE_LIMIT")
	setDuration(&cfg.Polymarket.BookRateWindow, "ARBIBOT_POLYMARKET_BOOK_RATE_WINDOW")

	// ── Database ──
	setStr(&cfg.Database.DSN, "ARBIBOT_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "ARBIBOT_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ARBIBOT_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ARBIBOT_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ARBIBOT_DATABASE_NAME")
	setStr(&cfg.Database.User, "ARBIBOT_DATABASE_USER")
	setStr(&cfg.Database.Password, "ARBIBOT_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ARBIBOT_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ARBIBOT_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ARBIBOT_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ARBIBOT_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBIBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBIBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBIBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBIBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBIBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBIBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBIBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBIBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBIBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBIBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBIBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBIBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBIBOT_S3_FORCE_PATH_STYLE")

	// ── Discovery ──
	setInt(&cfg.Discovery.MinOutcomes, "ARBIBOT_DISCOVERY_MIN_OUTCOMES")
	setInt(&cfg.Discovery.MaxOutcomes, "ARBIBOT_DISCOVERY_MAX_OUTCOMES")
	setInt(&cfg.Discovery.PageSize, "ARBIBOT_DISCOVERY_PAGE_SIZE")
	setInt(&cfg.Discovery.MaxPages, "ARBIBOT_DISCOVERY_MAX_PAGES")
	setDuration(&cfg.Discovery.RefreshInterval, "ARBIBOT_DISCOVERY_REFRESH_INTERVAL")

	// ── Scanner ──
	setFloat64(&cfg.Scanner.MinProfitPct, "ARBIBOT_SCANNER_MIN_PROFIT_PCT")
	setFloat64(&cfg.Scanner.MaxProfitPct, "ARBIBOT_SCANNER_MAX_PROFIT_PCT")
	setFloat64(&cfg.Scanner.FeeBufferPct, "ARBIBOT_SCANNER_FEE_BUFFER_PCT")
	setFloat64(&cfg.Scanner.MinExecutableSize, "ARBIBOT_SCANNER_MIN_EXECUTABLE_SIZE")
	setInt(&cfg.Scanner.MaxConcurrentFetches, "ARBIBOT_SCANNER_MAX_CONCURRENT_FETCHES")
	setDuration(&cfg.Scanner.Interval, "ARBIBOT_SCANNER_INTERVAL")

	// ── Execution ──
	setFloat64(&cfg.Execution.PriceBuffer, "ARBIBOT_EXECUTION_PRICE_BUFFER")
	setFloat64(&cfg.Execution.PriceCap, "ARBIBOT_EXECUTION_PRICE_CAP")
	setDuration(&cfg.Execution.MaxStaleness, "ARBIBOT_EXECUTION_MAX_STALENESS")
	setDuration(&cfg.Execution.OrderTimeout, "ARBIBOT_EXECUTION_ORDER_TIMEOUT")
	setDuration(&cfg.Execution.PollInterval, "ARBIBOT_EXECUTION_POLL_INTERVAL")
	setInt(&cfg.Execution.MaxParallelLegs, "ARBIBOT_EXECUTION_MAX_PARALLEL_LEGS")
	setBool(&cfg.Execution.GTCFallback, "ARBIBOT_EXECUTION_GTC_FALLBACK")
	setFloat64(&cfg.Execution.UnwindPriceDiscount, "ARBIBOT_EXECUTION_UNWIND_PRICE_DISCOUNT")
	setFloat64(&cfg.Execution.UnwindPriceFloor, "ARBIBOT_EXECUTION_UNWIND_PRICE_FLOOR")
	setDuration(&cfg.Execution.UnwindPollInterval, "ARBIBOT_EXECUTION_UNWIND_POLL_INTERVAL")
	setDuration(&cfg.Execution.UnwindDeadline, "ARBIBOT_EXECUTION_UNWIND_DEADLINE")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxPositionCost, "ARBIBOT_RISK_MAX_POSITION_COST")
	setInt(&cfg.Risk.CooldownScans, "ARBIBOT_RISK_COOLDOWN_SCANS")
	setFloat64(&cfg.Risk.MaxDrawdown, "ARBIBOT_RISK_MAX_DRAWDOWN")
	setInt(&cfg.Risk.MaxTradesPerSession, "ARBIBOT_RISK_MAX_TRADES_PER_SESSION")
	setInt(&cfg.Risk.MaxEmptyScans, "ARBIBOT_RISK_MAX_EMPTY_SCANS")

	// ── Ledger ──
	setStr(&cfg.Ledger.Dir, "ARBIBOT_LEDGER_DIR")
	setBool(&cfg.Ledger.Archive, "ARBIBOT_LEDGER_ARCHIVE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBIBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBIBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBIBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBIBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBIBOT_MODE")
	setStr(&cfg.LogLevel, "ARBIBOT_LOG_LEVEL")
	setStr(&cfg.StatePath, "ARBIBOT_STATE_PATH")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
