package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/Bo-Bear/Arbi-bot/internal/blob/s3"
	"github.com/Bo-Bear/Arbi-bot/internal/cache/redis"
	"github.com/Bo-Bear/Arbi-bot/internal/config"
	"github.com/Bo-Bear/Arbi-bot/internal/crypto"
	"github.com/Bo-Bear/Arbi-bot/internal/domain"
	"github.com/Bo-Bear/Arbi-bot/internal/executor"
	"github.com/Bo-Bear/Arbi-bot/internal/feed"
	"github.com/Bo-Bear/Arbi-bot/internal/notify"
	"github.com/Bo-Bear/Arbi-bot/internal/platform/polymarket"
	"github.com/Bo-Bear/Arbi-bot/internal/quotes"
	"github.com/Bo-Bear/Arbi-bot/internal/risk"
	"github.com/Bo-Bear/Arbi-bot/internal/scanner"
	"github.com/Bo-Bear/Arbi-bot/internal/store/file"
	"github.com/Bo-Bear/Arbi-bot/internal/store/postgres"
)

// walletLockTTL bounds how long a crashed live session can block its wallet.
const walletLockTTL = 24 * time.Hour

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Persistence
	ExecutionStore domain.ExecutionStore // nil in scan mode
	SpendStore     domain.SpendStore

	// Market data
	Gamma      *polymarket.GammaClient
	QuoteCache *feed.QuoteCache
	Quotes     *quotes.Source

	// Trading
	Scanner *scanner.Scanner
	Engine  *executor.Engine // nil in scan mode
	Risk    *risk.Controller

	// Ledger archival (nil unless enabled)
	Archiver *s3blob.LedgerArchiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that record execution history.
func needsPostgres(mode string) bool {
	switch mode {
	case "live", "paper":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (only for modes that record executions) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.ExecutionStore = postgres.NewExecutionStore(pgClient)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	rateLimiter := redis.NewRateLimiter(redisClient,
		cfg.Polymarket.BookRateLimit, cfg.Polymarket.BookRateWindow.Duration)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Spend state and risk controller ---
	spendStore, err := file.NewSpendStore(cfg.StatePath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: spend store: %w", err)
	}
	deps.SpendStore = spendStore

	riskCtl, err := risk.NewController(spendStore, risk.Config{
		MaxPositionCost:     cfg.Risk.MaxPositionCost,
		CooldownScans:       cfg.Risk.CooldownScans,
		MaxDrawdown:         cfg.Risk.MaxDrawdown,
		MaxTradesPerSession: cfg.Risk.MaxTradesPerSession,
		MaxEmptyScans:       cfg.Risk.MaxEmptyScans,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: risk controller: %w", err)
	}
	deps.Risk = riskCtl

	// --- Market data: discovery, streaming cache, quote source ---
	deps.Gamma = polymarket.NewGammaClient(cfg.Polymarket.GammaHost, logger)
	deps.QuoteCache = feed.NewQuoteCache(0)

	// --- Order gateway ---
	var gateway domain.OrderGateway
	var fetcher domain.AskFetcher

	switch mode {
	case "live":
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}

		clob := polymarket.NewClobClient(
			cfg.Polymarket.ClobHost, signer,
			cfg.Polymarket.SignatureType, cfg.Wallet.FunderAddress,
		)
		if cfg.Polymarket.ApiKey != "" {
			clob.UseAPICredentials(
				cfg.Polymarket.ApiKey,
				cfg.Polymarket.ApiSecret,
				cfg.Polymarket.ApiPassphrase,
			)
		} else if err := clob.DeriveAPIKey(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: derive api key: %w", err)
		}
		gateway = clob
		fetcher = clob

		// Only one live process may trade a wallet at a time.
		lockMgr := redis.NewLockManager(redisClient)
		unlock, err := lockMgr.Acquire(ctx, "wallet:"+signer.Address().Hex(), walletLockTTL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet lock: %w", err)
		}
		closers = append(closers, unlock)

	case "paper":
		gateway = executor.NewPaperGateway()
		fetcher = polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, 0, "")

	default: // scan
		fetcher = polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, 0, "")
	}

	deps.Quotes = quotes.NewSource(deps.QuoteCache, fetcher, rateLimiter, logger)

	// --- Scanner ---
	deps.Scanner = scanner.New(deps.Quotes, scanner.Config{
		MinProfitPct:         cfg.Scanner.MinProfitPct,
		MaxProfitPct:         cfg.Scanner.MaxProfitPct,
		FeeBufferPct:         cfg.Scanner.FeeBufferPct,
		MinExecutableSize:    cfg.Scanner.MinExecutableSize,
		MaxConcurrentFetches: cfg.Scanner.MaxConcurrentFetches,
	}, logger)

	// --- Execution engine (not in scan mode) ---
	if gateway != nil {
		unwinder := executor.NewUnwinder(gateway, deps.Notifier, executor.UnwindConfig{
			PriceDiscount: cfg.Execution.UnwindPriceDiscount,
			PriceFloor:    cfg.Execution.UnwindPriceFloor,
			PollInterval:  cfg.Execution.UnwindPollInterval.Duration,
			Deadline:      cfg.Execution.UnwindDeadline.Duration,
		}, logger)

		deps.Engine = executor.NewEngine(gateway, deps.Quotes, unwinder, executor.Config{
			Paper:           mode == "paper",
			PriceBuffer:     cfg.Execution.PriceBuffer,
			PriceCap:        cfg.Execution.PriceCap,
			MaxStaleness:    cfg.Execution.MaxStaleness.Duration,
			OrderTimeout:    cfg.Execution.OrderTimeout.Duration,
			PollInterval:    cfg.Execution.PollInterval.Duration,
			MaxParallelLegs: cfg.Execution.MaxParallelLegs,
			GTCFallback:     cfg.Execution.GTCFallback,
		}, logger)
	}

	// --- S3 ledger archival ---
	if cfg.Ledger.Archive {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewLedgerArchiver(s3blob.NewWriter(s3Client), logger)
	}

	return deps, cleanup, nil
}
