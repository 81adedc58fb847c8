package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/platform/polymarket"
)

// MarketFeed connects to the Polymarket market data WebSocket, subscribes to
// the configured asset IDs, and keeps a QuoteCache current. The WebSocket
// client reconnects and resubscribes on its own; each disconnect invalidates
// the cache so reads miss until fresh snapshots arrive. The feed only
// supervises the initial connection.
type MarketFeed struct {
	wsURL    string
	assetIDs []string
	cache    *QuoteCache
	logger   *slog.Logger
}

// NewMarketFeed creates a feed that writes into the given cache.
func NewMarketFeed(wsURL string, assetIDs []string, cache *QuoteCache, logger *slog.Logger) *MarketFeed {
	return &MarketFeed{
		wsURL:    wsURL,
		assetIDs: assetIDs,
		cache:    cache,
		logger:   logger.With(slog.String("component", "market_feed")),
	}
}

// Run connects and subscribes, then blocks until ctx is cancelled. Book and
// price_change events are applied to the cache on the client's read
// goroutine, preserving the cache's single-writer discipline.
func (f *MarketFeed) Run(ctx context.Context) error {
	if len(f.assetIDs) == 0 {
		f.logger.Info("no asset IDs to subscribe, feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	client := polymarket.NewWSClient(f.wsURL, f.cache.ApplySnapshot, f.cache.ApplyChange, f.cache.Invalidate)
	defer client.Close()

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := client.Connect(connCtx)
	cancel()
	if err != nil {
		return err
	}

	if err := client.Subscribe(ctx, f.assetIDs); err != nil {
		return err
	}
	f.logger.Info("market feed subscribed", slog.Int("assets", len(f.assetIDs)))

	<-ctx.Done()
	return ctx.Err()
}
