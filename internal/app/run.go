package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
	"github.com/Bo-Bear/Arbi-bot/internal/feed"
	"github.com/Bo-Bear/Arbi-bot/internal/ledger"
	"github.com/Bo-Bear/Arbi-bot/internal/platform/polymarket"
)

// runSession is the shared session loop: discover baskets, keep the streaming
// quote cache current, scan on a fixed cadence, and (when execute is true)
// trade the best opportunity of each scan. It returns when the context is
// cancelled or a session limit stops the run.
func (a *App) runSession(ctx context.Context, deps *Dependencies, execute bool) error {
	sessionID := uuid.NewString()[:8]
	sessionStart := time.Now()

	lw, err := ledger.NewWriter(a.cfg.Ledger.Dir, sessionID, a.logger)
	if err != nil {
		return fmt.Errorf("app: open ledger: %w", err)
	}
	defer func() {
		path := lw.Path()
		_ = lw.Close()
		if deps.Archiver != nil {
			archiveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if key, err := deps.Archiver.Archive(archiveCtx, path); err != nil {
				a.logger.Error("ledger archive failed", slog.String("error", err.Error()))
			} else {
				a.logger.Info("ledger archived", slog.String("key", key))
			}
		}
	}()

	endSession := func(reason string) {
		stats := deps.Risk.Stats()
		lw.SessionEnd(reason, stats)

		if deps.ExecutionStore != nil {
			qctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			profit, err := deps.ExecutionStore.SumProfit(qctx, sessionStart)
			cancel()
			if err != nil {
				a.logger.Warn("session profit query failed", slog.String("error", err.Error()))
			} else {
				a.logger.Info("session ended",
					slog.String("reason", reason),
					slog.Int("trades", stats.Trades),
					slog.Float64("expected_profit", profit),
				)
				return
			}
		}
		a.logger.Info("session ended",
			slog.String("reason", reason),
			slog.Int("trades", stats.Trades),
		)
	}

	if state, err := deps.SpendStore.Load(); err == nil && len(state.PositionCosts) > 0 {
		lw.PositionRestore(state)
	}
	if deps.ExecutionStore != nil {
		if recent, err := deps.ExecutionStore.ListRecent(ctx, 5); err == nil && len(recent) > 0 {
			a.logger.Info("prior executions on record",
				slog.Int("count", len(recent)),
				slog.String("latest_event", recent[0].EventID),
			)
		}
	}

	baskets, err := deps.Gamma.ListBaskets(ctx, polymarket.DiscoveryParams{
		MinOutcomes: a.cfg.Discovery.MinOutcomes,
		MaxOutcomes: a.cfg.Discovery.MaxOutcomes,
		PageSize:    a.cfg.Discovery.PageSize,
		MaxPages:    a.cfg.Discovery.MaxPages,
	})
	if err != nil {
		return fmt.Errorf("app: basket discovery: %w", err)
	}
	lw.SessionStart(sessionID, strings.ToLower(a.cfg.Mode), len(baskets))
	a.logger.InfoContext(ctx, "session started",
		slog.String("session_id", sessionID),
		slog.Int("baskets", len(baskets)),
	)

	// The streaming feed subscribes to every basket leg; it is restarted
	// whenever the basket universe changes.
	var feedCancel context.CancelFunc
	startFeed := func(bs []domain.Basket) {
		if feedCancel != nil {
			feedCancel()
		}
		if a.cfg.Polymarket.WsHost == "" {
			return
		}
		fctx, cancel := context.WithCancel(ctx)
		feedCancel = cancel
		mf := feed.NewMarketFeed(a.cfg.Polymarket.WsHost, basketTokenIDs(bs), deps.QuoteCache, a.logger)
		go func() {
			if err := mf.Run(fctx); err != nil && fctx.Err() == nil {
				a.logger.Warn("market feed stopped, falling back to direct fetch",
					slog.String("error", err.Error()),
				)
			}
		}()
	}
	startFeed(baskets)
	defer func() {
		if feedCancel != nil {
			feedCancel()
		}
	}()

	scanTicker := time.NewTicker(a.cfg.Scanner.Interval.Duration)
	defer scanTicker.Stop()
	refreshTicker := time.NewTicker(a.cfg.Discovery.RefreshInterval.Duration)
	defer refreshTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			endSession("shutdown")
			return ctx.Err()

		case <-refreshTicker.C:
			fresh, err := deps.Gamma.ListBaskets(ctx, polymarket.DiscoveryParams{
				MinOutcomes: a.cfg.Discovery.MinOutcomes,
				MaxOutcomes: a.cfg.Discovery.MaxOutcomes,
				PageSize:    a.cfg.Discovery.PageSize,
				MaxPages:    a.cfg.Discovery.MaxPages,
			})
			if err != nil {
				a.logger.Warn("basket refresh failed, keeping current universe",
					slog.String("error", err.Error()),
				)
				continue
			}
			baskets = fresh
			startFeed(baskets)

		case <-scanTicker.C:
			scanIdx := deps.Risk.BeginScan()
			started := time.Now()

			// Baskets in cooldown sit out the round entirely.
			candidates := make([]domain.Basket, 0, len(baskets))
			for _, b := range baskets {
				if deps.Risk.InCooldown(b.EventID) {
					continue
				}
				candidates = append(candidates, b)
			}

			opps := deps.Scanner.Scan(ctx, candidates, deps.Risk.RemainingBudget)
			deps.Risk.RecordScan(len(opps))

			cache := deps.QuoteCache.Stats()
			lw.ScanSummary(scanIdx, len(candidates), len(opps), time.Since(started), ledger.ScanStats{
				CacheHits:   cache.Hits,
				CacheMisses: cache.Misses,
				BooksReady:  cache.Ready,
				Fallbacks:   deps.Quotes.Fallbacks(),
			})

			if deps.Risk.BreakerTripped() {
				reason := "circuit breaker: no opportunities across consecutive scans"
				endSession(reason)
				a.logger.Warn("session halted", slog.String("reason", reason))
				_ = deps.Notifier.NotifyAll(ctx, "Session halted", reason)
				return nil
			}
			if len(opps) == 0 {
				continue
			}

			best := opps[0]
			lw.Opportunity(best)
			_ = deps.Notifier.Opportunity(ctx, best)
			for _, opp := range opps[1:] {
				lw.Skip(opp.Basket.EventID, "better opportunity selected this scan")
			}

			if !execute {
				lw.Skip(best.Basket.EventID, "scan mode")
				continue
			}

			if ok, reason := deps.Risk.CanTrade(); !ok {
				endSession(reason)
				a.logger.Warn("session halted", slog.String("reason", reason))
				_ = deps.Notifier.NotifyAll(ctx, "Session halted", reason)
				return nil
			}

			// Worst case the whole basket cost is lost; skip trades that
			// could blow through the drawdown stop.
			worstCase := math.Max(1, math.Floor(best.ExecutableSize)) * best.TotalCost
			if !deps.Risk.WithinDrawdownLimit(worstCase) {
				lw.Skip(best.Basket.EventID, "worst-case cost exceeds drawdown headroom")
				continue
			}

			result := deps.Engine.Execute(ctx, best, 0)
			lw.Execution(result)
			for _, u := range result.Unwinds {
				if u.Status == domain.UnwindUnresolved {
					lw.Escalation(result.ID, u)
				}
			}

			if err := deps.Risk.RecordTrade(result); err != nil {
				a.logger.Error("record trade failed", slog.String("error", err.Error()))
			}
			if deps.ExecutionStore != nil && !result.Aborted {
				if err := deps.ExecutionStore.Create(ctx, result); err != nil {
					a.logger.Error("store execution failed",
						slog.String("execution_id", result.ID),
						slog.String("error", err.Error()),
					)
				}
			}

			_ = deps.Notifier.Execution(ctx, result)
		}
	}
}

// basketTokenIDs collects the distinct leg token IDs across all baskets.
func basketTokenIDs(baskets []domain.Basket) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, b := range baskets {
		for _, leg := range b.Legs {
			if leg.TokenID == "" || seen[leg.TokenID] {
				continue
			}
			seen[leg.TokenID] = true
			ids = append(ids, leg.TokenID)
		}
	}
	return ids
}
