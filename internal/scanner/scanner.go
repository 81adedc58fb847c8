// Package scanner detects riskless multi-outcome arbitrage: baskets whose
// ask prices sum to less than one dollar.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// Config holds the detection thresholds.
type Config struct {
	// MinProfitPct is the minimum gross profit percentage worth trading.
	MinProfitPct float64
	// MaxProfitPct is the ceiling above which a basket is treated as stale
	// or mispriced data rather than a genuine opportunity.
	MaxProfitPct float64
	// FeeBufferPct is added to MinProfitPct to cover fees and slippage.
	FeeBufferPct float64
	// MinExecutableSize is the smallest basket size worth executing, in
	// shares, enforced again after the budget cap.
	MinExecutableSize float64
	// MaxConcurrentFetches bounds parallel quote fetches per basket.
	MaxConcurrentFetches int
}

// Scanner evaluates baskets against live quotes and a per-basket budget.
type Scanner struct {
	quotes domain.QuoteProvider
	cfg    Config
	logger *slog.Logger
}

// New creates a Scanner reading quotes from the given provider.
func New(quotes domain.QuoteProvider, cfg Config, logger *slog.Logger) *Scanner {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 5
	}
	return &Scanner{
		quotes: quotes,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// Evaluate decides whether a fully-quoted basket is tradable under the given
// remaining budget. It is pure: all quotes must come from the same fetch
// round so every leg is priced against the same market state. Rejections are
// returned as the sentinel errors in the domain package.
func (s *Scanner) Evaluate(basket domain.Basket, quotes []domain.Quote, remainingBudget float64) (domain.Opportunity, error) {
	if remainingBudget <= 0 {
		return domain.Opportunity{}, domain.ErrBudgetExhausted
	}

	// Every leg must have a tradable ask; one missing leg invalidates the
	// whole basket.
	if len(quotes) != len(basket.Legs) {
		return domain.Opportunity{}, domain.ErrNoLiquidity
	}
	totalCost := 0.0
	for _, q := range quotes {
		if q.BestAsk <= 0 || q.AskSize <= 0 {
			return domain.Opportunity{}, domain.ErrNoLiquidity
		}
		totalCost += q.BestAsk
	}

	if totalCost >= 1.0 {
		return domain.Opportunity{}, domain.ErrNotProfitable
	}

	profitPerShare := 1.0 - totalCost
	profitPct := profitPerShare / totalCost * 100

	if profitPct < s.cfg.MinProfitPct+s.cfg.FeeBufferPct {
		return domain.Opportunity{}, domain.ErrBelowMinProfit
	}
	if profitPct > s.cfg.MaxProfitPct {
		return domain.Opportunity{}, domain.ErrProfitSuspicious
	}

	executable := quotes[0].AskSize
	for _, q := range quotes[1:] {
		if q.AskSize < executable {
			executable = q.AskSize
		}
	}
	// Never commit more capital to this basket than its remaining budget.
	if maxAffordable := remainingBudget / totalCost; maxAffordable < executable {
		executable = maxAffordable
	}
	// Re-check after the budget cap; the cap alone can push a basket under
	// the floor.
	if executable < s.cfg.MinExecutableSize {
		return domain.Opportunity{}, domain.ErrSizeBelowMin
	}

	return domain.Opportunity{
		Basket:         basket,
		Quotes:         quotes,
		TotalCost:      totalCost,
		ProfitPerShare: profitPerShare,
		ProfitPct:      profitPct,
		ExecutableSize: executable,
		DetectedAt:     time.Now(),
	}, nil
}

// Scan quotes and evaluates every basket and returns the tradable ones, best
// profit first; ties retain encounter order. budgetFn supplies the remaining
// budget per basket. A fetch failure on one basket never aborts the rest.
func (s *Scanner) Scan(ctx context.Context, baskets []domain.Basket, budgetFn func(eventID string) float64) []domain.Opportunity {
	var opportunities []domain.Opportunity

	for i := range baskets {
		basket := baskets[i]

		quotes, err := s.fetchQuotes(ctx, basket)
		if err != nil {
			s.logger.Debug("basket quote fetch failed",
				slog.String("event_id", basket.EventID),
				slog.String("error", err.Error()),
			)
			continue
		}

		opp, err := s.Evaluate(basket, quotes, budgetFn(basket.EventID))
		if err != nil {
			continue
		}

		s.logger.Info("opportunity detected",
			slog.String("event_id", basket.EventID),
			slog.String("title", basket.Title),
			slog.Float64("total_cost", opp.TotalCost),
			slog.Float64("profit_pct", opp.ProfitPct),
			slog.Float64("executable_size", opp.ExecutableSize),
		)
		opportunities = append(opportunities, opp)
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ProfitPct > opportunities[j].ProfitPct
	})
	return opportunities
}

// fetchQuotes resolves all legs of one basket in parallel with bounded
// concurrency. All legs must resolve; a failed leg fails the basket.
func (s *Scanner) fetchQuotes(ctx context.Context, basket domain.Basket) ([]domain.Quote, error) {
	quotes := make([]domain.Quote, len(basket.Legs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentFetches)

	for i := range basket.Legs {
		leg := basket.Legs[i]
		g.Go(func() error {
			levels, err := s.quotes.Asks(gctx, leg.TokenID)
			if err != nil {
				return fmt.Errorf("leg %s: %w", leg.TokenID, err)
			}
			q := domain.Quote{
				Leg:        leg,
				Levels:     levels,
				ObservedAt: time.Now(),
			}
			if len(levels) > 0 {
				q.BestAsk = levels[0].Price
				q.AskSize = levels[0].Size
			}
			quotes[i] = q
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return quotes, nil
}
