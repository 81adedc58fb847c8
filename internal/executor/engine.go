// Package executor turns detected opportunities into venue orders: parallel
// fill-or-kill buys across all legs, with compensating sells when a basket
// only partially fills.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// Config holds the execution parameters.
type Config struct {
	// Paper skips the pre-trade refresh and marks results as simulated.
	Paper bool
	// PriceBuffer is added to the observed ask when pricing the buy limit,
	// absorbing small moves between detection and submission.
	PriceBuffer float64
	// PriceCap is the highest limit price ever submitted.
	PriceCap float64
	// MaxStaleness is the oldest cached book accepted without a direct
	// venue refresh before trading.
	MaxStaleness time.Duration
	// OrderTimeout bounds how long a submitted leg may stay unresolved
	// before it is cancelled.
	OrderTimeout time.Duration
	// PollInterval is the order status polling cadence.
	PollInterval time.Duration
	// MaxParallelLegs bounds concurrent order submissions.
	MaxParallelLegs int
	// GTCFallback resubmits a rejected fill-or-kill leg as a resting order.
	GTCFallback bool
}

// DefaultConfig returns the standard execution parameters.
func DefaultConfig() Config {
	return Config{
		PriceBuffer:     0.02,
		PriceCap:        0.99,
		MaxStaleness:    5 * time.Second,
		OrderTimeout:    20 * time.Second,
		PollInterval:    500 * time.Millisecond,
		MaxParallelLegs: 10,
	}
}

// QuoteRefresher provides the reads for the pre-trade refresh: cache-backed
// when the books are fresh, direct venue fetches when any book went stale.
type QuoteRefresher interface {
	domain.QuoteProvider
	domain.AskFetcher
}

// Engine executes opportunities against an order gateway. Leg failures are
// recorded as data on the result, never returned as errors; the caller always
// gets a complete picture of what happened to each leg.
type Engine struct {
	gateway   domain.OrderGateway
	refresher QuoteRefresher
	unwinder  *Unwinder
	cfg       Config
	logger    *slog.Logger
}

// NewEngine creates an execution engine. refresher is required for live mode
// and ignored in paper mode; unwinder may be nil to disable compensating
// sells.
func NewEngine(gateway domain.OrderGateway, refresher QuoteRefresher, unwinder *Unwinder, cfg Config, logger *slog.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.MaxParallelLegs <= 0 {
		cfg.MaxParallelLegs = 10
	}
	return &Engine{
		gateway:   gateway,
		refresher: refresher,
		unwinder:  unwinder,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// Execute buys every leg of the opportunity. overrideSize replaces the
// opportunity's executable size when positive. The returned result is always
// complete: an aborted pre-trade refresh yields a result with no legs, and
// per-leg failures are captured in the leg fills.
func (e *Engine) Execute(ctx context.Context, opp domain.Opportunity, overrideSize float64) domain.ExecutionResult {
	result := domain.ExecutionResult{
		ID:        uuid.NewString(),
		EventID:   opp.Basket.EventID,
		Title:     opp.Basket.Title,
		Paper:     e.cfg.Paper,
		StartedAt: time.Now(),
	}

	// Whole shares only; the venue rejects fractional sizes.
	plannedSize := opp.ExecutableSize
	if overrideSize > 0 {
		plannedSize = overrideSize
	}
	size := math.Floor(plannedSize)
	if size < 1 {
		size = 1
	}

	quotes := opp.Quotes
	if !e.cfg.Paper {
		refreshed, abortReason := e.refresh(ctx, quotes)
		if abortReason != "" {
			e.logger.Warn("execution aborted",
				slog.String("event_id", opp.Basket.EventID),
				slog.String("reason", abortReason),
			)
			result.Aborted = true
			result.AbortReason = abortReason
			result.CompletedAt = time.Now()
			return result
		}
		quotes = refreshed

		// Availability may have shrunk since detection; never order more
		// than the thinnest refreshed leg can fill.
		available := quotes[0].AskSize
		for _, q := range quotes[1:] {
			if q.AskSize < available {
				available = q.AskSize
			}
		}
		if floored := math.Floor(available); floored < size {
			size = floored
		}
		if size < 1 {
			size = 1
		}
	}
	result.ExecSize = size

	legs := make([]domain.LegFill, len(quotes))
	for i, q := range quotes {
		legs[i] = domain.LegFill{
			Leg:          q.Leg,
			PlannedPrice: q.BestAsk,
			LimitPrice:   e.limitPrice(q.BestAsk),
			PlannedSize:  size,
			Status:       domain.LegStatusPlanned,
		}
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxParallelLegs)
	for i := range legs {
		g.Go(func() error {
			legs[i] = e.executeLeg(ctx, legs[i])
			return nil
		})
	}
	_ = g.Wait()

	e.aggregate(&result, legs)

	if !result.AllFilled && result.FilledLegs+countPartials(legs) > 0 && e.unwinder != nil {
		result.Unwinds = e.unwinder.Unwind(ctx, result.ID, legs)
	}

	result.CompletedAt = time.Now()
	e.logger.Info("execution complete",
		slog.String("execution_id", result.ID),
		slog.String("event_id", result.EventID),
		slog.Bool("all_filled", result.AllFilled),
		slog.Int("filled_legs", result.FilledLegs),
		slog.Int("failed_legs", result.FailedLegs),
		slog.Float64("total_cost_actual", result.TotalCostActual),
		slog.Duration("latency", result.Latency()),
	)
	return result
}

// refresh re-reads every leg's book before trading. Fresh books are re-read
// through the cache; once any cached book is older than MaxStaleness or
// unknown, all legs are fetched directly from the venue together, so the
// profitability re-check always sees one consistent view. A non-empty reason
// means the execution must abort.
func (e *Engine) refresh(ctx context.Context, quotes []domain.Quote) ([]domain.Quote, string) {
	if e.refresher == nil {
		return quotes, ""
	}

	stale := false
	for _, q := range quotes {
		age, ok := e.refresher.Staleness(q.Leg.TokenID)
		if !ok || age > e.cfg.MaxStaleness {
			stale = true
			break
		}
	}

	readLeg := e.refresher.Asks
	if stale {
		readLeg = e.refresher.FetchAsks
	}

	refreshed := make([]domain.Quote, len(quotes))
	totalCost := 0.0
	for i, q := range quotes {
		levels, err := readLeg(ctx, q.Leg.TokenID)
		if err != nil {
			return nil, fmt.Sprintf("refresh failed for leg %s: %v", q.Leg.TokenID, err)
		}
		if len(levels) == 0 || levels[0].Price <= 0 || levels[0].Size <= 0 {
			return nil, fmt.Sprintf("no ask after refresh for leg %s", q.Leg.TokenID)
		}

		if levels[0].Price != q.BestAsk {
			e.logger.Info("price drift on refresh",
				slog.String("token_id", q.Leg.TokenID),
				slog.Float64("detected", q.BestAsk),
				slog.Float64("refreshed", levels[0].Price),
			)
		}

		refreshed[i] = domain.Quote{
			Leg:        q.Leg,
			BestAsk:    levels[0].Price,
			AskSize:    levels[0].Size,
			Levels:     levels,
			ObservedAt: time.Now(),
		}
		totalCost += levels[0].Price
	}

	if totalCost >= 1.0 {
		return nil, fmt.Sprintf("refreshed cost %.4f is no longer profitable", totalCost)
	}
	return refreshed, ""
}

// executeLeg submits one buy and follows it to a terminal state.
func (e *Engine) executeLeg(ctx context.Context, leg domain.LegFill) domain.LegFill {
	req := domain.OrderRequest{
		TokenID: leg.Leg.TokenID,
		Side:    domain.OrderSideBuy,
		Type:    domain.OrderTypeFOK,
		Price:   leg.LimitPrice,
		Size:    leg.PlannedSize,
	}

	res, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		leg.Status = domain.LegStatusError
		leg.Error = err.Error()
		return leg
	}

	if !res.Success && e.cfg.GTCFallback && fokUnsupported(res.Reason) {
		req.Type = domain.OrderTypeGTC
		res, err = e.gateway.PlaceOrder(ctx, req)
		if err != nil {
			leg.Status = domain.LegStatusError
			leg.Error = err.Error()
			return leg
		}
	}
	if !res.Success {
		leg.Status = domain.LegStatusRejected
		leg.Error = res.Reason
		return leg
	}

	leg.OrderID = res.OrderID
	leg.Status = domain.LegStatusSubmitted
	leg = e.awaitFill(ctx, leg)

	// Paper fills settle at the quoted ask, not the padded limit.
	if e.cfg.Paper && leg.FilledSize > 0 {
		leg.FillPrice = leg.PlannedPrice
	}
	return leg
}

// fokUnsupported reports whether a rejection means the venue cannot take
// fill-or-kill orders for this market, as opposed to an ordinary rejection
// such as insufficient liquidity. Only the former may fall back to GTC.
func fokUnsupported(reason string) bool {
	r := strings.ToLower(reason)
	if strings.Contains(r, "unsupported order type") {
		return true
	}
	return strings.Contains(r, "fok") &&
		(strings.Contains(r, "unsupported") || strings.Contains(r, "not supported"))
}

// awaitFill polls the order until it reaches a terminal state or the timeout
// elapses; a timed-out order is cancelled and re-read for a residual fill.
func (e *Engine) awaitFill(ctx context.Context, leg domain.LegFill) domain.LegFill {
	deadline := time.Now().Add(e.cfg.OrderTimeout)

	for {
		fill, err := e.gateway.OrderStatus(ctx, leg.OrderID)
		if err == nil {
			switch fill.State {
			case domain.OrderStateFilled:
				return recordFill(leg, fill, domain.LegStatusFilled)
			case domain.OrderStateCancelled:
				status := domain.LegStatusCanceled
				if fill.FilledSize > 0 {
					status = domain.LegStatusPartial
				}
				return recordFill(leg, fill, status)
			}
		}

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			leg.Status = domain.LegStatusError
			leg.Error = ctx.Err().Error()
			return leg
		case <-time.After(e.cfg.PollInterval):
		}
	}

	// Timed out. Kill the order, then pick up whatever filled before the
	// cancel landed.
	if err := e.gateway.CancelOrder(ctx, leg.OrderID); err != nil {
		e.logger.Warn("cancel after timeout failed",
			slog.String("order_id", leg.OrderID),
			slog.String("error", err.Error()),
		)
	}

	if fill, err := e.gateway.OrderStatus(ctx, leg.OrderID); err == nil && fill.FilledSize > 0 {
		if fill.FilledSize >= leg.PlannedSize {
			return recordFill(leg, fill, domain.LegStatusFilled)
		}
		return recordFill(leg, fill, domain.LegStatusPartial)
	}

	leg.Status = domain.LegStatusTimeout
	leg.Error = "order unresolved after timeout"
	return leg
}

// aggregate rolls the per-leg outcomes up into the result.
func (e *Engine) aggregate(result *domain.ExecutionResult, legs []domain.LegFill) {
	result.Legs = legs
	result.AllFilled = len(legs) > 0

	totalCost := 0.0
	minFilled := 0.0
	for _, leg := range legs {
		if leg.Status == domain.LegStatusFilled {
			result.FilledLegs++
			if result.FilledLegs == 1 || leg.FilledSize < minFilled {
				minFilled = leg.FilledSize
			}
		} else {
			result.FailedLegs++
			result.AllFilled = false
		}

		// Unfilled legs are priced at plan so partial results still carry a
		// meaningful cost figure.
		if leg.FilledSize > 0 {
			totalCost += leg.FillPrice
		} else {
			totalCost += leg.PlannedPrice
		}
	}

	result.TotalCostActual = totalCost
	result.TotalFilledSize = minFilled
}

// limitPrice prices a buy leg: observed ask plus buffer, rounded to a cent,
// never above the cap.
func (e *Engine) limitPrice(ask float64) float64 {
	price := round2(ask + e.cfg.PriceBuffer)
	if price > e.cfg.PriceCap {
		price = e.cfg.PriceCap
	}
	return price
}

func recordFill(leg domain.LegFill, fill domain.OrderFill, status domain.LegStatus) domain.LegFill {
	leg.Status = status
	leg.FilledSize = fill.FilledSize
	if status == domain.LegStatusFilled && leg.FilledSize == 0 {
		leg.FilledSize = leg.PlannedSize
	}
	leg.FillPrice = fill.AvgPrice
	if leg.FillPrice == 0 && leg.FilledSize > 0 {
		leg.FillPrice = leg.LimitPrice
	}
	return leg
}

func countPartials(legs []domain.LegFill) int {
	n := 0
	for _, leg := range legs {
		if leg.Status != domain.LegStatusFilled && leg.FilledSize > 0 {
			n++
		}
	}
	return n
}

func round2(p float64) float64 {
	return math.Round(p*100) / 100
}
