// Package risk enforces the session's capital and safety limits: per-event
// position budgets, trade cooldowns, a drawdown stop and a circuit breaker
// for dead markets.
package risk

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// Unlimited disables the per-event position budget when used as
// Config.MaxPositionCost.
const Unlimited = -1.0

// Config holds the risk limits.
type Config struct {
	// MaxPositionCost caps the cumulative dollars committed per event.
	// Unlimited disables the cap.
	MaxPositionCost float64
	// CooldownScans is how many scan rounds an event sits out after a trade.
	CooldownScans int
	// MaxDrawdown halts the session once cumulative realized losses reach it.
	MaxDrawdown float64
	// MaxTradesPerSession halts the session after this many executions.
	MaxTradesPerSession int
	// MaxEmptyScans trips the circuit breaker after this many consecutive
	// scans without a single opportunity.
	MaxEmptyScans int
}

// SessionStats is a point-in-time view of the controller's counters.
type SessionStats struct {
	ScanIndex  int
	Trades     int
	Drawdown   float64
	EmptyScans int
	TotalSpend float64
}

// Controller tracks spend and session health. Spend state is durable; the
// session counters reset on restart, except that the scan index resumes past
// the highest persisted trade index so cooldowns survive a restart.
type Controller struct {
	store  domain.SpendStore
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	state      domain.SpendState
	scanIndex  int
	trades     int
	drawdown   float64
	emptyScans int
}

// NewController loads persisted spend state and returns a ready controller.
// A store with no prior state yields a fresh session.
func NewController(store domain.SpendStore, cfg Config, logger *slog.Logger) (*Controller, error) {
	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("risk: load spend state: %w", err)
	}
	if state.PositionCosts == nil {
		state.PositionCosts = make(map[string]float64)
	}
	if state.LastTraded == nil {
		state.LastTraded = make(map[string]int)
	}

	c := &Controller{
		store:  store,
		cfg:    cfg,
		state:  state,
		logger: logger.With(slog.String("component", "risk")),
	}
	for _, idx := range state.LastTraded {
		if idx > c.scanIndex {
			c.scanIndex = idx
		}
	}

	if len(state.PositionCosts) > 0 {
		c.logger.Info("restored spend state",
			slog.Int("events", len(state.PositionCosts)),
			slog.Float64("total_spend", c.totalSpendLocked()),
		)
	}
	return c, nil
}

// BeginScan advances the scan counter and returns the new index.
func (c *Controller) BeginScan() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanIndex++
	return c.scanIndex
}

// RemainingBudget returns the dollars still available for the event. Events
// in cooldown report zero; an unlimited budget reports MaxFloat64.
func (c *Controller) RemainingBudget(eventID string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inCooldownLocked(eventID) {
		return 0
	}
	if c.cfg.MaxPositionCost == Unlimited {
		return math.MaxFloat64
	}

	remaining := c.cfg.MaxPositionCost - c.state.PositionCosts[eventID]
	if remaining < 0 {
		return 0
	}
	return remaining
}

// InCooldown reports whether the event traded within the last CooldownScans
// rounds.
func (c *Controller) InCooldown(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inCooldownLocked(eventID)
}

func (c *Controller) inCooldownLocked(eventID string) bool {
	last, ok := c.state.LastTraded[eventID]
	if !ok {
		return false
	}
	return c.scanIndex-last < c.cfg.CooldownScans
}

// CanTrade is the pre-trade gate. A false result carries the reason the
// session must stop trading.
func (c *Controller) CanTrade() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxDrawdown > 0 && c.drawdown >= c.cfg.MaxDrawdown {
		return false, fmt.Sprintf("drawdown %.2f reached limit %.2f", c.drawdown, c.cfg.MaxDrawdown)
	}
	if c.cfg.MaxTradesPerSession > 0 && c.trades >= c.cfg.MaxTradesPerSession {
		return false, fmt.Sprintf("session trade limit %d reached", c.cfg.MaxTradesPerSession)
	}
	return true, ""
}

// WithinDrawdownLimit reports whether a trade whose entire cost could be lost
// still keeps the session above the drawdown stop. Unlike CanTrade this
// rejects a single oversized trade without halting the session; a smaller one
// may still pass.
func (c *Controller) WithinDrawdownLimit(worstCaseCost float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.MaxDrawdown <= 0 {
		return true
	}
	return c.drawdown+worstCaseCost <= c.cfg.MaxDrawdown
}

// BreakerTripped reports whether the consecutive-empty-scan circuit breaker
// has fired.
func (c *Controller) BreakerTripped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.MaxEmptyScans > 0 && c.emptyScans >= c.cfg.MaxEmptyScans
}

// RecordScan updates the circuit breaker with the scan's opportunity count.
func (c *Controller) RecordScan(opportunities int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if opportunities > 0 {
		c.emptyScans = 0
		return
	}
	c.emptyScans++
	if c.cfg.MaxEmptyScans > 0 && c.emptyScans == c.cfg.MaxEmptyScans {
		c.logger.Warn("circuit breaker tripped",
			slog.Int("empty_scans", c.emptyScans),
		)
	}
}

// RecordTrade books an execution's spend, loss and cooldown, then persists
// the spend state. Aborted executions book nothing.
func (c *Controller) RecordTrade(result domain.ExecutionResult) error {
	if result.Aborted {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.trades++
	c.state.LastTraded[result.EventID] = c.scanIndex

	if result.AllFilled {
		c.state.PositionCosts[result.EventID] += result.TotalCostActual * result.TotalFilledSize
	} else if loss := realizedLoss(result); loss > 0 {
		c.drawdown += loss
		c.logger.Warn("realized loss booked",
			slog.String("event_id", result.EventID),
			slog.Float64("loss", loss),
			slog.Float64("session_drawdown", c.drawdown),
		)
	}

	if err := c.store.Save(c.state); err != nil {
		return fmt.Errorf("risk: save spend state: %w", err)
	}
	return nil
}

// Stats returns the current session counters.
func (c *Controller) Stats() SessionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SessionStats{
		ScanIndex:  c.scanIndex,
		Trades:     c.trades,
		Drawdown:   c.drawdown,
		EmptyScans: c.emptyScans,
		TotalSpend: c.totalSpendLocked(),
	}
}

func (c *Controller) totalSpendLocked() float64 {
	total := 0.0
	for _, cost := range c.state.PositionCosts {
		total += cost
	}
	return total
}

// realizedLoss is the capital not recovered from a partial execution: dollars
// spent on filled legs minus proceeds from fully filled unwind sells. Partial
// and unresolved unwinds count as unrecovered.
func realizedLoss(result domain.ExecutionResult) float64 {
	spent := 0.0
	for _, leg := range result.Legs {
		if leg.FilledSize > 0 {
			spent += leg.FillPrice * leg.FilledSize
		}
	}

	recovered := 0.0
	for _, u := range result.Unwinds {
		if u.Status == domain.UnwindFilled {
			recovered += u.SellPrice * u.Size
		}
	}

	return spent - recovered
}
