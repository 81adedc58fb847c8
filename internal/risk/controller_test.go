package risk

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// memStore is an in-memory SpendStore.
type memStore struct {
	mu    sync.Mutex
	state domain.SpendState
	saves int
}

func (s *memStore) Load() (domain.SpendState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *memStore) Save(state domain.SpendState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saves++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		MaxPositionCost:     20,
		CooldownScans:       10,
		MaxDrawdown:         20,
		MaxTradesPerSession: 50,
		MaxEmptyScans:       100,
	}
}

func filledResult(eventID string, cost, size float64) domain.ExecutionResult {
	return domain.ExecutionResult{
		EventID:         eventID,
		AllFilled:       true,
		TotalCostActual: cost,
		TotalFilledSize: size,
	}
}

func TestRemainingBudgetDecreasesWithSpend(t *testing.T) {
	c, err := NewController(&memStore{}, testConfig(), testLogger())
	require.NoError(t, err)

	assert.InDelta(t, 20.0, c.RemainingBudget("evt1"), 1e-9)

	c.BeginScan()
	require.NoError(t, c.RecordTrade(filledResult("evt1", 0.90, 10)))

	// Event enters cooldown immediately after the trade.
	assert.Zero(t, c.RemainingBudget("evt1"))

	for i := 0; i < 10; i++ {
		c.BeginScan()
	}
	assert.InDelta(t, 20.0-9.0, c.RemainingBudget("evt1"), 1e-9)
	assert.InDelta(t, 20.0, c.RemainingBudget("evt2"), 1e-9)
}

func TestRemainingBudgetNeverNegative(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownScans = 0
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	c.BeginScan()
	require.NoError(t, c.RecordTrade(filledResult("evt1", 0.90, 30)))

	assert.Zero(t, c.RemainingBudget("evt1"))
}

func TestUnlimitedBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositionCost = Unlimited
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	assert.Equal(t, math.MaxFloat64, c.RemainingBudget("evt1"))
}

func TestCooldownExpires(t *testing.T) {
	cfg := testConfig()
	cfg.CooldownScans = 3
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	c.BeginScan()
	require.NoError(t, c.RecordTrade(filledResult("evt1", 0.90, 5)))
	assert.True(t, c.InCooldown("evt1"))

	c.BeginScan()
	c.BeginScan()
	assert.True(t, c.InCooldown("evt1"))

	c.BeginScan()
	assert.False(t, c.InCooldown("evt1"))
}

func TestCooldownSurvivesRestart(t *testing.T) {
	store := &memStore{}
	cfg := testConfig()

	c, err := NewController(store, cfg, testLogger())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		c.BeginScan()
	}
	require.NoError(t, c.RecordTrade(filledResult("evt1", 0.90, 5)))

	// New session resumes past the persisted trade index.
	c2, err := NewController(store, cfg, testLogger())
	require.NoError(t, err)
	c2.BeginScan()
	assert.True(t, c2.InCooldown("evt1"))
}

func TestCanTradeDrawdownStop(t *testing.T) {
	c, err := NewController(&memStore{}, testConfig(), testLogger())
	require.NoError(t, err)

	ok, _ := c.CanTrade()
	assert.True(t, ok)

	// A partial execution with nothing recovered books the full spend as loss.
	c.BeginScan()
	require.NoError(t, c.RecordTrade(domain.ExecutionResult{
		EventID: "evt1",
		Legs: []domain.LegFill{
			{Status: domain.LegStatusFilled, FilledSize: 50, FillPrice: 0.45},
		},
	}))

	ok, reason := c.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "drawdown")
}

func TestWithinDrawdownLimitRejectsOversizedTrade(t *testing.T) {
	c, err := NewController(&memStore{}, testConfig(), testLogger())
	require.NoError(t, err)

	// 15 already lost against a limit of 20.
	c.BeginScan()
	require.NoError(t, c.RecordTrade(domain.ExecutionResult{
		EventID: "evt1",
		Legs: []domain.LegFill{
			{Status: domain.LegStatusFilled, FilledSize: 30, FillPrice: 0.50},
		},
	}))
	require.InDelta(t, 15.0, c.Stats().Drawdown, 1e-9)

	assert.True(t, c.WithinDrawdownLimit(5))
	assert.False(t, c.WithinDrawdownLimit(5.01))

	// The session itself keeps running; only the oversized trade is refused.
	ok, _ := c.CanTrade()
	assert.True(t, ok)
}

func TestWithinDrawdownLimitUnlimited(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDrawdown = Unlimited
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	assert.True(t, c.WithinDrawdownLimit(1e9))
}

func TestRealizedLossNetsRecoveredUnwinds(t *testing.T) {
	c, err := NewController(&memStore{}, testConfig(), testLogger())
	require.NoError(t, err)

	c.BeginScan()
	require.NoError(t, c.RecordTrade(domain.ExecutionResult{
		EventID: "evt1",
		Legs: []domain.LegFill{
			{Status: domain.LegStatusFilled, FilledSize: 10, FillPrice: 0.45},
		},
		Unwinds: []domain.UnwindResult{
			{Status: domain.UnwindFilled, SellPrice: 0.43, Size: 10},
		},
	}))

	// 4.50 spent, 4.30 recovered.
	assert.InDelta(t, 0.20, c.Stats().Drawdown, 1e-9)
}

func TestCanTradeSessionTradeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTradesPerSession = 2
	cfg.CooldownScans = 0
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c.BeginScan()
		require.NoError(t, c.RecordTrade(filledResult("evt1", 0.90, 1)))
	}

	ok, reason := c.CanTrade()
	assert.False(t, ok)
	assert.Contains(t, reason, "trade limit")
}

func TestCircuitBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEmptyScans = 3
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	c.RecordScan(0)
	c.RecordScan(0)
	assert.False(t, c.BreakerTripped())

	c.RecordScan(0)
	assert.True(t, c.BreakerTripped())
}

func TestCircuitBreakerResetsOnOpportunity(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEmptyScans = 3
	c, err := NewController(&memStore{}, cfg, testLogger())
	require.NoError(t, err)

	c.RecordScan(0)
	c.RecordScan(0)
	c.RecordScan(2)
	c.RecordScan(0)
	c.RecordScan(0)
	assert.False(t, c.BreakerTripped())
}

func TestAbortedExecutionBooksNothing(t *testing.T) {
	store := &memStore{}
	c, err := NewController(store, testConfig(), testLogger())
	require.NoError(t, err)

	c.BeginScan()
	require.NoError(t, c.RecordTrade(domain.ExecutionResult{
		EventID: "evt1",
		Aborted: true,
	}))

	assert.Zero(t, c.Stats().Trades)
	assert.InDelta(t, 20.0, c.RemainingBudget("evt1"), 1e-9)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Zero(t, store.saves)
}

func TestSpendStatePersistedOnTrade(t *testing.T) {
	store := &memStore{}
	c, err := NewController(store, testConfig(), testLogger())
	require.NoError(t, err)

	c.BeginScan()
	require.NoError(t, c.RecordTrade(filledResult("evt1", 0.90, 10)))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.saves)
	assert.InDelta(t, 9.0, store.state.PositionCosts["evt1"], 1e-9)
	assert.Equal(t, 1, store.state.LastTraded["evt1"])
}
