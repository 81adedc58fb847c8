package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

func testConfig() Config {
	return Config{
		MinProfitPct:      2.0,
		MaxProfitPct:      15.0,
		FeeBufferPct:      1.0,
		MinExecutableSize: 5.0,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeBasket(eventID string, n int) domain.Basket {
	legs := make([]domain.OutcomeLeg, n)
	for i := range legs {
		legs[i] = domain.OutcomeLeg{
			TokenID:  fmt.Sprintf("%s-token-%d", eventID, i),
			Name:     fmt.Sprintf("Outcome %d", i),
			MarketID: fmt.Sprintf("%s-market-%d", eventID, i),
		}
	}
	return domain.Basket{EventID: eventID, Title: "Test Event " + eventID, Legs: legs}
}

func makeQuotes(basket domain.Basket, asks []float64, sizes []float64) []domain.Quote {
	quotes := make([]domain.Quote, len(basket.Legs))
	for i, leg := range basket.Legs {
		quotes[i] = domain.Quote{
			Leg:        leg,
			BestAsk:    asks[i],
			AskSize:    sizes[i],
			Levels:     []domain.PriceLevel{{Price: asks[i], Size: sizes[i]}},
			ObservedAt: time.Now(),
		}
	}
	return quotes
}

// stubQuotes serves canned ask books per token ID.
type stubQuotes struct {
	books map[string][]domain.PriceLevel
	errs  map[string]error
}

func (s *stubQuotes) Asks(_ context.Context, tokenID string) ([]domain.PriceLevel, error) {
	if err, ok := s.errs[tokenID]; ok {
		return nil, err
	}
	return s.books[tokenID], nil
}

func (s *stubQuotes) Staleness(string) (time.Duration, bool) { return 0, true }

func TestEvaluateProfitableBasket(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 3)
	quotes := makeQuotes(basket, []float64{0.30, 0.30, 0.30}, []float64{500, 400, 300})

	opp, err := sc.Evaluate(basket, quotes, 200)
	require.NoError(t, err)

	assert.InDelta(t, 0.90, opp.TotalCost, 1e-9)
	assert.InDelta(t, 0.10, opp.ProfitPerShare, 1e-9)
	assert.InDelta(t, 11.111, opp.ProfitPct, 0.001)
	// Budget 200 at 0.90/share affords fewer than the thinnest leg's 300.
	assert.InDelta(t, 200.0/0.90, opp.ExecutableSize, 1e-9)
}

func TestEvaluateBudgetCapsSize(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 3)
	quotes := makeQuotes(basket, []float64{0.30, 0.30, 0.30}, []float64{500, 400, 300})

	opp, err := sc.Evaluate(basket, quotes, 50)
	require.NoError(t, err)
	assert.InDelta(t, 50.0/0.90, opp.ExecutableSize, 1e-9)
}

func TestEvaluateBudgetCapBelowMinSize(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 3)
	quotes := makeQuotes(basket, []float64{0.30, 0.30, 0.30}, []float64{500, 400, 300})

	// 4 / 0.90 = 4.44 shares, below the 5 share floor.
	_, err := sc.Evaluate(basket, quotes, 4)
	assert.ErrorIs(t, err, domain.ErrSizeBelowMin)
}

func TestEvaluateBudgetExhausted(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 2)
	quotes := makeQuotes(basket, []float64{0.40, 0.50}, []float64{100, 100})

	_, err := sc.Evaluate(basket, quotes, 0)
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)

	_, err = sc.Evaluate(basket, quotes, -1)
	assert.ErrorIs(t, err, domain.ErrBudgetExhausted)
}

func TestEvaluateNoLiquidity(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 2)

	t.Run("missing quote", func(t *testing.T) {
		quotes := makeQuotes(basket, []float64{0.40, 0.50}, []float64{100, 100})
		_, err := sc.Evaluate(basket, quotes[:1], 100)
		assert.ErrorIs(t, err, domain.ErrNoLiquidity)
	})

	t.Run("zero ask", func(t *testing.T) {
		quotes := makeQuotes(basket, []float64{0.40, 0}, []float64{100, 100})
		_, err := sc.Evaluate(basket, quotes, 100)
		assert.ErrorIs(t, err, domain.ErrNoLiquidity)
	})

	t.Run("zero size", func(t *testing.T) {
		quotes := makeQuotes(basket, []float64{0.40, 0.50}, []float64{100, 0})
		_, err := sc.Evaluate(basket, quotes, 100)
		assert.ErrorIs(t, err, domain.ErrNoLiquidity)
	})
}

func TestEvaluateNotProfitable(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 2)

	quotes := makeQuotes(basket, []float64{0.50, 0.50}, []float64{100, 100})
	_, err := sc.Evaluate(basket, quotes, 100)
	assert.ErrorIs(t, err, domain.ErrNotProfitable)

	quotes = makeQuotes(basket, []float64{0.55, 0.50}, []float64{100, 100})
	_, err = sc.Evaluate(basket, quotes, 100)
	assert.ErrorIs(t, err, domain.ErrNotProfitable)
}

func TestEvaluateBelowMinProfit(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 2)

	// 0.99 total cost is ~1.01% profit, under the 2% + 1% fee buffer bar.
	quotes := makeQuotes(basket, []float64{0.49, 0.50}, []float64{100, 100})
	_, err := sc.Evaluate(basket, quotes, 100)
	assert.ErrorIs(t, err, domain.ErrBelowMinProfit)
}

func TestEvaluateSuspiciousProfit(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 2)

	// 0.60 total cost is ~66% profit, almost certainly stale data.
	quotes := makeQuotes(basket, []float64{0.30, 0.30}, []float64{100, 100})
	_, err := sc.Evaluate(basket, quotes, 100)
	assert.ErrorIs(t, err, domain.ErrProfitSuspicious)
}

func TestEvaluateSizeLimitedByThinnestLeg(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 3)
	quotes := makeQuotes(basket, []float64{0.30, 0.30, 0.30}, []float64{500, 12, 300})

	opp, err := sc.Evaluate(basket, quotes, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, opp.ExecutableSize, 1e-9)
}

func TestEvaluateSizeMonotonicInBudget(t *testing.T) {
	sc := New(&stubQuotes{}, testConfig(), testLogger())
	basket := makeBasket("evt1", 3)
	quotes := makeQuotes(basket, []float64{0.30, 0.30, 0.30}, []float64{500, 400, 300})

	prev := 0.0
	for _, budget := range []float64{10, 50, 100, 200, 500, 1000} {
		opp, err := sc.Evaluate(basket, quotes, budget)
		require.NoError(t, err, "budget %v", budget)
		assert.GreaterOrEqual(t, opp.ExecutableSize, prev, "budget %v", budget)
		prev = opp.ExecutableSize
	}
	// Past the liquidity bound the size stops growing.
	assert.InDelta(t, 300.0, prev, 1e-9)
}

func TestScanOrdersByProfitDescending(t *testing.T) {
	books := map[string][]domain.PriceLevel{}
	setBasketBooks := func(basket domain.Basket, ask float64) {
		for _, leg := range basket.Legs {
			books[leg.TokenID] = []domain.PriceLevel{{Price: ask, Size: 100}}
		}
	}

	// evt1 at 0.31x3 = 0.93 (~7.5%), evt2 at 0.30x3 = 0.90 (~11.1%).
	b1 := makeBasket("evt1", 3)
	b2 := makeBasket("evt2", 3)
	setBasketBooks(b1, 0.31)
	setBasketBooks(b2, 0.30)

	sc := New(&stubQuotes{books: books}, testConfig(), testLogger())
	opps := sc.Scan(context.Background(), []domain.Basket{b1, b2}, func(string) float64 { return 100 })

	require.Len(t, opps, 2)
	assert.Equal(t, "evt2", opps[0].Basket.EventID)
	assert.Equal(t, "evt1", opps[1].Basket.EventID)
	assert.Greater(t, opps[0].ProfitPct, opps[1].ProfitPct)
}

func TestScanTiesKeepEncounterOrder(t *testing.T) {
	books := map[string][]domain.PriceLevel{}
	baskets := make([]domain.Basket, 3)
	for i := range baskets {
		baskets[i] = makeBasket(fmt.Sprintf("evt%d", i), 2)
		for _, leg := range baskets[i].Legs {
			books[leg.TokenID] = []domain.PriceLevel{{Price: 0.47, Size: 100}}
		}
	}

	sc := New(&stubQuotes{books: books}, testConfig(), testLogger())
	opps := sc.Scan(context.Background(), baskets, func(string) float64 { return 100 })

	require.Len(t, opps, 3)
	assert.Equal(t, "evt0", opps[0].Basket.EventID)
	assert.Equal(t, "evt1", opps[1].Basket.EventID)
	assert.Equal(t, "evt2", opps[2].Basket.EventID)
}

func TestScanIsolatesBasketFailures(t *testing.T) {
	good := makeBasket("good", 2)
	bad := makeBasket("bad", 2)

	books := map[string][]domain.PriceLevel{}
	for _, leg := range good.Legs {
		books[leg.TokenID] = []domain.PriceLevel{{Price: 0.47, Size: 100}}
	}
	provider := &stubQuotes{
		books: books,
		errs:  map[string]error{bad.Legs[0].TokenID: errors.New("venue timeout")},
	}

	sc := New(provider, testConfig(), testLogger())
	opps := sc.Scan(context.Background(), []domain.Basket{bad, good}, func(string) float64 { return 100 })

	require.Len(t, opps, 1)
	assert.Equal(t, "good", opps[0].Basket.EventID)
}

func TestScanRespectsPerBasketBudget(t *testing.T) {
	books := map[string][]domain.PriceLevel{}
	b1 := makeBasket("funded", 2)
	b2 := makeBasket("spent", 2)
	for _, basket := range []domain.Basket{b1, b2} {
		for _, leg := range basket.Legs {
			books[leg.TokenID] = []domain.PriceLevel{{Price: 0.47, Size: 100}}
		}
	}

	budgets := map[string]float64{"funded": 100, "spent": 0}
	sc := New(&stubQuotes{books: books}, testConfig(), testLogger())
	opps := sc.Scan(context.Background(), []domain.Basket{b1, b2}, func(id string) float64 { return budgets[id] })

	require.Len(t, opps, 1)
	assert.Equal(t, "funded", opps[0].Basket.EventID)
}
