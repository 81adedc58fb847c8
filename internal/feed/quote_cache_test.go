package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

func snapshot(tokenID string, asks ...domain.PriceLevel) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		TokenID:   tokenID,
		Asks:      asks,
		Timestamp: time.Now(),
	}
}

func TestAsksMissBeforeSnapshot(t *testing.T) {
	c := NewQuoteCache(0)

	levels, ok := c.Asks("tok")
	assert.False(t, ok)
	assert.Nil(t, levels)

	_, ok = c.Staleness("tok")
	assert.False(t, ok)
}

func TestSnapshotMakesInstrumentReady(t *testing.T) {
	c := NewQuoteCache(0)

	c.ApplySnapshot(snapshot("tok",
		domain.PriceLevel{Price: 0.40, Size: 100},
		domain.PriceLevel{Price: 0.35, Size: 50},
	))

	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 2)
	assert.Equal(t, 0.35, levels[0].Price)
	assert.Equal(t, 0.40, levels[1].Price)

	age, ok := c.Staleness("tok")
	require.True(t, ok)
	assert.Less(t, age, time.Second)
}

func TestSnapshotDropsNonPositiveLevels(t *testing.T) {
	c := NewQuoteCache(0)

	c.ApplySnapshot(snapshot("tok",
		domain.PriceLevel{Price: 0.30, Size: 10},
		domain.PriceLevel{Price: 0, Size: 10},
		domain.PriceLevel{Price: 0.40, Size: 0},
	))

	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 1)
	assert.Equal(t, 0.30, levels[0].Price)
}

func TestChangeBeforeSnapshotIsDropped(t *testing.T) {
	c := NewQuoteCache(0)

	c.ApplyChange(domain.PriceChange{
		TokenID: "tok",
		Side:    string(domain.OrderSideSell),
		Price:   0.50,
		Size:    10,
	})

	_, ok := c.Asks("tok")
	assert.False(t, ok)
}

func TestChangeUpsertsAndRemovesLevels(t *testing.T) {
	c := NewQuoteCache(0)
	c.ApplySnapshot(snapshot("tok", domain.PriceLevel{Price: 0.30, Size: 10}))

	c.ApplyChange(domain.PriceChange{
		TokenID: "tok", Side: string(domain.OrderSideSell), Price: 0.25, Size: 5,
	})
	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 2)
	assert.Equal(t, 0.25, levels[0].Price)

	// Size 0 removes the level.
	c.ApplyChange(domain.PriceChange{
		TokenID: "tok", Side: string(domain.OrderSideSell), Price: 0.30, Size: 0,
	})
	levels, ok = c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 1)
	assert.Equal(t, 0.25, levels[0].Price)
}

func TestBidChangesIgnored(t *testing.T) {
	c := NewQuoteCache(0)
	c.ApplySnapshot(snapshot("tok", domain.PriceLevel{Price: 0.30, Size: 10}))

	c.ApplyChange(domain.PriceChange{
		TokenID: "tok", Side: string(domain.OrderSideBuy), Price: 0.20, Size: 99,
	})

	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 1)
	assert.Equal(t, 0.30, levels[0].Price)
}

func TestAsksCappedAtMaxLevels(t *testing.T) {
	c := NewQuoteCache(3)

	snap := domain.OrderbookSnapshot{TokenID: "tok"}
	for i := 1; i <= 6; i++ {
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: float64(i) / 10, Size: 10})
	}
	c.ApplySnapshot(snap)

	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 3)
	assert.Equal(t, 0.10, levels[0].Price)
	assert.Equal(t, 0.30, levels[2].Price)
}

func TestSnapshotReplacesBook(t *testing.T) {
	c := NewQuoteCache(0)
	c.ApplySnapshot(snapshot("tok",
		domain.PriceLevel{Price: 0.30, Size: 10},
		domain.PriceLevel{Price: 0.40, Size: 10},
	))
	c.ApplySnapshot(snapshot("tok", domain.PriceLevel{Price: 0.55, Size: 7}))

	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 1)
	assert.Equal(t, 0.55, levels[0].Price)
	assert.Equal(t, 7.0, levels[0].Size)
}

func TestInvalidateMissesUntilFreshSnapshot(t *testing.T) {
	c := NewQuoteCache(0)
	c.ApplySnapshot(snapshot("tok", domain.PriceLevel{Price: 0.30, Size: 10}))

	c.Invalidate()

	// A possibly-gapped book must not serve reads.
	_, ok := c.Asks("tok")
	assert.False(t, ok)
	_, ok = c.Staleness("tok")
	assert.False(t, ok)

	// Changes received before the new snapshot stay dropped.
	c.ApplyChange(domain.PriceChange{
		TokenID: "tok", Side: string(domain.OrderSideSell), Price: 0.25, Size: 5,
	})
	_, ok = c.Asks("tok")
	assert.False(t, ok)

	c.ApplySnapshot(snapshot("tok", domain.PriceLevel{Price: 0.32, Size: 7}))
	levels, ok := c.Asks("tok")
	require.True(t, ok)
	require.Len(t, levels, 1)
	assert.Equal(t, 0.32, levels[0].Price)
}

func TestStatsCountHitsAndMisses(t *testing.T) {
	c := NewQuoteCache(0)
	c.ApplySnapshot(snapshot("tok", domain.PriceLevel{Price: 0.30, Size: 10}))

	c.Asks("tok")
	c.Asks("tok")
	c.Asks("unknown")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Ready)
}
