// Package feed maintains live ask-side orderbook state from the Polymarket
// market data WebSocket.
package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/Bo-Bear/Arbi-bot/internal/domain"
)

// CacheStats reports read traffic and cache population.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Books  int // instruments with any cached state
	Ready  int // instruments that have received a snapshot
}

// QuoteCache holds the latest ask book per instrument. A snapshot replaces
// the cached book and marks the instrument ready; deltas are applied only to
// ready instruments so that incremental data can never produce a
// partially-initialized book. Reads on a non-ready instrument are misses,
// never an empty book.
//
// The cache is single-writer: only the feed's read goroutine calls the apply
// methods. Readers may call Asks/Staleness from any goroutine.
type QuoteCache struct {
	mu         sync.RWMutex
	asks       map[string]map[float64]float64 // tokenID -> price -> size
	ready      map[string]struct{}
	lastUpdate map[string]time.Time

	hits   uint64
	misses uint64

	maxLevels int
}

// NewQuoteCache creates an empty cache. maxLevels bounds how many ask levels
// Asks returns per instrument; 0 means the default of 10.
func NewQuoteCache(maxLevels int) *QuoteCache {
	if maxLevels <= 0 {
		maxLevels = 10
	}
	return &QuoteCache{
		asks:       make(map[string]map[float64]float64),
		ready:      make(map[string]struct{}),
		lastUpdate: make(map[string]time.Time),
		maxLevels:  maxLevels,
	}
}

// ApplySnapshot replaces the instrument's ask book and marks it ready.
func (c *QuoteCache) ApplySnapshot(snap domain.OrderbookSnapshot) {
	book := make(map[float64]float64, len(snap.Asks))
	for _, lvl := range snap.Asks {
		if lvl.Price > 0 && lvl.Size > 0 {
			book[lvl.Price] = lvl.Size
		}
	}

	c.mu.Lock()
	c.asks[snap.TokenID] = book
	c.ready[snap.TokenID] = struct{}{}
	c.lastUpdate[snap.TokenID] = time.Now()
	c.mu.Unlock()
}

// ApplyChange upserts or removes a single ask level. Changes for instruments
// that have not yet received a snapshot are dropped, as are bid-side changes.
func (c *QuoteCache) ApplyChange(change domain.PriceChange) {
	if change.Side != string(domain.OrderSideSell) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ready[change.TokenID]; !ok {
		return
	}

	book := c.asks[change.TokenID]
	if book == nil {
		book = make(map[float64]float64)
		c.asks[change.TokenID] = book
	}

	if change.Size <= 0 {
		delete(book, change.Price)
	} else {
		book[change.Price] = change.Size
	}
	c.lastUpdate[change.TokenID] = time.Now()
}

// Asks returns the instrument's ask levels sorted ascending by price, capped
// at maxLevels. ok is false when the instrument has not received a snapshot
// yet; callers must treat that as "no data" and fall back to a direct fetch.
func (c *QuoteCache) Asks(tokenID string) ([]domain.PriceLevel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ready := c.ready[tokenID]; !ready {
		c.misses++
		return nil, false
	}
	c.hits++

	book := c.asks[tokenID]
	levels := make([]domain.PriceLevel, 0, len(book))
	for price, size := range book {
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	if len(levels) > c.maxLevels {
		levels = levels[:c.maxLevels]
	}
	return levels, true
}

// Staleness reports the time since the instrument's book was last touched by
// the feed. ok is false when the instrument is not ready.
func (c *QuoteCache) Staleness(tokenID string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ready := c.ready[tokenID]; !ready {
		return 0, false
	}
	last, ok := c.lastUpdate[tokenID]
	if !ok {
		return 0, false
	}
	return time.Since(last), true
}

// Invalidate clears readiness for every instrument. The feed calls it when
// the stream disconnects: until a fresh snapshot lands post-reconnect, reads
// must miss rather than serve a book that may have moved while the feed was
// down.
func (c *QuoteCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = make(map[string]struct{})
}

// Ready reports whether the instrument has received a full snapshot.
func (c *QuoteCache) Ready(tokenID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ready[tokenID]
	return ok
}

// Stats returns a point-in-time view of cache traffic.
func (c *QuoteCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Books:  len(c.asks),
		Ready:  len(c.ready),
	}
}
