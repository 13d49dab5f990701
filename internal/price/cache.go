// Package price implements the in-process spot price cache. Each commodity
// has one cached quote and a freshness window; a stale slot is refreshed
// through a single-flight group so concurrent requests share one upstream
// fetch, and a failed refresh falls back to the last good quote rather than
// erroring while any cached value exists.
package price

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/troyapi/troy/internal/model"
	"github.com/troyapi/troy/internal/quote"
)

var (
	// ErrUnknownCommodity is returned for commodities with no configured
	// ticker symbol.
	ErrUnknownCommodity = errors.New("unknown commodity")

	// ErrSourceUnavailable is returned when a quote is needed, the source
	// failed, and nothing was ever cached for the commodity.
	ErrSourceUnavailable = errors.New("price source unavailable")
)

// DefaultFreshnessWindow bounds how old a cached quote may be before a
// refresh is attempted. Spot reference prices move slowly enough that a
// minute of staleness is acceptable, and the window caps load on the
// upstream provider.
const DefaultFreshnessWindow = 60 * time.Second

// Cache serves spot quotes for a fixed set of commodities.
type Cache struct {
	source  quote.Source
	symbols map[string]string // commodity -> ticker symbol
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	slots map[string]model.Quote
}

// NewCache creates a cache over source for the given commodity→symbol table.
// Pass 0 to use DefaultFreshnessWindow.
func NewCache(source quote.Source, symbols map[string]string, window time.Duration, logger *slog.Logger) *Cache {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	return &Cache{
		source:  source,
		symbols: symbols,
		window:  window,
		logger:  logger,
		now:     time.Now,
		slots:   make(map[string]model.Quote),
	}
}

// Commodities returns the configured commodity names, sorted.
func (c *Cache) Commodities() []string {
	names := make([]string, 0, len(c.symbols))
	for name := range c.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPrice returns a quote for the commodity, refreshing it from the source
// when the cached value is missing or older than the freshness window. A
// refresh failure is absorbed by serving the previous quote when one exists;
// only a cold cache plus a failed fetch surfaces ErrSourceUnavailable.
func (c *Cache) GetPrice(ctx context.Context, commodity string) (model.Quote, error) {
	symbol, ok := c.symbols[commodity]
	if !ok {
		return model.Quote{}, ErrUnknownCommodity
	}

	if q, ok := c.cached(commodity); ok && c.fresh(q) {
		return q, nil
	}

	// Concurrent stale observers coalesce into one upstream fetch per
	// commodity and share its outcome.
	v, err, _ := c.group.Do(commodity, func() (interface{}, error) {
		return c.refresh(ctx, commodity, symbol)
	})
	if err != nil {
		return model.Quote{}, err
	}
	return v.(model.Quote), nil
}

// refresh runs inside the single-flight group. The source call happens
// without holding the cache lock; the lock guards only the slot swap.
func (c *Cache) refresh(ctx context.Context, commodity, symbol string) (model.Quote, error) {
	// A waiter queued behind a finished flight re-enters here; if the slot
	// was refreshed in the meantime there is nothing left to do.
	if q, ok := c.cached(commodity); ok && c.fresh(q) {
		return q, nil
	}

	price, err := c.source.Fetch(ctx, symbol)
	if err == nil && !validPrice(price) {
		err = errors.New("source returned unusable price")
	}
	if err != nil {
		// Stale-retained: keep serving the previous quote through provider
		// hiccups. Only a cache that never held a value errors out.
		if q, ok := c.cached(commodity); ok {
			c.logger.Warn("price refresh failed, serving stale quote",
				"commodity", commodity, "symbol", symbol,
				"age", c.now().Sub(q.FetchedAt).Round(time.Second), "error", err)
			return q, nil
		}
		c.logger.Error("price fetch failed with cold cache",
			"commodity", commodity, "symbol", symbol, "error", err)
		return model.Quote{}, ErrSourceUnavailable
	}

	q := model.Quote{
		Commodity: commodity,
		Price:     price,
		Currency:  model.QuoteCurrency,
		Unit:      model.QuoteUnit,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	c.slots[commodity] = q
	c.mu.Unlock()

	return q, nil
}

// cached reads the commodity's slot as an atomic (quote, timestamp) unit.
func (c *Cache) cached(commodity string) (model.Quote, bool) {
	c.mu.RLock()
	q, ok := c.slots[commodity]
	c.mu.RUnlock()
	return q, ok
}

func (c *Cache) fresh(q model.Quote) bool {
	return c.now().Sub(q.FetchedAt) <= c.window
}

// validPrice rejects non-finite, zero, and negative prices; a source
// producing one of those is treated as a failed fetch, never cached.
func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}
