package price

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeSource is a scriptable quote.Source that counts invocations.
type fakeSource struct {
	mu    sync.Mutex
	calls int
	price float64
	err   error

	// gate, when non-nil, blocks Fetch until closed. started is closed
	// once the first blocked Fetch has begun.
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeSource) Fetch(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		f.once.Do(func() { close(f.started) })
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) set(price float64, err error) {
	f.mu.Lock()
	f.price = price
	f.err = err
	f.mu.Unlock()
}

// fakeClock lets tests move time deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, src *fakeSource) (*Cache, *fakeClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewCache(src, map[string]string{"gold": "GC=F", "silver": "SI=F"}, 0, logger)
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clk.Now
	return c, clk
}

func TestGetPriceCachesWithinWindow(t *testing.T) {
	src := &fakeSource{price: 2000.0}
	c, clk := newTestCache(t, src)
	ctx := context.Background()

	first, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if first.Price != 2000.0 {
		t.Errorf("price: got %v, want 2000.0", first.Price)
	}
	if first.Currency != "USD" || first.Unit != "per troy ounce" {
		t.Errorf("quote shape: got %q/%q", first.Currency, first.Unit)
	}

	// 30s later is inside the window: same quote, no new fetch.
	clk.Advance(30 * time.Second)
	src.set(2222.0, nil)
	second, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("GetPrice (cached): %v", err)
	}
	if second != first {
		t.Errorf("expected identical cached quote, got %+v vs %+v", second, first)
	}
	if src.callCount() != 1 {
		t.Errorf("calls: got %d, want 1", src.callCount())
	}
}

func TestGetPriceRefreshesAfterWindow(t *testing.T) {
	src := &fakeSource{price: 2000.0}
	c, clk := newTestCache(t, src)
	ctx := context.Background()

	if _, err := c.GetPrice(ctx, "gold"); err != nil {
		t.Fatalf("GetPrice: %v", err)
	}

	clk.Advance(70 * time.Second)
	src.set(2100.0, nil)
	q, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("GetPrice (refresh): %v", err)
	}
	if q.Price != 2100.0 {
		t.Errorf("price: got %v, want 2100.0", q.Price)
	}
	if src.callCount() != 2 {
		t.Errorf("calls: got %d, want 2", src.callCount())
	}
}

func TestStaleRetainedOnRefreshFailure(t *testing.T) {
	src := &fakeSource{price: 2000.0}
	c, clk := newTestCache(t, src)
	ctx := context.Background()

	first, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}

	clk.Advance(2 * time.Minute)
	src.set(0, errors.New("provider down"))
	q, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("expected stale quote, got error: %v", err)
	}
	if q != first {
		t.Errorf("expected retained stale quote, got %+v", q)
	}
}

func TestColdCacheFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("provider down")}
	c, _ := newTestCache(t, src)

	_, err := c.GetPrice(context.Background(), "gold")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestUnknownCommodity(t *testing.T) {
	src := &fakeSource{price: 2000.0}
	c, _ := newTestCache(t, src)

	_, err := c.GetPrice(context.Background(), "rhodium")
	if !errors.Is(err, ErrUnknownCommodity) {
		t.Fatalf("expected ErrUnknownCommodity, got %v", err)
	}
	if src.callCount() != 0 {
		t.Errorf("source should not be called for unknown commodity, got %d calls", src.callCount())
	}
}

func TestRejectsUnusablePrices(t *testing.T) {
	for _, bad := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		src := &fakeSource{price: bad}
		c, _ := newTestCache(t, src)

		if _, err := c.GetPrice(context.Background(), "gold"); !errors.Is(err, ErrSourceUnavailable) {
			t.Errorf("price %v: expected ErrSourceUnavailable, got %v", bad, err)
		}
	}
}

func TestUnusablePriceDoesNotEvictStaleQuote(t *testing.T) {
	src := &fakeSource{price: 2000.0}
	c, clk := newTestCache(t, src)
	ctx := context.Background()

	first, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}

	clk.Advance(2 * time.Minute)
	src.set(math.NaN(), nil)
	q, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("expected stale quote, got error: %v", err)
	}
	if q != first {
		t.Errorf("expected retained quote, got %+v", q)
	}
}

func TestSingleFlightRefresh(t *testing.T) {
	src := &fakeSource{
		price:   2000.0,
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	c, _ := newTestCache(t, src)

	const n = 10
	results := make(chan float64, n)
	errs := make(chan error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			q, err := c.GetPrice(context.Background(), "gold")
			if err != nil {
				errs <- err
				return
			}
			results <- q.Price
		}()
	}

	// Wait for one fetch to be in flight, give the stragglers a moment to
	// pile onto the group, then release.
	<-src.started
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("GetPrice: %v", err)
	}
	for p := range results {
		if p != 2000.0 {
			t.Errorf("price: got %v, want 2000.0", p)
		}
	}
	if src.callCount() != 1 {
		t.Errorf("expected exactly one upstream fetch, got %d", src.callCount())
	}
}

func TestCommoditiesSorted(t *testing.T) {
	src := &fakeSource{}
	c, _ := newTestCache(t, src)

	got := c.Commodities()
	want := []string{"gold", "silver"}
	if len(got) != len(want) {
		t.Fatalf("commodities: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("commodities: got %v, want %v", got, want)
		}
	}
}

func TestIndependentCommoditySlots(t *testing.T) {
	src := &fakeSource{price: 2000.0}
	c, _ := newTestCache(t, src)
	ctx := context.Background()

	gold, err := c.GetPrice(ctx, "gold")
	if err != nil {
		t.Fatalf("GetPrice(gold): %v", err)
	}
	src.set(25.0, nil)
	silver, err := c.GetPrice(ctx, "silver")
	if err != nil {
		t.Fatalf("GetPrice(silver): %v", err)
	}
	if gold.Price == silver.Price {
		t.Error("expected independent slots per commodity")
	}
	if src.callCount() != 2 {
		t.Errorf("calls: got %d, want 2", src.callCount())
	}
}
