package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// stubProvider returns a fixed rate, or an error when failing is set. It
// counts calls so tests can assert a strategy never touched the network.
type stubProvider struct {
	rate    decimal.Decimal
	failing bool
	calls   int
}

func (p *stubProvider) Fetch(ctx context.Context, pair CurrencyPair) (decimal.Decimal, error) {
	p.calls++
	if p.failing {
		return decimal.Decimal{}, ErrProviderUnavailable
	}
	return p.rate, nil
}

type stubCache struct {
	records map[string]RateRecord
	puts    int
}

func newStubCache() *stubCache {
	return &stubCache{records: make(map[string]RateRecord)}
}

func (c *stubCache) Get(pair CurrencyPair) (RateRecord, bool) {
	rec, ok := c.records[pair.String()]
	return rec, ok
}

func (c *stubCache) Put(rec RateRecord) error {
	c.puts++
	c.records[rec.Pair.String()] = rec
	return nil
}

func mustPair(t *testing.T, base, quote string) CurrencyPair {
	t.Helper()
	pair, err := NewPair(base, quote)
	if err != nil {
		t.Fatalf("NewPair(%s, %s) failed: %v", base, quote, err)
	}
	return pair
}

func TestResolveLiveWritesThrough(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("0.92")}
	cache := newStubCache()
	r := NewResolver(provider, cache, ResolverConfig{})

	rec, err := r.Resolve(context.Background(), mustPair(t, "USD", "EUR"), StrategyLive)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Source != SourceLive {
		t.Errorf("expected live source, got %s", rec.Source)
	}
	if !rec.Rate.Equal(provider.rate) {
		t.Errorf("rate mismatch: got %s", rec.Rate)
	}
	if cache.puts != 1 {
		t.Errorf("expected one cache write, got %d", cache.puts)
	}
}

func TestResolveLiveFailureDoesNotFallBack(t *testing.T) {
	provider := &stubProvider{failing: true}
	cache := newStubCache()
	pair := mustPair(t, "USD", "EUR")
	cache.Put(RateRecord{Pair: pair, Rate: decimal.NewFromInt(1), FetchedAt: time.Now(), Source: SourceLive})
	cache.puts = 0

	r := NewResolver(provider, cache, ResolverConfig{AllowCacheFallback: true})
	_, err := r.Resolve(context.Background(), pair, StrategyLive)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
	if cache.puts != 0 {
		t.Errorf("failed live fetch must not write the cache")
	}
}

func TestResolveCacheNeverTouchesProvider(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("0.92")}
	cache := newStubCache()
	pair := mustPair(t, "USD", "EUR")
	cache.Put(RateRecord{Pair: pair, Rate: decimal.RequireFromString("0.91"), FetchedAt: time.Now(), Source: SourceLive})

	r := NewResolver(provider, cache, ResolverConfig{})
	rec, err := r.Resolve(context.Background(), pair, StrategyCache)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("cache strategy must not call the provider (called %d times)", provider.calls)
	}
	if rec.Source != SourceCache {
		t.Errorf("expected cache source, got %s", rec.Source)
	}
}

func TestResolveCacheMissFails(t *testing.T) {
	provider := &stubProvider{rate: decimal.NewFromInt(1)}
	r := NewResolver(provider, newStubCache(), ResolverConfig{})

	_, err := r.Resolve(context.Background(), mustPair(t, "USD", "EUR"), StrategyCache)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("cache strategy must not call the provider on a miss")
	}
}

func TestResolveAutoPrefersLive(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("0.92")}
	cache := newStubCache()
	pair := mustPair(t, "USD", "EUR")
	cache.Put(RateRecord{Pair: pair, Rate: decimal.RequireFromString("0.50"), FetchedAt: time.Now(), Source: SourceLive})

	r := NewResolver(provider, cache, ResolverConfig{AllowCacheFallback: true})
	rec, err := r.Resolve(context.Background(), pair, StrategyAuto)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Source != SourceLive {
		t.Errorf("auto must prefer the live rate, got source %s", rec.Source)
	}
	if !rec.Rate.Equal(provider.rate) {
		t.Errorf("expected live rate, got %s", rec.Rate)
	}
}

func TestResolveAutoFallsBackToCache(t *testing.T) {
	provider := &stubProvider{failing: true}
	cache := newStubCache()
	pair := mustPair(t, "USD", "EUR")
	cached := RateRecord{Pair: pair, Rate: decimal.RequireFromString("0.91"), FetchedAt: time.Now(), Source: SourceLive}
	cache.Put(cached)

	r := NewResolver(provider, cache, ResolverConfig{AllowCacheFallback: true})
	rec, err := r.Resolve(context.Background(), pair, StrategyAuto)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if rec.Source != SourceCache {
		t.Errorf("expected cache source, got %s", rec.Source)
	}
	if !rec.Rate.Equal(cached.Rate) {
		t.Errorf("expected cached rate, got %s", rec.Rate)
	}
}

func TestResolveAutoFallbackDisabled(t *testing.T) {
	provider := &stubProvider{failing: true}
	cache := newStubCache()
	pair := mustPair(t, "USD", "EUR")
	cache.Put(RateRecord{Pair: pair, Rate: decimal.RequireFromString("0.91"), FetchedAt: time.Now(), Source: SourceLive})

	r := NewResolver(provider, cache, ResolverConfig{AllowCacheFallback: false})
	_, err := r.Resolve(context.Background(), pair, StrategyAuto)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestResolveAutoFailsWhenBothExhausted(t *testing.T) {
	provider := &stubProvider{failing: true}
	r := NewResolver(provider, newStubCache(), ResolverConfig{AllowCacheFallback: true})

	_, err := r.Resolve(context.Background(), mustPair(t, "USD", "EUR"), StrategyAuto)
	if !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestResolveIdentityPairShortCircuits(t *testing.T) {
	provider := &stubProvider{failing: true}
	cache := newStubCache()
	r := NewResolver(provider, cache, ResolverConfig{})

	for _, strategy := range []Strategy{StrategyAuto, StrategyLive, StrategyCache} {
		rec, err := r.Resolve(context.Background(), mustPair(t, "USD", "USD"), strategy)
		if err != nil {
			t.Fatalf("identity resolve (%s) failed: %v", strategy, err)
		}
		if !rec.Rate.Equal(decimal.NewFromInt(1)) {
			t.Errorf("identity rate must be 1, got %s", rec.Rate)
		}
		if rec.Source != SourceLive {
			t.Errorf("identity source must be live, got %s", rec.Source)
		}
	}
	if provider.calls != 0 {
		t.Errorf("identity pair must not call the provider")
	}
	if cache.puts != 0 {
		t.Errorf("identity pair must not write the cache")
	}
}

func TestResolveAllowlistBlocksBeforeIO(t *testing.T) {
	provider := &stubProvider{rate: decimal.NewFromInt(1)}
	cache := newStubCache()
	r := NewResolver(provider, cache, ResolverConfig{
		AllowedCurrencies:  []Code{"USD", "EUR"},
		AllowCacheFallback: true,
	})

	_, err := r.Resolve(context.Background(), mustPair(t, "USD", "JPY"), StrategyAuto)
	if !errors.Is(err, ErrCurrencyNotAllowed) {
		t.Fatalf("expected ErrCurrencyNotAllowed, got %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("allowlist violation must not reach the provider")
	}

	// Disallowed identity pairs are rejected too.
	_, err = r.Resolve(context.Background(), mustPair(t, "JPY", "JPY"), StrategyAuto)
	if !errors.Is(err, ErrCurrencyNotAllowed) {
		t.Fatalf("expected ErrCurrencyNotAllowed for identity pair, got %v", err)
	}
}

func TestResolveRecordsFetches(t *testing.T) {
	provider := &stubProvider{rate: decimal.RequireFromString("0.92")}
	r := NewResolver(provider, newStubCache(), ResolverConfig{})

	var recorded []RateRecord
	r.SetRecorder(recorderFunc(func(ctx context.Context, rec RateRecord) error {
		recorded = append(recorded, rec)
		return nil
	}))

	if _, err := r.Resolve(context.Background(), mustPair(t, "USD", "EUR"), StrategyLive); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(recorded) != 1 {
		t.Fatalf("expected 1 recorded fetch, got %d", len(recorded))
	}
	if recorded[0].Source != SourceLive {
		t.Errorf("recorded source must be live")
	}
}

type recorderFunc func(ctx context.Context, rec RateRecord) error

func (f recorderFunc) RecordFetch(ctx context.Context, rec RateRecord) error { return f(ctx, rec) }
