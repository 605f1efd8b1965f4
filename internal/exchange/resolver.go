package exchange

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gopenny/gopenny/internal/metrics"
)

// CacheStore is the slice of the rate cache the resolver needs: latest
// record per pair, write-through persistence.
type CacheStore interface {
	Get(pair CurrencyPair) (RateRecord, bool)
	Put(rec RateRecord) error
}

// FetchRecorder receives an audit copy of every successful live fetch.
// Recording is best-effort and never blocks a resolution result.
type FetchRecorder interface {
	RecordFetch(ctx context.Context, rec RateRecord) error
}

// Resolver produces a rate for a currency pair per the configured strategy,
// orchestrating the live provider and the cache store.
type Resolver struct {
	provider Provider
	cache    CacheStore
	recorder FetchRecorder // may be nil

	allowed       map[Code]struct{} // nil means unrestricted
	allowFallback bool
}

// ResolverConfig carries the policy knobs for a Resolver.
type ResolverConfig struct {
	// AllowedCurrencies restricts which codes may take part in a
	// resolution. Empty means unrestricted.
	AllowedCurrencies []Code
	// AllowCacheFallback permits the auto strategy to serve a cached rate
	// when the live fetch fails.
	AllowCacheFallback bool
}

func NewResolver(provider Provider, cache CacheStore, cfg ResolverConfig) *Resolver {
	r := &Resolver{
		provider:      provider,
		cache:         cache,
		allowFallback: cfg.AllowCacheFallback,
	}
	if len(cfg.AllowedCurrencies) > 0 {
		r.allowed = make(map[Code]struct{}, len(cfg.AllowedCurrencies))
		for _, c := range cfg.AllowedCurrencies {
			r.allowed[c] = struct{}{}
		}
	}
	return r
}

// SetRecorder attaches an audit sink for live fetches.
func (r *Resolver) SetRecorder(rec FetchRecorder) { r.recorder = rec }

// Resolve returns a rate record for pair under the given strategy.
//
// The strategy decision is a small fixed state machine:
//
//	live:  fetch -> put -> return; no fallback on failure
//	cache: get -> return; never touches the network
//	auto:  try live; on provider failure consult the fallback flag, then
//	       the cache; fail if both are exhausted
func (r *Resolver) Resolve(ctx context.Context, pair CurrencyPair, strategy Strategy) (RateRecord, error) {
	if err := r.checkAllowed(pair); err != nil {
		return RateRecord{}, err
	}

	// Identity pairs short-circuit for every strategy.
	if pair.Identity() {
		return RateRecord{
			Pair:      pair,
			Rate:      decimal.NewFromInt(1),
			FetchedAt: time.Now().UTC(),
			Source:    SourceLive,
		}, nil
	}

	rec, err := r.resolve(ctx, pair, strategy)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ResolutionsTotal.WithLabelValues(string(strategy), outcome).Inc()
	return rec, err
}

func (r *Resolver) resolve(ctx context.Context, pair CurrencyPair, strategy Strategy) (RateRecord, error) {
	switch strategy {
	case StrategyLive:
		return r.resolveLive(ctx, pair)

	case StrategyCache:
		return r.resolveCache(pair)

	case StrategyAuto, "":
		rec, liveErr := r.resolveLive(ctx, pair)
		if liveErr == nil {
			return rec, nil
		}
		if !r.allowFallback {
			return RateRecord{}, fmt.Errorf("%w: %s: live fetch failed and cache fallback is disabled: %v",
				ErrRateUnavailable, pair, liveErr)
		}
		if cached, ok := r.cacheGet(pair); ok {
			return cached, nil
		}
		return RateRecord{}, fmt.Errorf("%w: %s: live fetch failed and no cached rate exists: %v",
			ErrRateUnavailable, pair, liveErr)

	default:
		return RateRecord{}, fmt.Errorf("unknown exchange strategy %q", strategy)
	}
}

func (r *Resolver) resolveLive(ctx context.Context, pair CurrencyPair) (RateRecord, error) {
	rate, err := r.provider.Fetch(ctx, pair)
	if err != nil {
		return RateRecord{}, fmt.Errorf("%w: %s: %v", ErrRateUnavailable, pair, err)
	}

	rec := RateRecord{
		Pair:      pair,
		Rate:      rate,
		FetchedAt: time.Now().UTC(),
		Source:    SourceLive,
	}

	// Persistence is write-through and best-effort: a cache write failure
	// must not discard a rate we already hold. Two concurrent live
	// resolutions for the same pair may both land here; Put is defined as
	// idempotent replacement, last successful write wins.
	if err := r.cache.Put(rec); err != nil {
		log.Printf("exchange: cache put for %s failed: %v", pair, err)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordFetch(ctx, rec); err != nil {
			log.Printf("exchange: history record for %s failed: %v", pair, err)
		}
	}
	return rec, nil
}

func (r *Resolver) resolveCache(pair CurrencyPair) (RateRecord, error) {
	if rec, ok := r.cacheGet(pair); ok {
		return rec, nil
	}
	return RateRecord{}, fmt.Errorf("%w: %s: no cached rate", ErrRateUnavailable, pair)
}

func (r *Resolver) cacheGet(pair CurrencyPair) (RateRecord, bool) {
	rec, ok := r.cache.Get(pair)
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return RateRecord{}, false
	}
	metrics.CacheHitsTotal.Inc()
	rec.Source = SourceCache
	return rec, true
}

func (r *Resolver) checkAllowed(pair CurrencyPair) error {
	if r.allowed == nil {
		return nil
	}
	for _, c := range []Code{pair.Base, pair.Quote} {
		if _, ok := r.allowed[c]; !ok {
			return fmt.Errorf("%w: %s (pair %s)", ErrCurrencyNotAllowed, c, pair)
		}
	}
	return nil
}
