// Package manager wires the exchange resolver, the encrypted rate cache and
// the locale resolver behind one currency-safe facade.
package manager

import (
	"context"
	"fmt"

	"github.com/gopenny/gopenny/internal/config"
	"github.com/gopenny/gopenny/internal/exchange"
	"github.com/gopenny/gopenny/internal/locale"
	"github.com/gopenny/gopenny/internal/money"
	"github.com/gopenny/gopenny/internal/ratecache"
)

// DefaultLocale is used by Format when the caller names no locale.
const DefaultLocale = "en_US"

// Manager is the public facade over money creation, conversion, formatting
// and cache management. One Manager is shared per configured cache path;
// it is safe for concurrent use.
type Manager struct {
	cfg             config.Currency
	defaultStrategy exchange.Strategy
	allowed         map[exchange.Code]struct{} // nil means unrestricted

	resolver *exchange.Resolver
	cache    *ratecache.Store
}

// Option customizes the Manager construction.
type Option func(*options)

type options struct {
	provider exchange.Provider
	recorder exchange.FetchRecorder
}

// WithProvider injects a live-rate provider (tests use stubs here).
func WithProvider(p exchange.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithRecorder attaches an audit sink for successful live fetches.
func WithRecorder(r exchange.FetchRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// New validates cfg and builds the manager, opening (or initializing) the
// encrypted cache container.
func New(cfg config.Currency, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = exchange.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderTimeout)
	}

	var allowed map[exchange.Code]struct{}
	var allowedCodes []exchange.Code
	if len(cfg.AllowedCurrencies) > 0 {
		allowed = make(map[exchange.Code]struct{}, len(cfg.AllowedCurrencies))
		for _, raw := range cfg.AllowedCurrencies {
			c, err := exchange.ParseCode(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: allowed currency %q", config.ErrConfiguration, raw)
			}
			allowed[c] = struct{}{}
			allowedCodes = append(allowedCodes, c)
		}
	}

	cache, err := ratecache.New(ratecache.Config{
		Path:            cfg.CachePath,
		Secret:          cfg.CacheSecret,
		ApplicationName: cfg.ApplicationName,
		MaxRecords:      cfg.CacheMaxRecords,
		RetentionDays:   cfg.CacheRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	resolver := exchange.NewResolver(o.provider, cache, exchange.ResolverConfig{
		AllowedCurrencies:  allowedCodes,
		AllowCacheFallback: cfg.AllowCacheFallback,
	})
	if o.recorder != nil {
		resolver.SetRecorder(o.recorder)
	}

	strategy, err := exchange.ParseStrategy(cfg.DefaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	return &Manager{
		cfg:             cfg,
		defaultStrategy: strategy,
		allowed:         allowed,
		resolver:        resolver,
		cache:           cache,
	}, nil
}

// NewMoney validates the currency code, enforces the allowlist and builds
// the monetary value.
func (m *Manager) NewMoney(amount, code string) (money.Money, error) {
	c, err := exchange.ParseCode(code)
	if err != nil {
		return money.Money{}, err
	}
	if err := m.checkAllowed(c); err != nil {
		return money.Money{}, err
	}
	return money.NewFromString(amount, string(c))
}

// Rate resolves the (base, quote) rate under the named strategy; an empty
// strategy uses the configured default.
func (m *Manager) Rate(ctx context.Context, base, quote, strategy string) (exchange.RateRecord, error) {
	pair, err := exchange.NewPair(base, quote)
	if err != nil {
		return exchange.RateRecord{}, err
	}
	st, err := m.strategyOrDefault(strategy)
	if err != nil {
		return exchange.RateRecord{}, err
	}
	return m.resolver.Resolve(ctx, pair, st)
}

// Convert exchanges val into the target currency, returning the converted
// money together with the rate record that produced it.
func (m *Manager) Convert(ctx context.Context, val money.Money, to, strategy string) (money.Money, exchange.RateRecord, error) {
	rec, err := m.Rate(ctx, string(val.Code()), to, strategy)
	if err != nil {
		return money.Money{}, exchange.RateRecord{}, err
	}
	return money.New(val.Amount().Mul(rec.Rate), rec.Pair.Quote), rec, nil
}

// Format renders val with the conventions of the fuzzy-resolved locale.
// An empty localeInput falls back to DefaultLocale.
func (m *Manager) Format(val money.Money, localeInput string) (string, error) {
	if localeInput == "" {
		localeInput = DefaultLocale
	}
	tok, err := locale.Resolve(localeInput)
	if err != nil {
		return "", err
	}
	return money.Format(val, tok)
}

// ResolveLocale exposes the fuzzy locale resolution.
func (m *Manager) ResolveLocale(input string) (locale.Token, error) {
	return locale.Resolve(input)
}

// CacheStats returns a point-in-time cache snapshot.
func (m *Manager) CacheStats() ratecache.Stats {
	return m.cache.Stats()
}

// CleanupCache sweeps records older than the configured retention and
// returns the removed count.
func (m *Manager) CleanupCache() (int, error) {
	return m.cache.Cleanup(m.cfg.CacheRetentionDays)
}

// Cache exposes the underlying store for components that refresh it
// directly (the background worker).
func (m *Manager) Cache() *ratecache.Store { return m.cache }

// Close releases the manager. Every mutation is already persisted at the
// time it happens, so this only exists so callers can treat the manager
// like any other resource handle.
func (m *Manager) Close() error { return nil }

func (m *Manager) strategyOrDefault(strategy string) (exchange.Strategy, error) {
	if strategy == "" {
		return m.defaultStrategy, nil
	}
	return exchange.ParseStrategy(strategy)
}

func (m *Manager) checkAllowed(c exchange.Code) error {
	if m.allowed == nil {
		return nil
	}
	if _, ok := m.allowed[c]; !ok {
		return fmt.Errorf("%w: %s", exchange.ErrCurrencyNotAllowed, c)
	}
	return nil
}
