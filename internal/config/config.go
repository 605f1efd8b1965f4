package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrConfiguration indicates an invalid configuration value.
var ErrConfiguration = errors.New("configuration error")

// Defaults.
const (
	DefaultCacheMaxRecords    = 1000
	DefaultCacheRetentionDays = 30
	DefaultProviderTimeout    = 10 * time.Second
	DefaultProviderURL        = "https://api.gopenny.dev/rates"
)

// Currency is the immutable configuration for one CurrencyManager instance.
// Construct it, call Validate once, and never mutate it afterwards.
type Currency struct {
	// ApplicationName namespaces the cache file and its key derivation.
	ApplicationName string

	// AllowCacheFallback permits the auto strategy to serve a cached rate
	// when the live fetch fails. A strict deployment leaves this false so
	// a stale rate is never served silently.
	AllowCacheFallback bool

	// AllowedCurrencies restricts usable currency codes. Nil or empty
	// means unrestricted.
	AllowedCurrencies []string

	// DefaultStrategy is used when a caller does not name one:
	// auto, live or cache.
	DefaultStrategy string

	// CacheMaxRecords bounds the rate cache size (must be positive).
	CacheMaxRecords int

	// CacheRetentionDays is the age after which cached records are
	// eligible for removal (must be >= 0).
	CacheRetentionDays int

	// CachePath overrides the container location. Empty derives a path
	// under the user cache dir from ApplicationName.
	CachePath string

	// CacheSecret is the key material for the encrypted container.
	// Empty falls back to ApplicationName.
	CacheSecret string

	// ProviderURL and ProviderTimeout configure the live-rate client.
	ProviderURL     string
	ProviderTimeout time.Duration
}

// NewCurrency returns a Currency with defaults filled in for applicationName.
func NewCurrency(applicationName string) Currency {
	return Currency{
		ApplicationName:    applicationName,
		AllowCacheFallback: true,
		DefaultStrategy:    "auto",
		CacheMaxRecords:    DefaultCacheMaxRecords,
		CacheRetentionDays: DefaultCacheRetentionDays,
		ProviderURL:        DefaultProviderURL,
		ProviderTimeout:    DefaultProviderTimeout,
	}
}

// Validate checks the configuration and fills derivable fields.
func (c *Currency) Validate() error {
	if c.ApplicationName == "" {
		return fmt.Errorf("%w: application name is required", ErrConfiguration)
	}
	switch c.DefaultStrategy {
	case "":
		c.DefaultStrategy = "auto"
	case "auto", "live", "cache":
	default:
		return fmt.Errorf("%w: unknown default strategy %q (want auto, live or cache)", ErrConfiguration, c.DefaultStrategy)
	}
	if c.CacheMaxRecords <= 0 {
		return fmt.Errorf("%w: cache max records must be positive (got %d)", ErrConfiguration, c.CacheMaxRecords)
	}
	if c.CacheRetentionDays < 0 {
		return fmt.Errorf("%w: cache retention days must be >= 0 (got %d)", ErrConfiguration, c.CacheRetentionDays)
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.ProviderURL == "" {
		c.ProviderURL = DefaultProviderURL
	}
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath(c.ApplicationName)
	}
	return nil
}

// DefaultCachePath derives the container location for an application,
// preferring the user cache dir and falling back to the temp dir.
func DefaultCachePath(applicationName string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "gopenny", applicationName, "rates.cache")
}
