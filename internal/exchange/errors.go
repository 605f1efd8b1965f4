package exchange

import "errors"

var (
	// ErrInvalidCurrencyCode indicates a currency code that is not a known
	// ISO 4217 code.
	ErrInvalidCurrencyCode = errors.New("invalid currency code")

	// ErrCurrencyNotAllowed indicates a currency outside the configured
	// allowlist. It is raised before any network or cache access.
	ErrCurrencyNotAllowed = errors.New("currency not allowed")

	// ErrProviderUnavailable indicates the live-rate provider could not
	// produce a usable rate (network failure, timeout, bad response).
	ErrProviderUnavailable = errors.New("rate provider unavailable")

	// ErrRateUnavailable is the terminal outcome of a failed resolution:
	// the configured strategy exhausted its options for the pair.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
)
