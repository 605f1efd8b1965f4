package exchange

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gopenny/gopenny/internal/metrics"
)

// Provider fetches a live rate for a currency pair. Implementations hold no
// state beyond connection configuration and are safe to share across
// concurrent resolutions.
type Provider interface {
	Fetch(ctx context.Context, pair CurrencyPair) (decimal.Decimal, error)
}

// NewHTTPClient creates an HTTP client with optional TLS configuration.
// Set skipTLSVerify to true for servers with misconfigured certificate
// chains (e.g., servers that don't send intermediate certificates).
func NewHTTPClient(timeout time.Duration, skipTLSVerify bool) *http.Client {
	transport := &http.Transport{}

	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DefaultProviderTimeout bounds a live fetch so a dead network never turns
// into an unbounded stall.
const DefaultProviderTimeout = 10 * time.Second

// HTTPProvider talks to a live-rate HTTP endpoint. The expected contract is
// GET {base-url}/latest?from=X&to=Y answering {"rate": <number>}.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider against baseURL. A non-positive timeout
// falls back to DefaultProviderTimeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  NewHTTPClient(timeout, false),
	}
}

type rateResponse struct {
	Rate json.Number `json:"rate"`
}

// Fetch requests a live rate for pair. It fails with ErrProviderUnavailable
// on network failure, timeout, or an unparseable or non-positive rate.
// Retries, if any, belong to the caller.
func (p *HTTPProvider) Fetch(ctx context.Context, pair CurrencyPair) (decimal.Decimal, error) {
	started := time.Now()
	rate, err := p.fetch(ctx, pair)
	metrics.ProviderRequestDurationSeconds.WithLabelValues("http").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.ProviderErrorsTotal.WithLabelValues("http").Inc()
		return decimal.Decimal{}, err
	}
	return rate, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, pair CurrencyPair) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/latest?from=%s&to=%s",
		p.baseURL, url.QueryEscape(string(pair.Base)), url.QueryEscape(string(pair.Quote)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: build request for %s: %v", ErrProviderUnavailable, pair, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, pair, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return decimal.Decimal{}, fmt.Errorf("%w: %s: unexpected status %d", ErrProviderUnavailable, pair, resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: decode response: %v", ErrProviderUnavailable, pair, err)
	}

	rate, err := decimal.NewFromString(body.Rate.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: non-numeric rate %q", ErrProviderUnavailable, pair, body.Rate)
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: non-positive rate %s", ErrProviderUnavailable, pair, rate)
	}
	return rate, nil
}
