package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gopenny/gopenny/internal/auth"
	"github.com/gopenny/gopenny/internal/config"
	"github.com/gopenny/gopenny/internal/exchange"
	"github.com/gopenny/gopenny/internal/history"
	"github.com/gopenny/gopenny/internal/manager"
)

type stubProvider struct {
	rate    decimal.Decimal
	failing bool
}

func (p *stubProvider) Fetch(ctx context.Context, pair exchange.CurrencyPair) (decimal.Decimal, error) {
	if p.failing {
		return decimal.Decimal{}, exchange.ErrProviderUnavailable
	}
	return p.rate, nil
}

func testServer(t *testing.T, provider exchange.Provider, authSvc *auth.Service) (*httptest.Server, *history.MemoryStore) {
	t.Helper()

	store := history.NewMemory()
	cfg := config.NewCurrency("gopenny-test")
	cfg.CachePath = filepath.Join(t.TempDir(), "rates.cache")
	cfg.CacheSecret = "test-secret"

	mgr, err := manager.New(cfg,
		manager.WithProvider(provider),
		manager.WithRecorder(history.NewRecorder(store)),
	)
	if err != nil {
		t.Fatalf("manager.New failed: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	srv := httptest.NewServer(NewMux(&Server{Manager: mgr, Store: store, Auth: authSvc}))
	t.Cleanup(srv.Close)
	return srv, store
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func TestRateEndpoint(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{rate: decimal.RequireFromString("0.92")}, nil)

	var body struct {
		Base   string `json:"base"`
		Quote  string `json:"quote"`
		Rate   string `json:"rate"`
		Source string `json:"source"`
	}
	getJSON(t, srv.URL+"/api/rate?base=USD&quote=EUR", http.StatusOK, &body)
	if body.Base != "USD" || body.Quote != "EUR" || body.Rate != "0.92" || body.Source != "live" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestRateEndpointErrors(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{failing: true}, nil)

	var apiErr apiError
	getJSON(t, srv.URL+"/api/rate?base=USD&quote=DOLLARS", http.StatusBadRequest, &apiErr)
	if apiErr.Kind != "InvalidCurrencyCode" {
		t.Errorf("unexpected kind: %q", apiErr.Kind)
	}

	getJSON(t, srv.URL+"/api/rate?base=USD&quote=EUR", http.StatusBadGateway, &apiErr)
	if apiErr.Kind != "ExchangeRateUnavailable" {
		t.Errorf("unexpected kind: %q", apiErr.Kind)
	}

	getJSON(t, srv.URL+"/api/rate?base=USD", http.StatusBadRequest, &apiErr)
	if apiErr.Kind != "BadRequest" {
		t.Errorf("unexpected kind: %q", apiErr.Kind)
	}
}

func TestConvertEndpointWithLocale(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{rate: decimal.RequireFromString("0.9")}, nil)

	var body struct {
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
		Formatted string `json:"formatted"`
	}
	getJSON(t, srv.URL+"/api/convert?amount=100&from=USD&to=EUR&locale=de_DE", http.StatusOK, &body)
	if body.Amount != "90" || body.Currency != "EUR" {
		t.Errorf("unexpected body: %+v", body)
	}
	if !strings.Contains(body.Formatted, "€") {
		t.Errorf("expected a euro symbol in %q", body.Formatted)
	}
}

func TestLocaleEndpoint(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{rate: decimal.NewFromInt(1)}, nil)

	var tok struct {
		Posix string `json:"posix"`
		BCP47 string `json:"bcp47"`
	}
	getJSON(t, srv.URL+"/api/locale?input=US_EN", http.StatusOK, &tok)
	if tok.Posix != "en_US" || tok.BCP47 != "en-US" {
		t.Errorf("unexpected token: %+v", tok)
	}

	var apiErr apiError
	getJSON(t, srv.URL+"/api/locale?input=klingon", http.StatusBadRequest, &apiErr)
	if apiErr.Kind != "InvalidLocale" || apiErr.Input != "klingon" {
		t.Errorf("unexpected error body: %+v", apiErr)
	}
}

func TestCacheStatsAndCleanupEndpoints(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{rate: decimal.RequireFromString("0.9")}, nil)

	getJSON(t, srv.URL+"/api/rate?base=USD&quote=EUR&strategy=live", http.StatusOK, nil)

	var stats struct {
		TotalRecords int `json:"total_records"`
	}
	getJSON(t, srv.URL+"/api/cache/stats", http.StatusOK, &stats)
	if stats.TotalRecords != 1 {
		t.Errorf("expected 1 cached record, got %d", stats.TotalRecords)
	}

	resp, err := http.Post(srv.URL+"/api/cache/cleanup?retention_days=0", "application/json", nil)
	if err != nil {
		t.Fatalf("POST cleanup failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cleanup status %d", resp.StatusCode)
	}
	var removed struct {
		Removed int `json:"removed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&removed); err != nil {
		t.Fatalf("decode cleanup response: %v", err)
	}
	if removed.Removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed.Removed)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{rate: decimal.RequireFromString("0.92")}, nil)

	getJSON(t, srv.URL+"/api/rate?base=USD&quote=EUR&strategy=live", http.StatusOK, nil)

	var fetches []history.FetchRecord
	getJSON(t, srv.URL+"/api/history?base=USD&quote=EUR", http.StatusOK, &fetches)
	if len(fetches) != 1 {
		t.Fatalf("expected 1 fetch record, got %d", len(fetches))
	}
	if fetches[0].Rate != "0.92" {
		t.Errorf("unexpected rate: %q", fetches[0].Rate)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := testServer(t, &stubProvider{rate: decimal.NewFromInt(1)}, nil)

	for _, path := range []string{"/healthz", "/readyz", "/livez", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestAuthGatesMutations(t *testing.T) {
	store := history.NewMemory()
	authSvc, err := auth.NewService(store, auth.Options{})
	if err != nil {
		t.Fatalf("auth.NewService failed: %v", err)
	}
	srv, _ := testServer(t, &stubProvider{rate: decimal.NewFromInt(1)}, authSvc)

	// Anonymous reads stay open.
	getJSON(t, srv.URL+"/api/cache/stats", http.StatusOK, nil)

	// Anonymous mutation is rejected.
	resp, err := http.Post(srv.URL+"/api/cache/cleanup", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous cleanup: status %d, want 401", resp.StatusCode)
	}

	// An editor token passes.
	_, raw, err := authSvc.CreateToken(context.Background(), "ci", auth.RoleEditor, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/cache/cleanup", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST with token failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("editor cleanup: status %d, want 200", resp.StatusCode)
	}

	// A viewer token is forbidden from mutating.
	_, raw, err = authSvc.CreateToken(context.Background(), "ro", auth.RoleViewer, nil)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	req, _ = http.NewRequest(http.MethodPost, srv.URL+"/api/cache/cleanup", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST with viewer token failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer cleanup: status %d, want 403", resp.StatusCode)
	}
}
