package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProviderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "USD" {
			t.Errorf("unexpected from param %q", got)
		}
		if got := r.URL.Query().Get("to"); got != "EUR" {
			t.Errorf("unexpected to param %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rate": 0.9234}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	rate, err := p.Fetch(context.Background(), CurrencyPair{Base: "USD", Quote: "EUR"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rate.String() != "0.9234" {
		t.Errorf("unexpected rate: %s", rate)
	}
}

func TestHTTPProviderStringRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate": "151.23"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	rate, err := p.Fetch(context.Background(), CurrencyPair{Base: "USD", Quote: "JPY"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if rate.String() != "151.23" {
		t.Errorf("unexpected rate: %s", rate)
	}
}

func TestHTTPProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	_, err := p.Fetch(context.Background(), CurrencyPair{Base: "USD", Quote: "EUR"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHTTPProviderRejectsBadRates(t *testing.T) {
	for name, body := range map[string]string{
		"garbage":  `{"rate": "not-a-number"}`,
		"zero":     `{"rate": 0}`,
		"negative": `{"rate": -1.2}`,
		"not json": `<html>`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			p := NewHTTPProvider(srv.URL, time.Second)
			_, err := p.Fetch(context.Background(), CurrencyPair{Base: "USD", Quote: "EUR"})
			if !errors.Is(err, ErrProviderUnavailable) {
				t.Fatalf("expected ErrProviderUnavailable, got %v", err)
			}
		})
	}
}

func TestHTTPProviderUnreachable(t *testing.T) {
	// Reserved port on localhost with nothing listening.
	p := NewHTTPProvider("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := p.Fetch(context.Background(), CurrencyPair{Base: "USD", Quote: "EUR"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestHTTPProviderHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := NewHTTPProvider(srv.URL, 5*time.Second)
	_, err := p.Fetch(ctx, CurrencyPair{Base: "USD", Quote: "EUR"})
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
