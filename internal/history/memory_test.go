package history

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gopenny/gopenny/internal/exchange"
)

func TestMemoryListFetchesNewestFirstWithFilters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	now := time.Now()
	for i, rec := range []FetchRecord{
		{ID: "1", Base: "USD", Quote: "EUR", Rate: "0.90", FetchedAt: now.Add(-2 * time.Hour)},
		{ID: "2", Base: "USD", Quote: "GBP", Rate: "0.79", FetchedAt: now.Add(-time.Hour)},
		{ID: "3", Base: "USD", Quote: "EUR", Rate: "0.92", FetchedAt: now},
	} {
		if err := m.SaveFetch(ctx, rec); err != nil {
			t.Fatalf("SaveFetch %d failed: %v", i, err)
		}
	}

	all, err := m.ListFetches(ctx, "", "", 0)
	if err != nil {
		t.Fatalf("ListFetches failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].ID != "3" {
		t.Errorf("expected newest first, got %s", all[0].ID)
	}

	eur, err := m.ListFetches(ctx, "USD", "EUR", 0)
	if err != nil {
		t.Fatalf("ListFetches failed: %v", err)
	}
	if len(eur) != 2 {
		t.Errorf("expected 2 EUR records, got %d", len(eur))
	}

	limited, err := m.ListFetches(ctx, "", "", 1)
	if err != nil {
		t.Fatalf("ListFetches failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "3" {
		t.Errorf("unexpected limited result: %+v", limited)
	}
}

func TestMemorySettings(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	val, err := m.GetSetting(ctx, "refresh_interval")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty value for unset key, got %q", val)
	}

	if err := m.SetSetting(ctx, "refresh_interval", "600"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	val, _ = m.GetSetting(ctx, "refresh_interval")
	if val != "600" {
		t.Errorf("unexpected value: %q", val)
	}
}

func TestMemoryTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	tok := Token{ID: "t1", Name: "ci", TokenHash: "abc123", Role: "viewer", CreatedAt: time.Now()}
	if err := m.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	got, err := m.GetTokenByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetTokenByHash failed: %v", err)
	}
	if got == nil || got.ID != "t1" {
		t.Fatalf("unexpected token: %+v", got)
	}

	missing, err := m.GetTokenByHash(ctx, "nope")
	if err != nil {
		t.Fatalf("GetTokenByHash failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown hash")
	}

	at := time.Now()
	if err := m.TouchToken(ctx, "t1", at); err != nil {
		t.Fatalf("TouchToken failed: %v", err)
	}
	got, _ = m.GetTokenByHash(ctx, "abc123")
	if got.LastUsedAt == nil || !got.LastUsedAt.Equal(at) {
		t.Errorf("last used not updated: %+v", got.LastUsedAt)
	}
}

func TestRecorderSavesFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := NewRecorder(m)

	err := rec.RecordFetch(ctx, exchange.RateRecord{
		Pair:      exchange.CurrencyPair{Base: "USD", Quote: "EUR"},
		Rate:      decimal.RequireFromString("0.92"),
		FetchedAt: time.Now(),
		Source:    exchange.SourceLive,
	})
	if err != nil {
		t.Fatalf("RecordFetch failed: %v", err)
	}

	fetches, err := m.ListFetches(ctx, "USD", "EUR", 0)
	if err != nil {
		t.Fatalf("ListFetches failed: %v", err)
	}
	if len(fetches) != 1 {
		t.Fatalf("expected 1 record, got %d", len(fetches))
	}
	f := fetches[0]
	if f.ID == "" {
		t.Errorf("expected a generated id")
	}
	if f.Rate != "0.92" || f.Source != "live" {
		t.Errorf("unexpected record: %+v", f)
	}
}
