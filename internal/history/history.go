// Package history persists an audit trail of live rate fetches plus the
// small operational state of the daemon (settings, API tokens). It is
// best-effort from the resolver's point of view: a history failure never
// breaks a resolution.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gopenny/gopenny/internal/exchange"
)

// FetchRecord is one successful live fetch.
type FetchRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	Base      string    `json:"base" gorm:"column:base"`
	Quote     string    `json:"quote" gorm:"column:quote"`
	Rate      string    `json:"rate" gorm:"column:rate"`
	Source    string    `json:"source" gorm:"column:source"`
	FetchedAt time.Time `json:"fetched_at" gorm:"column:fetched_at"`
}

func (FetchRecord) TableName() string { return "fetch_history" }

// Token is an API access token; only its hash is stored.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

func (Token) TableName() string { return "tokens" }

// Setting is a key/value operational override (e.g. worker interval).
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string { return "settings" }

// Store abstracts persistence for fetch history, settings and tokens.
type Store interface {
	SaveFetch(ctx context.Context, rec FetchRecord) error
	ListFetches(ctx context.Context, base, quote string, limit int) ([]FetchRecord, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	CreateToken(ctx context.Context, t Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	TouchToken(ctx context.Context, id string, at time.Time) error

	Ping(ctx context.Context) error
	Close() error
}

// Recorder adapts a Store to the resolver's FetchRecorder.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder { return &Recorder{store: store} }

func (r *Recorder) RecordFetch(ctx context.Context, rec exchange.RateRecord) error {
	return r.store.SaveFetch(ctx, FetchRecord{
		ID:        uuid.New().String(),
		Base:      string(rec.Pair.Base),
		Quote:     string(rec.Pair.Quote),
		Rate:      rec.Rate.String(),
		Source:    string(rec.Source),
		FetchedAt: rec.FetchedAt,
	})
}
