package history

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store implementation, useful for tests and
// simple single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	fetches  []FetchRecord
	settings map[string]string
	tokens   map[string]Token // keyed by hash
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		settings: make(map[string]string),
		tokens:   make(map[string]Token),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) SaveFetch(ctx context.Context, rec FetchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, rec)
	return nil
}

func (m *MemoryStore) ListFetches(ctx context.Context, base, quote string, limit int) ([]FetchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []FetchRecord
	// Newest first.
	for i := len(m.fetches) - 1; i >= 0; i-- {
		f := m.fetches[i]
		if base != "" && f.Base != base {
			continue
		}
		if quote != "" && f.Quote != quote {
			continue
		}
		out = append(out, f)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStore) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStore) CreateToken(ctx context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.TokenHash] = t
	return nil
}

func (m *MemoryStore) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[hash]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (m *MemoryStore) TouchToken(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, t := range m.tokens {
		if t.ID == id {
			t.LastUsedAt = &at
			m.tokens[hash] = t
		}
	}
	return nil
}
