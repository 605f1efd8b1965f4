package ratecache

import (
	"container/heap"
	"crypto/cipher"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gopenny/gopenny/internal/exchange"
	"github.com/gopenny/gopenny/internal/metrics"
)

// Config controls a Store instance. One Store is shared per cache path.
type Config struct {
	// Path is the encrypted container location on disk.
	Path string
	// Secret is the key material. Empty falls back to ApplicationName.
	Secret string
	// ApplicationName namespaces the key derivation.
	ApplicationName string
	// MaxRecords bounds the total record count; the globally oldest
	// records are evicted past the bound. Must be positive.
	MaxRecords int
	// RetentionDays is the default age bound for Get and Cleanup.
	RetentionDays int
}

// Stats is a derived, read-only snapshot of the store.
type Stats struct {
	TotalRecords  int    `json:"total_records"`
	CurrencyPairs int    `json:"currency_pairs"`
	Path          string `json:"path"`
}

// Store is a persistent, encrypted cache of rate records keyed by currency
// pair. Each pair holds its records in fetch order, most recent last.
// Mutations re-encrypt and atomically replace the on-disk container.
type Store struct {
	mu   sync.RWMutex
	path string
	aead cipher.AEAD

	maxRecords int
	retention  int // days

	records map[string][]exchange.RateRecord
	byAge   ageIndex
	total   int
}

// New opens (or initializes) the store at cfg.Path. A missing container is
// an empty cache. A present container that cannot be decrypted fails with
// ErrEncryption; other read failures are logged and treated as empty.
func New(cfg Config) (*Store, error) {
	if cfg.MaxRecords <= 0 {
		return nil, fmt.Errorf("%w: cache max records must be positive (got %d)", ErrCache, cfg.MaxRecords)
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("%w: cache retention days must be >= 0 (got %d)", ErrCache, cfg.RetentionDays)
	}

	aead, err := newAEAD(deriveKey(cfg.Secret, cfg.ApplicationName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:       cfg.Path,
		aead:       aead,
		maxRecords: cfg.MaxRecords,
		retention:  cfg.RetentionDays,
	}

	records, err := loadContainer(cfg.Path, aead)
	if err != nil {
		switch {
		case isEncryptionErr(err):
			return nil, err
		default:
			// Unusable but not a tamper signal: start fresh.
			log.Printf("ratecache: container at %s unusable, starting empty: %v", cfg.Path, err)
			records = make(map[string][]exchange.RateRecord)
		}
	}
	s.records = records
	s.rebuildIndex()
	metrics.CacheRecords.Set(float64(s.total))
	return s, nil
}

// Get returns the most recent record for pair, or false when no record
// exists or every record is older than the configured retention.
func (s *Store) Get(pair exchange.CurrencyPair) (exchange.RateRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.records[pair.String()]
	if len(recs) == 0 {
		return exchange.RateRecord{}, false
	}
	latest := recs[len(recs)-1]
	if !latest.FetchedAt.After(s.retentionCutoff(time.Now(), s.retention)) {
		return exchange.RateRecord{}, false
	}
	return latest, true
}

// Put inserts rec as the latest record for its pair, evicting the globally
// oldest records once the size bound is exceeded. The container on disk is
// re-encrypted and atomically replaced before Put returns.
func (s *Store) Put(rec exchange.RateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Pair.String()
	recs := s.records[key]

	// Keep the per-pair sequence time-ordered even if a slow fetch lands
	// after a newer one; lookup always takes the tail.
	i := sort.Search(len(recs), func(i int) bool {
		return recs[i].FetchedAt.After(rec.FetchedAt)
	})
	recs = append(recs, exchange.RateRecord{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	s.records[key] = recs
	s.total++
	heap.Push(&s.byAge, ageEntry{at: rec.FetchedAt, key: key})

	for s.total > s.maxRecords {
		if !s.evictOldest() {
			break
		}
		metrics.CacheEvictionsTotal.Inc()
	}

	metrics.CacheRecords.Set(float64(s.total))
	return saveContainer(s.path, s.aead, s.records)
}

// Cleanup removes every record older than now - retentionDays and returns
// the removed count. Running it twice in a row removes zero the second time.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.retentionCutoff(time.Now(), retentionDays)
	removed := 0
	for key, recs := range s.records {
		kept := recs[:0]
		for _, r := range recs {
			if r.FetchedAt.After(cutoff) {
				kept = append(kept, r)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.records, key)
		} else {
			s.records[key] = kept
		}
	}
	if removed == 0 {
		return 0, nil
	}

	s.total -= removed
	s.rebuildIndex()
	metrics.CacheRecords.Set(float64(s.total))
	if err := saveContainer(s.path, s.aead, s.records); err != nil {
		return removed, err
	}
	return removed, nil
}

// Pairs lists every currency pair with at least one cached record.
func (s *Store) Pairs() []exchange.CurrencyPair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]exchange.CurrencyPair, 0, len(s.records))
	for _, recs := range s.records {
		if len(recs) > 0 {
			pairs = append(pairs, recs[0].Pair)
		}
	}
	return pairs
}

// Stats computes a point-in-time snapshot; nothing is persisted.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalRecords:  s.total,
		CurrencyPairs: len(s.records),
		Path:          s.path,
	}
}

// retentionCutoff is the oldest FetchedAt still considered fresh.
func (s *Store) retentionCutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// evictOldest removes the single globally oldest record. Index entries may
// be stale (their record already removed by Cleanup); those are discarded
// lazily.
func (s *Store) evictOldest() bool {
	for s.byAge.Len() > 0 {
		entry := heap.Pop(&s.byAge).(ageEntry)
		recs, ok := s.records[entry.key]
		if !ok {
			continue
		}
		idx := -1
		for i, r := range recs {
			if r.FetchedAt.Equal(entry.at) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue // superseded entry
		}
		recs = append(recs[:idx], recs[idx+1:]...)
		if len(recs) == 0 {
			delete(s.records, entry.key)
		} else {
			s.records[entry.key] = recs
		}
		s.total--
		return true
	}
	return false
}

func (s *Store) rebuildIndex() {
	s.byAge = s.byAge[:0]
	total := 0
	for key, recs := range s.records {
		for _, r := range recs {
			s.byAge = append(s.byAge, ageEntry{at: r.FetchedAt, key: key})
		}
		total += len(recs)
	}
	s.total = total
	heap.Init(&s.byAge)
}

func isEncryptionErr(err error) bool {
	return errors.Is(err, ErrEncryption)
}

// ageEntry orders records across all pairs by fetch time so eviction does
// not scan the whole store on every insert.
type ageEntry struct {
	at  time.Time
	key string
}

type ageIndex []ageEntry

func (h ageIndex) Len() int           { return len(h) }
func (h ageIndex) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h ageIndex) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *ageIndex) Push(x any)        { *h = append(*h, x.(ageEntry)) }
func (h *ageIndex) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
