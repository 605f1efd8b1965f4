package history

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolStore is a pgxpool-backed Store. Beyond the Store interface it
// exposes Postgres advisory locks so a multi-instance worker deployment runs
// each job on a single instance.
type PostgresPoolStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPool(ctx context.Context, dsn string) (*PostgresPoolStore, error) {
	if dsn == "" {
		dsn = "postgres://localhost:5432/gopenny?sslmode=disable"
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &PostgresPoolStore{pool: pool}, nil
}

func (s *PostgresPoolStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresPoolStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresPoolStore) SaveFetch(ctx context.Context, rec FetchRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_history (id, base, quote, rate, source, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.ID, rec.Base, rec.Quote, rec.Rate, rec.Source, rec.FetchedAt)
	return err
}

func (s *PostgresPoolStore) ListFetches(ctx context.Context, base, quote string, limit int) ([]FetchRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, base, quote, rate, source, fetched_at
		FROM fetch_history
		WHERE ($1 = '' OR base = $1) AND ($2 = '' OR quote = $2)
		ORDER BY fetched_at DESC
		LIMIT $3`, base, quote, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FetchRecord
	for rows.Next() {
		var f FetchRecord
		if err := rows.Scan(&f.ID, &f.Base, &f.Quote, &f.Rate, &f.Source, &f.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresPoolStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *PostgresPoolStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		key, value, time.Now())
	return err
}

func (s *PostgresPoolStore) CreateToken(ctx context.Context, t Token) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (id, name, token_hash, role, created_at, expires_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.Name, t.TokenHash, t.Role, t.CreatedAt, t.ExpiresAt, t.LastUsedAt)
	return err
}

func (s *PostgresPoolStore) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, token_hash, role, created_at, expires_at, last_used_at
		FROM tokens WHERE token_hash=$1`, hash)
	var t Token
	if err := row.Scan(&t.ID, &t.Name, &t.TokenHash, &t.Role, &t.CreatedAt, &t.ExpiresAt, &t.LastUsedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *PostgresPoolStore) TouchToken(ctx context.Context, id string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE tokens SET last_used_at=$2 WHERE id=$1`, id, at)
	return err
}

// AcquireAdvisoryLock attempts a non-blocking session advisory lock.
func (s *PostgresPoolStore) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var acquired bool
	err := s.pool.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired)
	return acquired, err
}

// ReleaseAdvisoryLock releases a previously acquired advisory lock.
func (s *PostgresPoolStore) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var released bool
	err := s.pool.QueryRow(ctx, `SELECT pg_advisory_unlock($1)`, key).Scan(&released)
	return released, err
}
