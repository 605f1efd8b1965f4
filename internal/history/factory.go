package history

import (
	"context"
	"fmt"
	"log"
)

// Config controls how the history backend is opened.
type Config struct {
	Driver string // memory, sqlite, postgres, postgrespool
	DSN    string
}

// Open constructs a Store based on the given configuration.
func Open(ctx context.Context, cfg Config) (Store, error) {
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	switch drv {
	case "memory":
		log.Printf("history: using in-memory backend")
		return NewMemory(), nil

	case "sqlite", "postgres":
		log.Printf("history: using gorm driver=%s", drv)
		st, err := NewGormStore(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("history migrate: %w", err)
		}
		return st, nil

	case "postgrespool":
		log.Printf("history: using pgxpool backend")
		return NewPostgresPool(ctx, cfg.DSN)

	default:
		return nil, fmt.Errorf("unsupported history driver %q", drv)
	}
}
