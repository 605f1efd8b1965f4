package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore backs the history on sqlite or postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "gopenny.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&FetchRecord{},
		&Setting{},
		&Token{},
	)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) SaveFetch(ctx context.Context, rec FetchRecord) error {
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *GormStore) ListFetches(ctx context.Context, base, quote string, limit int) ([]FetchRecord, error) {
	q := s.db.WithContext(ctx).Order("fetched_at desc")
	if base != "" {
		q = q.Where("base = ?", base)
	}
	if quote != "" {
		q = q.Where("quote = ?", quote)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []FetchRecord
	return out, q.Find(&out).Error
}

func (s *GormStore) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	err := s.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

func (s *GormStore) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

func (s *GormStore) CreateToken(ctx context.Context, t Token) error {
	return s.db.WithContext(ctx).Create(&t).Error
}

func (s *GormStore) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var t Token
	err := s.db.WithContext(ctx).First(&t, "token_hash = ?", hash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) TouchToken(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&Token{}).
		Where("id = ?", id).
		Update("last_used_at", at).Error
}
