package config

import (
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Server is the environment-driven configuration for the gopenny daemon
// (HTTP API and refresh worker).
type Server struct {
	Port string `env:"PORT" env-default:"8000"`

	ApplicationName    string `env:"GOPENNY_APP_NAME" env-default:"gopenny"`
	AllowCacheFallback bool   `env:"GOPENNY_ALLOW_CACHE_FALLBACK" env-default:"true"`
	AllowedCurrencies  string `env:"GOPENNY_ALLOWED_CURRENCIES"` // comma-separated, empty = unrestricted
	DefaultStrategy    string `env:"GOPENNY_DEFAULT_STRATEGY" env-default:"auto"`
	CacheMaxRecords    int    `env:"GOPENNY_CACHE_MAX_RECORDS" env-default:"1000"`
	CacheRetentionDays int    `env:"GOPENNY_CACHE_RETENTION_DAYS" env-default:"30"`
	CachePath          string `env:"GOPENNY_CACHE_PATH"`
	CacheSecret        string `env:"GOPENNY_CACHE_SECRET"`

	ProviderURL     string        `env:"GOPENNY_PROVIDER_URL" env-default:"https://api.gopenny.dev/rates"`
	ProviderTimeout time.Duration `env:"GOPENNY_PROVIDER_TIMEOUT" env-default:"10s"`

	// History database (fetch audit trail, settings, API tokens).
	DBDriver    string `env:"GOPENNY_DB_DRIVER" env-default:"memory"` // memory, sqlite, postgres, postgrespool
	DBDSN       string `env:"GOPENNY_DB_DSN"`
	AutoMigrate bool   `env:"GOPENNY_AUTO_MIGRATE" env-default:"false"`

	// Worker schedule: integer seconds or a cron expression.
	WorkerInterval string `env:"GOPENNY_WORKER_INTERVAL" env-default:"300"`

	// Auth: when required, every request needs a bearer token. The admin
	// bootstrap hash is a bcrypt hash of the root token.
	AuthRequired   bool   `env:"GOPENNY_AUTH_REQUIRED" env-default:"false"`
	AdminTokenHash string `env:"GOPENNY_ADMIN_TOKEN_HASH"`

	// Alerting webhook for provider outages and cache tamper signals.
	AlertWebhookURL  string `env:"GOPENNY_ALERT_WEBHOOK_URL"`
	AlertWebhookType string `env:"GOPENNY_ALERT_WEBHOOK_TYPE"` // slack, discord or generic
	AlertMinFailures int    `env:"GOPENNY_ALERT_MIN_FAILURES" env-default:"3"`

	// Outage digest email (optional).
	NotifyEmailTo string `env:"GOPENNY_NOTIFY_EMAIL_TO"`
}

// LoadServer reads the server configuration from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// CurrencyConfig builds the library configuration from the server env.
func (s Server) CurrencyConfig() Currency {
	cfg := NewCurrency(s.ApplicationName)
	cfg.AllowCacheFallback = s.AllowCacheFallback
	cfg.AllowedCurrencies = splitCSV(s.AllowedCurrencies)
	cfg.DefaultStrategy = s.DefaultStrategy
	cfg.CacheMaxRecords = s.CacheMaxRecords
	cfg.CacheRetentionDays = s.CacheRetentionDays
	cfg.CachePath = s.CachePath
	cfg.CacheSecret = s.CacheSecret
	cfg.ProviderURL = s.ProviderURL
	cfg.ProviderTimeout = s.ProviderTimeout
	return cfg
}

func splitCSV(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
