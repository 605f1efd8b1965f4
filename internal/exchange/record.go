package exchange

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Source indicates where a resolved rate came from.
type Source string

const (
	SourceLive  Source = "live"
	SourceCache Source = "cache"
)

// RateRecord is a single resolved rate for a currency pair. Records are
// immutable once created; a newer fetch supersedes, never mutates.
type RateRecord struct {
	Pair      CurrencyPair    `json:"pair"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
	Source    Source          `json:"source"`
}

// Strategy is the policy governing whether a resolution may use the
// network, the cache, or both.
type Strategy string

const (
	StrategyAuto  Strategy = "auto"
	StrategyLive  Strategy = "live"
	StrategyCache Strategy = "cache"
)

// ParseStrategy validates a strategy name, defaulting empty input to auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyAuto, nil
	case StrategyAuto, StrategyLive, StrategyCache:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown exchange strategy %q (want auto, live or cache)", s)
	}
}
