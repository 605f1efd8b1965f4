package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gopenny/gopenny/internal/exchange"
	"github.com/gopenny/gopenny/internal/locale"
	"github.com/gopenny/gopenny/internal/money"
	"github.com/gopenny/gopenny/internal/ratecache"
)

// apiError is the JSON error envelope: the taxonomy kind plus the offending
// input so clients can tell a bad request from a provider outage.
type apiError struct {
	Kind        string   `json:"kind"`
	Error       string   `json:"error"`
	Input       string   `json:"input,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeError(w http.ResponseWriter, err error, input string) {
	kind, status := classify(err)
	body := apiError{Kind: kind, Error: err.Error(), Input: input}

	var locErr *locale.InvalidLocaleError
	if errors.As(err, &locErr) {
		body.Suggestions = locErr.Suggestions
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, locale.ErrInvalidLocale):
		return "InvalidLocale", http.StatusBadRequest
	case errors.Is(err, exchange.ErrInvalidCurrencyCode):
		return "InvalidCurrencyCode", http.StatusBadRequest
	case errors.Is(err, exchange.ErrCurrencyNotAllowed):
		return "CurrencyNotAllowed", http.StatusForbidden
	case errors.Is(err, money.ErrCurrencyMismatch):
		return "CurrencyMismatch", http.StatusBadRequest
	case errors.Is(err, exchange.ErrRateUnavailable),
		errors.Is(err, exchange.ErrProviderUnavailable):
		return "ExchangeRateUnavailable", http.StatusBadGateway
	case errors.Is(err, ratecache.ErrEncryption):
		return "EncryptionError", http.StatusInternalServerError
	case errors.Is(err, ratecache.ErrCache):
		return "CacheError", http.StatusInternalServerError
	default:
		return "Internal", http.StatusInternalServerError
	}
}

// badRequest reports malformed query input that never reached the domain
// layer.
func badRequest(w http.ResponseWriter, msg, input string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(apiError{Kind: "BadRequest", Error: msg, Input: input})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
