// Package api exposes the manager, the history store and the cache over
// HTTP, plus the usual health, metrics and docs endpoints.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gopenny/gopenny/internal/api/swagger"
	"github.com/gopenny/gopenny/internal/auth"
	"github.com/gopenny/gopenny/internal/history"
	"github.com/gopenny/gopenny/internal/manager"
	"github.com/gopenny/gopenny/internal/notification"
)

// Server bundles the collaborators the handlers need. Auth and Notifier
// are optional.
type Server struct {
	Manager  *manager.Manager
	Store    history.Store
	Auth     *auth.Service
	Notifier *notification.Service
}

// NewMux constructs the HTTP mux, wiring the conversion API, cache
// management, history, health and metrics endpoints.
func NewMux(s *Server) *http.ServeMux {
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.Store != nil {
			if err := s.Store.Ping(r.Context()); err != nil {
				log.Printf("readyz: history ping failed: %v", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Conversion API. The auth middleware resolves bearer tokens when one
	// is presented; per-handler authorization decides the rest.
	withAuth := func(h http.HandlerFunc) http.Handler {
		if s.Auth == nil {
			return h
		}
		return s.Auth.Middleware(h)
	}

	mux.Handle("/api/rate", withAuth(s.handleRate))
	mux.Handle("/api/convert", withAuth(s.handleConvert))
	mux.Handle("/api/locale", withAuth(s.handleLocale))
	mux.Handle("/api/cache/stats", withAuth(s.handleCacheStats))
	mux.Handle("/api/cache/cleanup", withAuth(s.handleCacheCleanup))
	mux.Handle("/api/history", withAuth(s.handleHistory))
	mux.Handle("/api/settings/", withAuth(s.handleSettings))
	mux.Handle("/api/tokens", withAuth(s.handleTokens))
	RegisterNotificationRoutes(mux, s, withAuth)

	// API documentation.
	mux.Handle("/docs/", http.StripPrefix("/docs", swagger.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/docs/", http.StatusFound)
	})

	return mux
}

// authorize applies the role check for obj/act. With no auth service every
// request passes.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, obj, act string) bool {
	if s.Auth == nil {
		return true
	}
	token, ok := r.Context().Value(auth.TokenContextKey).(*history.Token)
	if !ok {
		if act == "read" && !s.Auth.Required() {
			return true
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return false
	}
	allowed, err := s.Auth.Enforce(token.Role, obj, act)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	if !allowed {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}

type rateResponse struct {
	Base      string    `json:"base"`
	Quote     string    `json:"quote"`
	Rate      string    `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "rates", "read") {
		return
	}

	q := r.URL.Query()
	base, quote := q.Get("base"), q.Get("quote")
	if base == "" || quote == "" {
		badRequest(w, "base and quote are required", base+"/"+quote)
		return
	}

	rec, err := s.Manager.Rate(r.Context(), base, quote, q.Get("strategy"))
	if err != nil {
		writeError(w, err, base+"/"+quote)
		return
	}
	writeJSON(w, rateResponse{
		Base:      string(rec.Pair.Base),
		Quote:     string(rec.Pair.Quote),
		Rate:      rec.Rate.String(),
		Source:    string(rec.Source),
		FetchedAt: rec.FetchedAt,
	})
}

type convertResponse struct {
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Rate      string    `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Formatted string    `json:"formatted,omitempty"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "rates", "read") {
		return
	}

	q := r.URL.Query()
	amount, from, to := q.Get("amount"), q.Get("from"), q.Get("to")
	if amount == "" || from == "" || to == "" {
		badRequest(w, "amount, from and to are required", r.URL.RawQuery)
		return
	}

	val, err := s.Manager.NewMoney(amount, from)
	if err != nil {
		writeError(w, err, amount+" "+from)
		return
	}
	converted, rec, err := s.Manager.Convert(r.Context(), val, to, q.Get("strategy"))
	if err != nil {
		writeError(w, err, from+"/"+to)
		return
	}

	resp := convertResponse{
		Amount:    converted.Amount().String(),
		Currency:  string(converted.Code()),
		Rate:      rec.Rate.String(),
		Source:    string(rec.Source),
		FetchedAt: rec.FetchedAt,
	}
	if loc := q.Get("locale"); loc != "" {
		formatted, err := s.Manager.Format(converted, loc)
		if err != nil {
			writeError(w, err, loc)
			return
		}
		resp.Formatted = formatted
	}
	writeJSON(w, resp)
}

func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "locale", "read") {
		return
	}

	input := r.URL.Query().Get("input")
	if input == "" {
		badRequest(w, "input is required", "")
		return
	}
	tok, err := s.Manager.ResolveLocale(input)
	if err != nil {
		writeError(w, err, input)
		return
	}
	writeJSON(w, map[string]string{
		"language": tok.Language,
		"region":   tok.Region,
		"posix":    tok.String(),
		"bcp47":    tok.BCP47(),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "cache", "read") {
		return
	}
	writeJSON(w, s.Manager.CacheStats())
}

func (s *Server) handleCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "cache", "write") {
		return
	}

	removed := 0
	var err error
	if raw := r.URL.Query().Get("retention_days"); raw != "" {
		days, convErr := strconv.Atoi(raw)
		if convErr != nil || days < 0 {
			badRequest(w, "retention_days must be a non-negative integer", raw)
			return
		}
		removed, err = s.Manager.Cache().Cleanup(days)
	} else {
		removed, err = s.Manager.CleanupCache()
	}
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, map[string]int{"removed": removed})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "history", "read") {
		return
	}
	if s.Store == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	limit := 50
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			badRequest(w, "limit must be a positive integer", raw)
			return
		}
		limit = v
	}

	fetches, err := s.Store.ListFetches(r.Context(), q.Get("base"), q.Get("quote"), limit)
	if err != nil {
		writeError(w, err, "")
		return
	}
	if fetches == nil {
		fetches = []history.FetchRecord{}
	}
	writeJSON(w, fetches)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path[len("/api/settings/"):]
	if key == "" {
		http.NotFound(w, r)
		return
	}
	if s.Store == nil {
		http.Error(w, "settings not configured", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !s.authorize(w, r, "settings", "read") {
			return
		}
		value, err := s.Store.GetSetting(r.Context(), key)
		if err != nil {
			writeError(w, err, key)
			return
		}
		writeJSON(w, map[string]string{"key": key, "value": value})
	case http.MethodPut:
		if !s.authorize(w, r, "settings", "write") {
			return
		}
		var body struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			badRequest(w, "invalid JSON body", "")
			return
		}
		if err := s.Store.SetSetting(r.Context(), key, body.Value); err != nil {
			writeError(w, err, key)
			return
		}
		writeJSON(w, map[string]string{"key": key, "value": body.Value})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, "tokens", "write") {
		return
	}
	if s.Auth == nil {
		http.Error(w, "auth not configured", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Name      string     `json:"name"`
		Role      string     `json:"role"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid JSON body", "")
		return
	}

	token, raw, err := s.Auth.CreateToken(r.Context(), body.Name, body.Role, body.ExpiresAt)
	if err != nil {
		badRequest(w, err.Error(), body.Role)
		return
	}

	// The raw value is shown exactly once.
	writeJSON(w, map[string]interface{}{
		"id":    token.ID,
		"name":  token.Name,
		"role":  token.Role,
		"token": raw,
	})
}
