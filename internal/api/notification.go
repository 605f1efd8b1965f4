package api

import (
	"encoding/json"
	"net/http"

	"github.com/gopenny/gopenny/internal/notification"
)

// RegisterNotificationRoutes wires the email delivery settings endpoints.
// They are inert when no notifier was configured.
func RegisterNotificationRoutes(mux *http.ServeMux, s *Server, withAuth func(http.HandlerFunc) http.Handler) {
	mux.Handle("/api/notification/config", withAuth(func(w http.ResponseWriter, r *http.Request) {
		if s.Notifier == nil {
			http.Error(w, "notification not configured", http.StatusServiceUnavailable)
			return
		}

		switch r.Method {
		case http.MethodGet:
			if !s.authorize(w, r, "settings", "read") {
				return
			}
			cfg, err := s.Notifier.GetConfig(r.Context())
			if err != nil {
				http.Error(w, "Internal error", http.StatusInternalServerError)
				return
			}
			if cfg == nil {
				cfg = &notification.EmailConfig{}
			}
			writeJSON(w, cfg)
		case http.MethodPut:
			if !s.authorize(w, r, "settings", "write") {
				return
			}
			var req notification.EmailConfig
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if err := s.Notifier.SaveConfig(r.Context(), req); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/notification/test", withAuth(func(w http.ResponseWriter, r *http.Request) {
		if s.Notifier == nil {
			http.Error(w, "notification not configured", http.StatusServiceUnavailable)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.authorize(w, r, "settings", "write") {
			return
		}

		var req struct {
			Config notification.EmailConfig `json:"config"`
			To     string                   `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := s.Notifier.TestConfig(r.Context(), req.Config, req.To); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
}
