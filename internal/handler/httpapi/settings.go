package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ticketloop/event-stream-service/internal/service"
	"github.com/ticketloop/event-stream-service/internal/settings"
)

// SettingsHandler exposes the resolver to the admin dashboard: bulk masked
// reads and batch updates. Raw values never leave this surface; collaborators
// needing them call the resolver directly.
type SettingsHandler struct {
	logger   *slog.Logger
	resolver *settings.Service
	auther   service.Auther
}

func NewSettingsHandler(logger *slog.Logger, resolver *settings.Service, auther service.Auther) *SettingsHandler {
	return &SettingsHandler{logger: logger, resolver: resolver, auther: auther}
}

func (h *SettingsHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	identity, err := h.auther.Inspect(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	if !h.auther.CanManageSettings(identity) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// List handles GET /api/settings.
func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settings": h.resolver.GetAll(r.Context()),
	})
}

// Update handles PUT /api/settings with a batch of key/value pairs.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	var req struct {
		Settings []settings.KeyValue `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.resolver.Update(r.Context(), req.Settings)
	if err != nil {
		h.logger.Error("settings update failed", "err", err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
