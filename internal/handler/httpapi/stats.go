package httpapi

import (
	"net/http"

	"github.com/ticketloop/event-stream-service/internal/bus"
	"github.com/ticketloop/event-stream-service/internal/session"
)

// StatsHandler reports live session and registry counters for operations
// tooling (the stats CLI polls this).
type StatsHandler struct {
	manager  *session.Manager
	busStats bus.StatsProvider
}

func NewStatsHandler(manager *session.Manager, busStats bus.StatsProvider) *StatsHandler {
	return &StatsHandler{manager: manager, busStats: busStats}
}

type statsResponse struct {
	Sessions session.Stats `json:"sessions"`
	Bus      bus.BusStats  `json:"bus"`
}

// Get handles GET /api/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Sessions: h.manager.Stats(),
		Bus:      h.busStats.Stats(),
	})
}
