package api

import (
	"net/http"

	"github.com/erazemk/oprema/internal/events"
)

// EventsHandler upgrades stations to the live transaction feed.
type EventsHandler struct {
	Hub *events.Hub
}

// Subscribe handles GET /api/events.
func (h *EventsHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	events.Serve(h.Hub, w, r, GetClaims(r.Context()).Username)
}
