package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"app/internal/middleware"
	"app/internal/realtime"

	"github.com/rs/zerolog"
)

// EventsHandler streams change events to the client over SSE. The client
// re-fetches the named resource when an event arrives; event payloads carry
// no data beyond the kind.
type EventsHandler struct {
	hub    *realtime.Hub
	logger zerolog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(hub *realtime.Hub, logger zerolog.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, logger: logger}
}

// RegisterRoutes mounts the v1 events route
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/events", authMw(http.HandlerFunc(h.stream)))
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: user ID not found in context", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := h.hub.Subscribe(userID)
	defer cancel()

	h.logger.Debug().Str("userId", userID).Msg("Event stream opened")
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("userId", userID).Msg("Event stream closed")
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
			flusher.Flush()
		}
	}
}
