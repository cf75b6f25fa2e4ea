package httpapi

import (
	"net/http"

	"sidequest/calendar"
)

// CalendarHandlers wires event creation into a server.
type CalendarHandlers struct {
	Scheduler *calendar.Scheduler
}

// Register adds the calendar routes.
func (h CalendarHandlers) Register(s *Server) {
	s.Handle("POST /create_event", h.handleCreate)
}

func (h CalendarHandlers) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req calendar.EventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	event, err := h.Scheduler.CreateEvent(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		*calendar.Event
	}{Status: "created", Event: event})
}
