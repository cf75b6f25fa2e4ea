package httpapi

import (
	"net/http"

	"sidequest/email"
)

// EmailHandlers wires draft-and-send into a server.
type EmailHandlers struct {
	Agent *email.Agent
}

// Register adds the email routes.
func (h EmailHandlers) Register(s *Server) {
	s.Handle("POST /create_draft", h.handleCreateDraft)
}

func (h EmailHandlers) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req email.DraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	draft, err := h.Agent.CreateDraft(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		*email.Draft
	}{Status: "sent", Draft: draft})
}
