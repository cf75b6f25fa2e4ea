package httpapi

import (
	"net/http"

	"sidequest/research"
)

// ResearchHandlers wires research queries into a server.
type ResearchHandlers struct {
	Agent *research.Agent
}

// Register adds the research routes.
func (h ResearchHandlers) Register(s *Server) {
	s.Handle("POST /research", h.handleResearch)
}

func (h ResearchHandlers) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Agent.Research(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
