package httpapi

import (
	"context"
	"net/http"

	"sidequest/ledger"
	"sidequest/xp"
)

// defaultHistoryLimit bounds GET /xp/history when the caller sends none.
const defaultHistoryLimit = 20

// Historian serves award history queries. *ledger.Archive satisfies it.
type Historian interface {
	Search(ctx context.Context, queryText string, limit int) ([]ledger.Entry, error)
}

// XPHandlers wires the award pipeline into a server.
type XPHandlers struct {
	Orchestrator *xp.Orchestrator
	History      Historian // nil leaves /xp/history unregistered
}

// Register adds the award routes.
func (h XPHandlers) Register(s *Server) {
	s.Handle("POST /award_xp", h.handleAward)
	if h.History != nil {
		s.Handle("GET /xp/history", h.handleHistory)
	}
}

func (h XPHandlers) handleAward(w http.ResponseWriter, r *http.Request) {
	var req xp.AwardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Orchestrator.Award(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h XPHandlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.History.Search(r.Context(),
		r.URL.Query().Get("q"), queryInt(r, "limit", defaultHistoryLimit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}
