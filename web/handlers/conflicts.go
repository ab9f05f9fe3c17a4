package handlers

import (
	"net/http"

	"github.com/inklet/chronicle/internal/engine"
)

// ConflictsHandler serves the advisory status-conflict report.
type ConflictsHandler struct {
	engine *engine.Engine
}

// NewConflictsHandler creates a new ConflictsHandler instance.
func NewConflictsHandler(eng *engine.Engine) *ConflictsHandler {
	return &ConflictsHandler{engine: eng}
}

// ConflictsResponse lists the warnings for one manuscript.
type ConflictsResponse struct {
	ManuscriptID string                   `json:"manuscript_id"`
	Warnings     []engine.ConflictWarning `json:"warnings"`
}

// GetConflicts handles GET /api/manuscripts/{id}/conflicts.
func (h *ConflictsHandler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}

	warnings, err := h.engine.DetectManuscriptConflicts(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to detect conflicts", err)
		return
	}
	if warnings == nil {
		warnings = []engine.ConflictWarning{}
	}

	respondJSON(w, http.StatusOK, ConflictsResponse{ManuscriptID: id, Warnings: warnings})
}
