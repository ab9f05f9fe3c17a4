package handlers

import (
	"net/http"

	"github.com/inklet/chronicle/internal/engine"
)

// QueueSizeGetter reports the extraction queue depth for the stats endpoint.
type QueueSizeGetter interface {
	QueueSize() int
}

// StatsHandler serves per-manuscript store statistics.
type StatsHandler struct {
	engine      *engine.Engine
	queueGetter QueueSizeGetter
}

// NewStatsHandler creates a new StatsHandler instance.
func NewStatsHandler(eng *engine.Engine, queueGetter QueueSizeGetter) *StatsHandler {
	return &StatsHandler{engine: eng, queueGetter: queueGetter}
}

// GetStats handles GET /api/manuscripts/{id}/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}

	stats, err := h.engine.Stats(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load stats", err)
		return
	}

	queueSize := 0
	if h.queueGetter != nil {
		queueSize = h.queueGetter.QueueSize()
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		ManuscriptID:  id,
		Characters:    stats.Characters,
		Cameos:        stats.Cameos,
		WorldEntities: stats.WorldEntities,
		Foreshadowing: stats.Foreshadowing,
		Chronicle:     stats.Chronicle,
		Summaries:     stats.Summaries,
		QueueSize:     queueSize,
	})
}
