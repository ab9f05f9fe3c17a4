package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/inklet/chronicle/internal/engine"
)

// ChapterHandler accepts finished chapters for memory extraction and serves
// context planning for upcoming ones.
type ChapterHandler struct {
	engine *engine.Engine
}

// NewChapterHandler creates a new ChapterHandler instance.
func NewChapterHandler(eng *engine.Engine) *ChapterHandler {
	return &ChapterHandler{engine: eng}
}

// IngestRequest is the body for POST /api/manuscripts/{id}/chapters.
type IngestRequest struct {
	Chapter int    `json:"chapter"`
	Text    string `json:"text"`
	// Sync forces the extraction and merge to complete before the response
	// instead of going through the async queue.
	Sync bool `json:"sync,omitempty"`
}

// IngestResponse acknowledges an accepted chapter.
type IngestResponse struct {
	ManuscriptID string `json:"manuscript_id"`
	Chapter      int    `json:"chapter"`
	Queued       bool   `json:"queued"`
}

// PostChapter handles POST /api/manuscripts/{id}/chapters — submits a
// finished chapter for analysis. The async path returns 202 immediately; a
// full queue yields 503 and the caller may retry.
func (h *ChapterHandler) PostChapter(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Chapter <= 0 {
		respondError(w, http.StatusBadRequest, "chapter must be positive", nil)
		return
	}

	if req.Sync {
		if err := h.engine.IngestChapter(r.Context(), id, req.Chapter, req.Text); err != nil {
			respondError(w, http.StatusInternalServerError, "chapter ingest failed", err)
			return
		}
		respondJSON(w, http.StatusOK, IngestResponse{ManuscriptID: id, Chapter: req.Chapter})
		return
	}

	if !h.engine.QueueChapterExtraction(id, req.Chapter, req.Text) {
		respondError(w, http.StatusServiceUnavailable, "extraction queue unavailable", nil)
		return
	}
	respondJSON(w, http.StatusAccepted, IngestResponse{ManuscriptID: id, Chapter: req.Chapter, Queued: true})
}

// PlanRequest is the body for POST /api/manuscripts/{id}/plan.
type PlanRequest struct {
	Chapter  int    `json:"chapter"`
	Title    string `json:"title,omitempty"`
	Goal     string `json:"goal,omitempty"`
	Location string `json:"location,omitempty"`

	SystemIdentity  string `json:"system_identity,omitempty"`
	BasicInfo       string `json:"basic_info,omitempty"`
	Outline         string `json:"outline,omitempty"`
	CurrentVolume   string `json:"current_volume,omitempty"`
	PreviousChapter string `json:"previous_chapter,omitempty"`
	UserDirection   string `json:"user_direction,omitempty"`
}

// PostPlan handles POST /api/manuscripts/{id}/plan — assembles the bounded
// context package for the next chapter.
func (h *ChapterHandler) PostPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}

	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.engine.PlanChapter(r.Context(), &engine.ChapterPlan{
		ManuscriptID:    id,
		Chapter:         req.Chapter,
		Title:           req.Title,
		Goal:            req.Goal,
		Location:        req.Location,
		SystemIdentity:  req.SystemIdentity,
		BasicInfo:       req.BasicInfo,
		Outline:         req.Outline,
		CurrentVolume:   req.CurrentVolume,
		PreviousChapter: req.PreviousChapter,
		UserDirection:   req.UserDirection,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, "planning failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
