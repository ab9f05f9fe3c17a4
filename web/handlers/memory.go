package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/pkg/types"
)

// MemoryHandler exposes read-only browsing of a manuscript's narrative store:
// characters, cameos, world entities, foreshadowing, chronicle and summaries.
type MemoryHandler struct {
	store storage.Store
}

// NewMemoryHandler creates a new MemoryHandler instance.
func NewMemoryHandler(store storage.Store) *MemoryHandler {
	return &MemoryHandler{store: store}
}

// ListCharacters handles GET /api/manuscripts/{id}/characters.
func (h *MemoryHandler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	profiles, err := h.store.ListCharacters(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list characters", err)
		return
	}
	respondJSON(w, http.StatusOK, profiles)
}

// GetCharacter handles GET /api/manuscripts/{id}/characters/{name}.
func (h *MemoryHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	profile, err := h.store.GetCharacter(r.Context(), id, name)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "character not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load character", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// ListCameos handles GET /api/manuscripts/{id}/cameos.
func (h *MemoryHandler) ListCameos(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	cameos, err := h.store.ListCameos(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list cameos", err)
		return
	}
	respondJSON(w, http.StatusOK, cameos)
}

// ListWorldEntities handles GET /api/manuscripts/{id}/world.
// An optional ?type= query filters by entity type.
func (h *MemoryHandler) ListWorldEntities(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	entityType := types.WorldEntityType(r.URL.Query().Get("type"))
	entities, err := h.store.ListWorldEntities(r.Context(), id, entityType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list world entities", err)
		return
	}
	respondJSON(w, http.StatusOK, entities)
}

// ListForeshadowing handles GET /api/manuscripts/{id}/foreshadowing.
// An optional ?status= query filters by lifecycle status.
func (h *MemoryHandler) ListForeshadowing(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	status := types.ForeshadowStatus(r.URL.Query().Get("status"))
	records, err := h.store.ListForeshadowing(r.Context(), id, status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list foreshadowing", err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// ListChronicle handles GET /api/manuscripts/{id}/chronicle.
// Optional ?from= and ?limit= queries bound the range.
func (h *MemoryHandler) ListChronicle(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	from := queryInt(r, "from", 0)
	limit := queryInt(r, "limit", 0)
	events, err := h.store.ListChronicle(r.Context(), id, from, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list chronicle", err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// ListSummaries handles GET /api/manuscripts/{id}/summaries.
// An optional ?limit= query bounds the window (default 10).
func (h *MemoryHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 10)
	summaries, err := h.store.ListRecentSummaries(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list summaries", err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// GetProtagonist handles GET /api/manuscripts/{id}/protagonist.
func (h *MemoryHandler) GetProtagonist(w http.ResponseWriter, r *http.Request) {
	id, ok := manuscriptID(w, r)
	if !ok {
		return
	}
	status, err := h.store.GetProtagonistStatus(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no protagonist status recorded", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load protagonist status", err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, defaultValue int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return v
}
