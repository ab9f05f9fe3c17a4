// Package handlers provides HTTP handlers and middleware for the Chronicle
// status server.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the JSON shape of every error reply.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StatsResponse reports per-manuscript store counts plus the extraction
// queue depth.
type StatsResponse struct {
	ManuscriptID  string `json:"manuscript_id"`
	Characters    int    `json:"characters"`
	Cameos        int    `json:"cameos"`
	WorldEntities int    `json:"world_entities"`
	Foreshadowing int    `json:"foreshadowing"`
	Chronicle     int    `json:"chronicle"`
	Summaries     int    `json:"summaries"`
	QueueSize     int    `json:"queue_size"`
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent; nothing more we can do for the client.
		log.Printf("handlers: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{"error": err.Error()}
	}
	respondJSON(w, statusCode, errResp)
}

// manuscriptID extracts the {id} path value and writes a 400 when absent.
func manuscriptID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "manuscript ID is required", nil)
		return "", false
	}
	return id, true
}
