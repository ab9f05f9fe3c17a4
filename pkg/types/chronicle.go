package types

import (
	"errors"
	"time"
)

var (
	// ErrEmptyContent indicates a record was created without content.
	ErrEmptyContent = errors.New("content is required")

	// ErrInvalidStatus indicates an unrecognized status value.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrResolvedBeforePlanted indicates a foreshadowing record resolved
	// earlier than it was planted.
	ErrResolvedBeforePlanted = errors.New("resolved chapter precedes planted chapter")
)

// ChronicleEvent records what happened in one chapter: an ordered list of
// event descriptions plus optional relative time markers. At most one record
// exists per (manuscript, chapter); later extraction for the same chapter
// merges into the existing record rather than duplicating it.
type ChronicleEvent struct {
	ManuscriptID string    `json:"manuscript_id"`
	Chapter      int       `json:"chapter"`
	Events       []string  `json:"events"`
	TimelineInfo string    `json:"timeline_info,omitempty"` // e.g. "三日后", "同夜"
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MergeEvents appends descriptions not already present, preserving order.
func (c *ChronicleEvent) MergeEvents(incoming []string) {
	seen := make(map[string]bool, len(c.Events))
	for _, e := range c.Events {
		seen[e] = true
	}
	for _, e := range incoming {
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		c.Events = append(c.Events, e)
	}
}

// ChapterSummary is the extractor's one-paragraph digest of a chapter,
// persisted for the assembler's prior-summaries segment.
type ChapterSummary struct {
	ManuscriptID string    `json:"manuscript_id"`
	Chapter      int       `json:"chapter"`
	Summary      string    `json:"summary"`
	Embedding    []float32 `json:"embedding,omitempty"` // Optional, for semantic recall
	CreatedAt    time.Time `json:"created_at"`
}
