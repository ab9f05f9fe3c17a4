package types

import "time"

// ForeshadowStatus tracks the payoff progress of a planted narrative hint.
// Transitions are monotone: ACTIVE → DEVELOPING → RESOLVED, never backward.
type ForeshadowStatus string

const (
	ForeshadowActive     ForeshadowStatus = "ACTIVE"     // Planted, not yet referenced again
	ForeshadowDeveloping ForeshadowStatus = "DEVELOPING" // Referenced but not paid off
	ForeshadowResolved   ForeshadowStatus = "RESOLVED"   // Paid off
)

// foreshadowRank orders statuses for monotone transition checks.
var foreshadowRank = map[ForeshadowStatus]int{
	ForeshadowActive:     0,
	ForeshadowDeveloping: 1,
	ForeshadowResolved:   2,
}

// IsValidForeshadowStatus checks if the given status is a valid foreshadowing status.
func IsValidForeshadowStatus(s ForeshadowStatus) bool {
	_, ok := foreshadowRank[s]
	return ok
}

// CanTransitionForeshadow reports whether moving from one status to another is
// allowed. Staying at the same status is allowed; regressing is not.
func CanTransitionForeshadow(from, to ForeshadowStatus) bool {
	fromRank, okFrom := foreshadowRank[from]
	toRank, okTo := foreshadowRank[to]
	if !okFrom || !okTo {
		return false
	}
	return toRank >= fromRank
}

// ForeshadowingRecord is an open narrative thread: a hint planted in one
// chapter that later chapters develop and eventually resolve.
// Records match on (Content, Type) equality during merge.
type ForeshadowingRecord struct {
	ID              string           `json:"id"` // UUID assigned at creation
	ManuscriptID    string           `json:"manuscript_id"`
	Content         string           `json:"content"`
	Status          ForeshadowStatus `json:"status"`
	PlantedChapter  int              `json:"planted_chapter"`
	ResolvedChapter *int             `json:"resolved_chapter,omitempty"` // When set, must be >= PlantedChapter
	Type            string           `json:"type,omitempty"`             // Free-form classification (人物/物品/事件, ...)
	Priority        int              `json:"priority"`                   // Higher is more urgent to surface
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Validate checks the record's internal invariants.
func (f *ForeshadowingRecord) Validate() error {
	if f.Content == "" {
		return ErrEmptyContent
	}
	if !IsValidForeshadowStatus(f.Status) {
		return ErrInvalidStatus
	}
	if f.ResolvedChapter != nil && *f.ResolvedChapter < f.PlantedChapter {
		return ErrResolvedBeforePlanted
	}
	return nil
}
