package types

// UpdateBatch is the wire contract between the extractor and the merger: the
// structured result of one chapter-analysis LLM call. All sub-lists are
// optional; unknown fields in the raw response are ignored so the batch stays
// forward-compatible with evolving extraction prompts. An all-empty batch is
// the canonical "extraction failed, no memory update this chapter" value.
type UpdateBatch struct {
	Chapter       int                 `json:"chapter"`
	Summary       string              `json:"summary,omitempty"`
	Characters    []CharacterUpdate   `json:"characters,omitempty"`
	Events        []EventUpdate       `json:"events,omitempty"`
	Foreshadowing []ForeshadowUpdate  `json:"foreshadowing,omitempty"`
	WorldEntities []WorldEntityUpdate `json:"world_entities,omitempty"`
	Protagonist   *ProtagonistUpdate  `json:"protagonist,omitempty"`
}

// EmptyBatch returns the graceful-degradation batch for a chapter: no updates,
// no summary. Merging it is a no-op apart from the merge-log entry.
func EmptyBatch(chapter int) *UpdateBatch {
	return &UpdateBatch{Chapter: chapter}
}

// IsEmpty reports whether the batch carries no updates at all.
func (b *UpdateBatch) IsEmpty() bool {
	return b.Summary == "" &&
		len(b.Characters) == 0 &&
		len(b.Events) == 0 &&
		len(b.Foreshadowing) == 0 &&
		len(b.WorldEntities) == 0 &&
		b.Protagonist == nil
}

// CharacterUpdate carries one character's extracted signals for a chapter.
// Omitted enrichment fields default to the pending placeholder at creation
// and leave existing values untouched at merge.
type CharacterUpdate struct {
	Name               string  `json:"name"`
	Role               RoleTag `json:"role,omitempty"`
	Status             string  `json:"status,omitempty"`
	InfluenceScore     float64 `json:"influence_score,omitempty"`
	ScreenTime         float64 `json:"screen_time,omitempty"`
	ReturnProbability  float64 `json:"return_probability,omitempty"`
	CoreTrait          string  `json:"core_trait,omitempty"`
	SpeechStyle        string  `json:"speech_style,omitempty"`
	Desire             string  `json:"desire,omitempty"`
	HookLine           string  `json:"hook_line,omitempty"`
	LinksToProtagonist string  `json:"links_to_protagonist,omitempty"`
	TriggerConditions  string  `json:"trigger_conditions,omitempty"`
}

// EventUpdate carries the chapter's event descriptions for the chronicle.
type EventUpdate struct {
	Description  string `json:"description"`
	TimelineInfo string `json:"timeline_info,omitempty"`
}

// ForeshadowUpdate carries a planted or progressed narrative hint.
type ForeshadowUpdate struct {
	Content         string           `json:"content"`
	Status          ForeshadowStatus `json:"status,omitempty"`
	Type            string           `json:"type,omitempty"`
	Priority        int              `json:"priority,omitempty"`
	ResolvedChapter *int             `json:"resolved_chapter,omitempty"`
}

// WorldEntityUpdate carries one world entity's extracted signals.
type WorldEntityUpdate struct {
	Name              string          `json:"name"`
	Type              WorldEntityType `json:"type"`
	HookLine          string          `json:"hook_line,omitempty"`
	InfluenceScore    float64         `json:"influence_score,omitempty"`
	RelatedCharacters []string        `json:"related_characters,omitempty"`
}

// ProtagonistUpdate carries the lead character's situation after the chapter.
type ProtagonistUpdate struct {
	Name         string   `json:"name,omitempty"`
	CurrentState string   `json:"current_state,omitempty"`
	Location     string   `json:"location,omitempty"`
	PowerLevel   string   `json:"power_level,omitempty"`
	Possessions  []string `json:"possessions,omitempty"`
}
