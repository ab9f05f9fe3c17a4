package types

// SegmentRole identifies one slot in the assembled context package. The
// ordering is an explicit enumerated sequence, not an artifact of collection
// iteration order; later segments take precedence over earlier ones when they
// conflict, so the chapter task sits last.
type SegmentRole string

const (
	SegmentSystemIdentity    SegmentRole = "system_identity"
	SegmentBasicInfo         SegmentRole = "basic_info"
	SegmentOutline           SegmentRole = "outline"
	SegmentCurrentVolume     SegmentRole = "current_volume"
	SegmentCharacterRoster   SegmentRole = "character_roster"
	SegmentProtagonistStatus SegmentRole = "protagonist_status"
	SegmentWorldDictionary   SegmentRole = "world_dictionary"
	SegmentPriorSummaries    SegmentRole = "prior_summaries"
	SegmentPreviousChapter   SegmentRole = "previous_chapter"
	SegmentForeshadowing     SegmentRole = "foreshadowing"
	SegmentUserDirection     SegmentRole = "user_direction"
	SegmentChapterTask       SegmentRole = "chapter_task"
)

// SegmentOrder is the fixed render order for context segments.
var SegmentOrder = []SegmentRole{
	SegmentSystemIdentity,
	SegmentBasicInfo,
	SegmentOutline,
	SegmentCurrentVolume,
	SegmentCharacterRoster,
	SegmentProtagonistStatus,
	SegmentWorldDictionary,
	SegmentPriorSummaries,
	SegmentPreviousChapter,
	SegmentForeshadowing,
	SegmentUserDirection,
	SegmentChapterTask,
}

// ContextSegment is one bounded text block in the context package.
type ContextSegment struct {
	Role SegmentRole `json:"role"`
	Text string      `json:"text"`
}

// ContextMeta reports aggregate size information for observability. Budget
// enforcement happens upstream in the selector's quotas; the assembler only
// measures and logs.
type ContextMeta struct {
	SegmentCount    int                 `json:"segment_count"`
	TotalChars      int                 `json:"total_chars"`
	PerSegmentChars map[SegmentRole]int `json:"per_segment_chars"`
	EstimatedTokens int                 `json:"estimated_tokens"`
}

// ContextPackage is the ordered list of (role, text) pairs ready to be handed
// to a generation call, plus size metadata. Empty segments are omitted.
type ContextPackage struct {
	Segments []ContextSegment `json:"segments"`
	Meta     ContextMeta      `json:"meta"`
}
