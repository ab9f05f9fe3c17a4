package types

import "time"

// RoleTag classifies a character's narrative role within a manuscript.
type RoleTag string

const (
	RoleProtagonist RoleTag = "PROTAGONIST" // The single lead character
	RoleAntagonist  RoleTag = "ANTAGONIST"  // Primary opposing force
	RoleMajor       RoleTag = "MAJOR"       // Recurring character with arc relevance
	RoleSupport     RoleTag = "SUPPORT"     // Minor recurring character
	RoleCameo       RoleTag = "CAMEO"       // One-off or background mention
)

// ValidRoleTags contains all valid role tag values.
var ValidRoleTags = []RoleTag{
	RoleProtagonist,
	RoleAntagonist,
	RoleMajor,
	RoleSupport,
	RoleCameo,
}

// IsValidRoleTag checks if the given tag is a valid role tag.
func IsValidRoleTag(tag RoleTag) bool {
	for _, valid := range ValidRoleTags {
		if tag == valid {
			return true
		}
	}
	return false
}

// Lifecycle classifies how a character is retained across the manuscript's
// timeline. It is always derived from the role tag, never set directly.
type Lifecycle string

const (
	LifecycleCore        Lifecycle = "CORE"         // Protagonist/antagonist, always carried
	LifecycleArcSupport  Lifecycle = "ARC_SUPPORT"  // Major characters tied to current arcs
	LifecycleTempSupport Lifecycle = "TEMP_SUPPORT" // Support characters, recency-bound
	LifecycleCameo       Lifecycle = "CAMEO"        // Minimal retention
)

// DeriveLifecycle returns the lifecycle class for a role tag.
// CORE if and only if the role is PROTAGONIST or ANTAGONIST.
func DeriveLifecycle(tag RoleTag) Lifecycle {
	switch tag {
	case RoleProtagonist, RoleAntagonist:
		return LifecycleCore
	case RoleMajor:
		return LifecycleArcSupport
	case RoleSupport:
		return LifecycleTempSupport
	default:
		return LifecycleCameo
	}
}

// PendingValue is the human-readable placeholder written into enrichment
// fields the extractor did not supply. A field holding this value is
// considered empty for merge purposes.
const PendingValue = "待补充"

// CharacterProfile is the full record kept for a significant character.
// Profiles are created on first extraction and mutated by every subsequent
// chapter that mentions the character. They are never deleted, only demoted
// to the cameo table when their signals fall below threshold.
type CharacterProfile struct {
	// Identity
	ManuscriptID string  `json:"manuscript_id"` // Owning manuscript (tenant)
	Name         string  `json:"name"`          // Unique within the manuscript
	Role         RoleTag `json:"role"`          // Narrative role classification

	// Status tracking
	Status              string `json:"status,omitempty"`        // Free-form state label (ACTIVE, DEAD, INJURED, ABSENT, ...)
	StatusChangeChapter int    `json:"status_change_chapter"`   // Chapter where Status was last set
	FirstAppearance     int    `json:"first_appearance"`        // Chapter of first extraction
	LastAppearance      int    `json:"last_appearance"`         // Most recent chapter merged in
	AppearanceCount     int    `json:"appearance_count"`        // Chapters merged in (once per chapter, not per mention)

	// Strength signals (merge takes the maximum of old/new)
	InfluenceScore    float64 `json:"influence_score"`    // 0-100, plot influence
	ScreenTime        float64 `json:"screen_time"`        // 0-1, share of a chapter
	ReturnProbability float64 `json:"return_probability"` // 0-1, likelihood of reappearing

	// Enrichment fields (overwritten only if empty/placeholder or strictly longer)
	CoreTrait          string `json:"core_trait,omitempty"`           // Defining personality trait
	SpeechStyle        string `json:"speech_style,omitempty"`         // Voice and diction notes
	Desire             string `json:"desire,omitempty"`               // What the character wants
	HookLine           string `json:"hook_line,omitempty"`            // One-line identity summary
	LinksToProtagonist string `json:"links_to_protagonist,omitempty"` // Relationship to the lead
	TriggerConditions  string `json:"trigger_conditions,omitempty"`   // Textual precondition for selection

	// Derived retention class
	Lifecycle Lifecycle `json:"lifecycle"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEnrichmentPending reports whether an enrichment field value is empty or
// still holds the pending placeholder.
func IsEnrichmentPending(value string) bool {
	return value == "" || value == PendingValue
}

// CameoRecord is the deliberately impoverished twin of CharacterProfile for
// characters judged insignificant. It exists so the system never silently
// forgets a name entirely, without paying the cost of full enrichment.
type CameoRecord struct {
	ManuscriptID string    `json:"manuscript_id"`
	Name         string    `json:"name"`
	HookLine     string    `json:"hook_line,omitempty"`
	Chapters     []int     `json:"chapters,omitempty"` // Chapters where the name was mentioned
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProtagonistStatus tracks the lead character's current situation per
// manuscript. Fields merge fill-if-missing; a later chapter's non-empty value
// overwrites an earlier one.
type ProtagonistStatus struct {
	ManuscriptID   string    `json:"manuscript_id"`
	Name           string    `json:"name,omitempty"`
	CurrentState   string    `json:"current_state,omitempty"`   // Physical/emotional situation
	Location       string    `json:"location,omitempty"`        // Where the lead currently is
	PowerLevel     string    `json:"power_level,omitempty"`     // Realm/rank/capability label
	Possessions    []string  `json:"possessions,omitempty"`     // Notable held items
	UpdatedChapter int       `json:"updated_chapter"`           // Chapter of last update
	UpdatedAt      time.Time `json:"updated_at"`
}
