package types

import "time"

// WorldEntityType classifies non-character world entities.
type WorldEntityType string

const (
	WorldOrganization WorldEntityType = "ORGANIZATION" // Sects, factions, companies, courts
	WorldLocation     WorldEntityType = "LOCATION"     // Places of recurring narrative weight
	WorldArtifact     WorldEntityType = "ARTIFACT"     // Items, weapons, treasures
)

// ValidWorldEntityTypes contains all valid world entity type values.
var ValidWorldEntityTypes = []WorldEntityType{
	WorldOrganization,
	WorldLocation,
	WorldArtifact,
}

// IsValidWorldEntityType checks if the given type is a valid world entity type.
func IsValidWorldEntityType(t WorldEntityType) bool {
	for _, valid := range ValidWorldEntityTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// WorldEntity is a non-character entity (organization, location, artifact)
// kept in the main store. Entities below the minimum influence threshold are
// dropped at merge time, not stored: this is a hard filter that keeps
// incidental scenery from growing the store without bound.
type WorldEntity struct {
	ManuscriptID      string          `json:"manuscript_id"`
	Name              string          `json:"name"` // Unique within (manuscript, type)
	Type              WorldEntityType `json:"type"`
	HookLine          string          `json:"hook_line,omitempty"` // Short description; merge keeps the longer of old/new
	InfluenceScore    float64         `json:"influence_score"`     // 0-100; merge takes the maximum
	RelatedCharacters []string        `json:"related_characters,omitempty"` // Set union on merge
	FirstMention      int             `json:"first_mention"`
	LastMention       int             `json:"last_mention"`
	MentionCount      int             `json:"mention_count"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
