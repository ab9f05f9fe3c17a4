package engine

import (
	"log"
	"sort"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/pkg/types"
)

// Selection is the working set picked for one chapter's context.
type Selection struct {
	Characters    []*types.CharacterProfile `json:"characters"`
	Organizations []*types.WorldEntity      `json:"organizations"`
	Locations     []*types.WorldEntity      `json:"locations"`
	Artifacts     []*types.WorldEntity      `json:"artifacts"`
}

// Selector applies hard business rules on top of the relevance-score ranking:
// protagonist/antagonist force-inclusion, trigger-condition gating, and
// role-based quotas.
type Selector struct {
	cfg    config.SelectionConfig
	scorer *RelevanceScorer
}

// NewSelector creates a selector with the given quotas.
func NewSelector(cfg config.SelectionConfig, scorer *RelevanceScorer) *Selector {
	return &Selector{cfg: cfg, scorer: scorer}
}

type scoredCharacter struct {
	profile *types.CharacterProfile
	score   float64
}

// SelectCharacters picks the chapter's character roster. PROTAGONIST and
// ANTAGONIST profiles are always included, bypass the trigger gate, and do
// not count against the role quotas. Remaining candidates pass the trigger
// gate, then are admitted by score under the MAJOR/SUPPORT quotas and the
// overall cap.
func (s *Selector) SelectCharacters(profiles []*types.CharacterProfile, chapter int, kw *KeywordSet) []*types.CharacterProfile {
	var selected []*types.CharacterProfile
	var candidates []scoredCharacter

	for _, p := range profiles {
		if p.Role == types.RoleProtagonist || p.Role == types.RoleAntagonist {
			selected = append(selected, p)
			continue
		}

		if p.TriggerConditions != "" && !kw.MatchesCondition(p.TriggerConditions) {
			log.Printf("selector: %s gated out, trigger condition %q unmet", p.Name, p.TriggerConditions)
			continue
		}

		candidates = append(candidates, scoredCharacter{
			profile: p,
			score:   s.scorer.ScoreCharacter(p, chapter, kw),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	majorCount, supportCount := 0, 0
	for _, c := range candidates {
		if len(selected) >= s.cfg.MaxCharacters {
			break
		}
		switch c.profile.Role {
		case types.RoleMajor:
			if majorCount >= s.cfg.MaxMajor {
				continue
			}
			majorCount++
		case types.RoleSupport:
			if supportCount >= s.cfg.MaxSupport {
				continue
			}
			supportCount++
		default:
			continue
		}
		selected = append(selected, c.profile)
	}

	return selected
}

// SelectWorldEntities picks the top entities per type purely by score, with
// no trigger gating.
func (s *Selector) SelectWorldEntities(entities []*types.WorldEntity, chapter int, kw *KeywordSet) (orgs, locations, artifacts []*types.WorldEntity) {
	byType := map[types.WorldEntityType][]*types.WorldEntity{}
	for _, e := range entities {
		byType[e.Type] = append(byType[e.Type], e)
	}

	pick := func(list []*types.WorldEntity, limit int) []*types.WorldEntity {
		sort.SliceStable(list, func(i, j int) bool {
			return s.scorer.ScoreWorldEntity(list[i], chapter, kw) > s.scorer.ScoreWorldEntity(list[j], chapter, kw)
		})
		if len(list) > limit {
			list = list[:limit]
		}
		return list
	}

	orgs = pick(byType[types.WorldOrganization], s.cfg.MaxOrganizations)
	locations = pick(byType[types.WorldLocation], s.cfg.MaxLocations)
	artifacts = pick(byType[types.WorldArtifact], s.cfg.MaxArtifacts)
	return orgs, locations, artifacts
}
