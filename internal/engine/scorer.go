package engine

import (
	"math"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/pkg/types"
)

// RelevanceScorer computes how relevant a stored entity is to the chapter
// currently being planned. Scores combine a role/influence importance
// component, exponential recency decay, and keyword overlap. Scores are
// recomputed on every planning call and never cached: recency changes every
// chapter.
type RelevanceScorer struct {
	cfg config.ScoringConfig
}

// NewRelevanceScorer creates a scorer with the given weights.
func NewRelevanceScorer(cfg config.ScoringConfig) *RelevanceScorer {
	return &RelevanceScorer{cfg: cfg}
}

// ScoreCharacter scores a character profile against the chapter being planned.
func (s *RelevanceScorer) ScoreCharacter(p *types.CharacterProfile, chapter int, kw *KeywordSet) float64 {
	importance := s.roleBase(p.Role) + s.cfg.CharacterInfluenceWeight*p.InfluenceScore
	recency := s.recency(chapter, p.LastAppearance, s.cfg.CharacterDecayRate)
	keyword := s.keywordCredit(p.Name, p.HookLine, kw)

	return math.Min(importance+recency+keyword, s.cfg.MaxScore)
}

// ScoreWorldEntity scores a world entity against the chapter being planned.
// World entities carry no role tag, so influence carries double the weight.
func (s *RelevanceScorer) ScoreWorldEntity(e *types.WorldEntity, chapter int, kw *KeywordSet) float64 {
	importance := s.cfg.WorldInfluenceWeight * e.InfluenceScore
	recency := s.recency(chapter, e.LastMention, s.cfg.WorldDecayRate)
	keyword := s.keywordCredit(e.Name, e.HookLine, kw)

	return math.Min(importance+recency+keyword, s.cfg.MaxScore)
}

func (s *RelevanceScorer) roleBase(role types.RoleTag) float64 {
	switch role {
	case types.RoleProtagonist:
		return s.cfg.ProtagonistBase
	case types.RoleAntagonist:
		return s.cfg.AntagonistBase
	case types.RoleMajor:
		return s.cfg.MajorBase
	case types.RoleSupport:
		return s.cfg.SupportBase
	default:
		return 0
	}
}

// recency is exp(-k × gap) × W. A gap below zero (entity already merged for
// this chapter) counts as zero.
func (s *RelevanceScorer) recency(chapter, lastSeen int, decayRate float64) float64 {
	gap := chapter - lastSeen
	if gap < 0 {
		gap = 0
	}
	return math.Exp(-decayRate*float64(gap)) * s.cfg.RecencyWeight
}

// keywordCredit gives full credit for a direct name hit, otherwise partial
// credit for hook-line substring overlap of at least MinSubstringRune runes.
func (s *RelevanceScorer) keywordCredit(name, hookLine string, kw *KeywordSet) float64 {
	if kw == nil {
		return 0
	}
	if kw.Contains(name) {
		return s.cfg.KeywordPoints
	}
	overlap := kw.HookOverlap(hookLine)
	if overlap < s.cfg.MinSubstringRune {
		return 0
	}
	return math.Min(float64(overlap), s.cfg.HookOverlapMax)
}
