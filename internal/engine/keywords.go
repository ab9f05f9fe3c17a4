package engine

import "strings"

// ChapterPlan is the request to plan context for the next chapter. Free-text
// fields (outline, volume, previous chapter, user direction) pass straight
// through to the assembler; title, goal and location also seed the keyword set
// used for scoring and trigger gating.
type ChapterPlan struct {
	ManuscriptID string
	Chapter      int
	Title        string
	Goal         string
	Location     string

	SystemIdentity  string
	BasicInfo       string
	Outline         string
	CurrentVolume   string
	PreviousChapter string
	UserDirection   string
}

// KeywordSet is the textual context a chapter is planned against: explicit
// keywords (title, goal, location) plus a concatenated blob of recent
// summaries and entity hooks. Matching is plain substring containment, which
// works for CJK names where word boundaries don't exist.
type KeywordSet struct {
	keywords []string
	blob     string
}

// BuildKeywordSet constructs the keyword set for a chapter plan.
// extras carries recently-mentioned entity hook lines and recent chapter
// summaries.
func BuildKeywordSet(plan *ChapterPlan, extras []string) *KeywordSet {
	var keywords []string
	for _, k := range []string{plan.Title, plan.Goal, plan.Location} {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	var sb strings.Builder
	for _, k := range keywords {
		sb.WriteString(k)
		sb.WriteByte('\n')
	}
	for _, e := range extras {
		if e = strings.TrimSpace(e); e != "" {
			sb.WriteString(e)
			sb.WriteByte('\n')
		}
	}

	return &KeywordSet{keywords: keywords, blob: sb.String()}
}

// Contains reports whether term appears anywhere in the keyword material.
func (k *KeywordSet) Contains(term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(k.blob, term)
}

// MatchesCondition evaluates a trigger condition against the keyword set.
// A plain condition passes when the condition text (or one of its
// comma-separated alternatives) appears in the keyword material. Negative
// conditions ("离开X" / "left X") invert the check: they pass only when the
// named keyword is absent.
func (k *KeywordSet) MatchesCondition(condition string) bool {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true
	}

	for _, alt := range strings.FieldsFunc(condition, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || r == '；'
	}) {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		if target, negative := negativeTarget(alt); negative {
			if !k.Contains(target) {
				return true
			}
			continue
		}
		if k.Contains(alt) {
			return true
		}
	}
	return false
}

// negativeTarget extracts the keyword from a negative condition form.
func negativeTarget(condition string) (string, bool) {
	for _, prefix := range []string{"离开", "left "} {
		if strings.HasPrefix(condition, prefix) {
			target := strings.TrimSpace(strings.TrimPrefix(condition, prefix))
			if target != "" {
				return target, true
			}
		}
	}
	return "", false
}

// longestCommonSubstring returns the length in runes of the longest common
// substring of a and b. Used for partial hook-line overlap credit.
func longestCommonSubstring(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	best := 0

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}

// HookOverlap returns the longest common substring length between the keyword
// material and a hook line.
func (k *KeywordSet) HookOverlap(hookLine string) int {
	if hookLine == "" || k.blob == "" {
		return 0
	}
	return longestCommonSubstring(k.blob, hookLine)
}
