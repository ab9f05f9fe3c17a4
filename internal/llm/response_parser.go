package llm

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/inklet/chronicle/pkg/types"
)

// extractJSON extracts the first complete JSON object from a string that may
// contain extra text. Models routinely wrap the JSON in markdown fences or
// prepend explanations despite instructions.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no JSON found, let the parser fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // unterminated JSON, return as-is
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ParseUpdateBatch parses the chapter-analysis JSON into an UpdateBatch.
// Individual invalid entries (missing names, unknown types) are skipped with
// a log line rather than failing the whole batch; out-of-range scalars are
// clamped. An error is returned only when the JSON itself is malformed —
// callers fall back to an empty batch in that case.
func ParseUpdateBatch(chapter int, raw string) (*types.UpdateBatch, error) {
	cleanJSON := extractJSON(raw)

	var parsed types.UpdateBatch
	if err := json.Unmarshal([]byte(cleanJSON), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}

	batch := &types.UpdateBatch{
		Chapter: chapter,
		Summary: strings.TrimSpace(parsed.Summary),
	}

	for _, ch := range parsed.Characters {
		ch.Name = strings.TrimSpace(ch.Name)
		if ch.Name == "" {
			log.Printf("response_parser: skipping character entry with empty name")
			continue
		}
		if ch.Role != "" && !types.IsValidRoleTag(ch.Role) {
			log.Printf("response_parser: character %q has unknown role %q, treating as SUPPORT", ch.Name, ch.Role)
			ch.Role = types.RoleSupport
		}
		ch.InfluenceScore = clamp(ch.InfluenceScore, 0, 100)
		ch.ScreenTime = clamp(ch.ScreenTime, 0, 1)
		ch.ReturnProbability = clamp(ch.ReturnProbability, 0, 1)
		batch.Characters = append(batch.Characters, ch)
	}

	for _, ev := range parsed.Events {
		ev.Description = strings.TrimSpace(ev.Description)
		if ev.Description == "" {
			continue
		}
		batch.Events = append(batch.Events, ev)
	}

	for _, f := range parsed.Foreshadowing {
		f.Content = strings.TrimSpace(f.Content)
		if f.Content == "" {
			log.Printf("response_parser: skipping foreshadowing entry with empty content")
			continue
		}
		switch f.Status {
		case types.ForeshadowActive, types.ForeshadowDeveloping, types.ForeshadowResolved:
		case "":
			f.Status = types.ForeshadowActive
		default:
			log.Printf("response_parser: foreshadowing %q has unknown status %q, treating as ACTIVE", f.Content, f.Status)
			f.Status = types.ForeshadowActive
		}
		batch.Foreshadowing = append(batch.Foreshadowing, f)
	}

	for _, w := range parsed.WorldEntities {
		w.Name = strings.TrimSpace(w.Name)
		if w.Name == "" {
			log.Printf("response_parser: skipping world entity entry with empty name")
			continue
		}
		if !types.IsValidWorldEntityType(w.Type) {
			log.Printf("response_parser: skipping world entity %q with unknown type %q", w.Name, w.Type)
			continue
		}
		w.InfluenceScore = clamp(w.InfluenceScore, 0, 100)
		batch.WorldEntities = append(batch.WorldEntities, w)
	}

	if parsed.Protagonist != nil {
		p := *parsed.Protagonist
		p.Name = strings.TrimSpace(p.Name)
		batch.Protagonist = &p
	}

	return batch, nil
}
