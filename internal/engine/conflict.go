package engine

import (
	"fmt"

	"github.com/inklet/chronicle/pkg/types"
)

// ConflictWarning describes one cross-entity contradiction found in the
// store. Warnings are advisory: nothing is mutated and generation proceeds.
type ConflictWarning struct {
	Character           string `json:"character"`
	Status              string `json:"status"`
	StatusChangeChapter int    `json:"status_change_chapter"`
	LastAppearance      int    `json:"last_appearance"`
	Message             string `json:"message"`
}

// terminalStatuses are status labels after which a character should not
// appear again.
var terminalStatuses = map[string]bool{
	"DEAD":     true,
	"DECEASED": true,
	"死亡":       true,
	"已死":       true,
}

// DetectConflicts scans character profiles for terminal-status characters
// whose lastAppearance postdates the chapter the status was recorded in —
// the character was referenced again after being written out. Pure read-only
// pass.
func DetectConflicts(profiles []*types.CharacterProfile) []ConflictWarning {
	var warnings []ConflictWarning
	for _, p := range profiles {
		if !terminalStatuses[p.Status] {
			continue
		}
		if p.LastAppearance <= p.StatusChangeChapter {
			continue
		}
		warnings = append(warnings, ConflictWarning{
			Character:           p.Name,
			Status:              p.Status,
			StatusChangeChapter: p.StatusChangeChapter,
			LastAppearance:      p.LastAppearance,
			Message: fmt.Sprintf("%s 在第%d章状态为 %s，却在第%d章再次出现",
				p.Name, p.StatusChangeChapter, p.Status, p.LastAppearance),
		})
	}
	return warnings
}
