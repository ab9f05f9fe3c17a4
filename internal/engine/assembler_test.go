package engine

import (
	"strings"
	"testing"

	"github.com/inklet/chronicle/pkg/types"
)

func TestAssemble_FixedOrderAndOmittedEmpties(t *testing.T) {
	a := NewAssembler()
	pkg := a.Assemble(AssemblyInput{
		Plan: &ChapterPlan{
			Chapter:        12,
			Title:          "剑冢之变",
			SystemIdentity: "你是一位网文作者。",
			UserDirection:  "节奏加快",
		},
		Selection: &Selection{
			Characters: []*types.CharacterProfile{
				{Name: "林昭", Role: types.RoleProtagonist, Status: "ACTIVE", HookLine: "背负血仇的少年"},
			},
		},
	})

	wantOrder := []types.SegmentRole{
		types.SegmentSystemIdentity,
		types.SegmentCharacterRoster,
		types.SegmentUserDirection,
		types.SegmentChapterTask,
	}
	if len(pkg.Segments) != len(wantOrder) {
		t.Fatalf("segments = %d, want %d: %+v", len(pkg.Segments), len(wantOrder), pkg.Segments)
	}
	for i, role := range wantOrder {
		if pkg.Segments[i].Role != role {
			t.Errorf("segment %d role = %s, want %s", i, pkg.Segments[i].Role, role)
		}
	}
}

func TestAssemble_Metadata(t *testing.T) {
	a := NewAssembler()
	pkg := a.Assemble(AssemblyInput{
		Plan: &ChapterPlan{Chapter: 1, Outline: "三段式大纲"},
	})

	if pkg.Meta.SegmentCount != len(pkg.Segments) {
		t.Errorf("segment count = %d, want %d", pkg.Meta.SegmentCount, len(pkg.Segments))
	}
	total := 0
	for _, size := range pkg.Meta.PerSegmentChars {
		total += size
	}
	if total != pkg.Meta.TotalChars {
		t.Errorf("per-segment sizes sum to %d, total is %d", total, pkg.Meta.TotalChars)
	}
	if pkg.Meta.EstimatedTokens != int(float64(pkg.Meta.TotalChars)/1.7) {
		t.Errorf("token estimate = %d for %d chars", pkg.Meta.EstimatedTokens, pkg.Meta.TotalChars)
	}
}

func TestAssemble_SummariesReadForward(t *testing.T) {
	a := NewAssembler()
	pkg := a.Assemble(AssemblyInput{
		Plan: &ChapterPlan{Chapter: 8},
		Summaries: []*types.ChapterSummary{
			{Chapter: 7, Summary: "第七章事"},
			{Chapter: 6, Summary: "第六章事"},
		},
	})

	var text string
	for _, seg := range pkg.Segments {
		if seg.Role == types.SegmentPriorSummaries {
			text = seg.Text
		}
	}
	if text == "" {
		t.Fatal("prior summaries segment missing")
	}
	if strings.Index(text, "第6章") > strings.Index(text, "第7章") {
		t.Errorf("summaries should read oldest-first:\n%s", text)
	}
}

func TestAssemble_ResolvedForeshadowingExcluded(t *testing.T) {
	a := NewAssembler()
	resolved := 5
	pkg := a.Assemble(AssemblyInput{
		Plan: &ChapterPlan{Chapter: 9},
		Foreshadowing: []*types.ForeshadowingRecord{
			{Content: "神秘玉佩", Status: types.ForeshadowActive, PlantedChapter: 3},
			{Content: "旧伤复发", Status: types.ForeshadowResolved, PlantedChapter: 2, ResolvedChapter: &resolved},
		},
	})

	for _, seg := range pkg.Segments {
		if seg.Role == types.SegmentForeshadowing {
			if !strings.Contains(seg.Text, "神秘玉佩") {
				t.Error("active foreshadowing missing")
			}
			if strings.Contains(seg.Text, "旧伤复发") {
				t.Error("resolved foreshadowing should be excluded")
			}
			return
		}
	}
	t.Fatal("foreshadowing segment missing")
}

func TestAssemble_PendingEnrichmentHidden(t *testing.T) {
	a := NewAssembler()
	pkg := a.Assemble(AssemblyInput{
		Plan: &ChapterPlan{Chapter: 2},
		Selection: &Selection{
			Characters: []*types.CharacterProfile{
				{Name: "新人物", Role: types.RoleMajor, Status: "ACTIVE",
					HookLine: types.PendingValue, CoreTrait: types.PendingValue},
			},
		},
	})

	for _, seg := range pkg.Segments {
		if seg.Role == types.SegmentCharacterRoster && strings.Contains(seg.Text, types.PendingValue) {
			t.Errorf("placeholder leaked into roster:\n%s", seg.Text)
		}
	}
}
