package engine

import (
	"fmt"
	"testing"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/pkg/types"
)

func testSelector() *Selector {
	return NewSelector(config.DefaultSelection(), testScorer())
}

func TestSelector_ForceIncludesProtagonistAndAntagonist(t *testing.T) {
	sel := testSelector()
	profiles := []*types.CharacterProfile{
		{Name: "林昭", Role: types.RoleProtagonist, LastAppearance: 1},       // stale but forced
		{Name: "血魔老祖", Role: types.RoleAntagonist, LastAppearance: 1},      // stale but forced
		{Name: "路人", Role: types.RoleSupport, LastAppearance: 99, InfluenceScore: 100},
	}

	got := sel.SelectCharacters(profiles, 100, emptyKeywords())
	names := map[string]bool{}
	for _, p := range got {
		names[p.Name] = true
	}
	if !names["林昭"] || !names["血魔老祖"] {
		t.Errorf("protagonist/antagonist dropped: %v", names)
	}
}

func TestSelector_TriggerGate(t *testing.T) {
	sel := testSelector()
	profiles := []*types.CharacterProfile{
		{Name: "拍卖师", Role: types.RoleSupport, LastAppearance: 9, TriggerConditions: "拍卖会"},
		{Name: "守墓人", Role: types.RoleSupport, LastAppearance: 9, TriggerConditions: "剑冢"},
	}

	kw := BuildKeywordSet(&ChapterPlan{Goal: "参加拍卖会"}, nil)
	got := sel.SelectCharacters(profiles, 10, kw)

	if len(got) != 1 || got[0].Name != "拍卖师" {
		t.Errorf("trigger gate failed: %v", got)
	}
}

func TestSelector_NegativeTriggerGate(t *testing.T) {
	sel := testSelector()
	profiles := []*types.CharacterProfile{
		{Name: "故乡旧识", Role: types.RoleSupport, LastAppearance: 9, TriggerConditions: "离开青云宗"},
	}

	inSect := BuildKeywordSet(&ChapterPlan{Location: "青云宗大殿"}, nil)
	if got := sel.SelectCharacters(profiles, 10, inSect); len(got) != 0 {
		t.Errorf("negative condition should gate while keyword present: %v", got)
	}

	away := BuildKeywordSet(&ChapterPlan{Location: "北境荒原"}, nil)
	if got := sel.SelectCharacters(profiles, 10, away); len(got) != 1 {
		t.Errorf("negative condition should pass when keyword absent: %v", got)
	}
}

func TestSelector_QuotasAndOverallCap(t *testing.T) {
	sel := testSelector()

	// 1 protagonist + 6 majors above base + 4 supports: expect 1+5+2=8 with
	// the weakest major and the two weakest supports dropped.
	profiles := []*types.CharacterProfile{
		{Name: "主角", Role: types.RoleProtagonist, LastAppearance: 10},
	}
	for i := 0; i < 6; i++ {
		profiles = append(profiles, &types.CharacterProfile{
			Name:           fmt.Sprintf("major-%d", i),
			Role:           types.RoleMajor,
			InfluenceScore: float64(90 - i*10), // major-5 is the weakest
			LastAppearance: 10,
		})
	}
	for i := 0; i < 4; i++ {
		profiles = append(profiles, &types.CharacterProfile{
			Name:           fmt.Sprintf("support-%d", i),
			Role:           types.RoleSupport,
			InfluenceScore: float64(80 - i*10),
			LastAppearance: 10,
		})
	}

	got := sel.SelectCharacters(profiles, 10, emptyKeywords())
	if len(got) != 8 {
		t.Fatalf("selected %d characters, want 8", len(got))
	}

	majors, supports := 0, 0
	names := map[string]bool{}
	for _, p := range got {
		names[p.Name] = true
		switch p.Role {
		case types.RoleMajor:
			majors++
		case types.RoleSupport:
			supports++
		}
	}
	if majors != 5 || supports != 2 {
		t.Errorf("quota split = %d majors / %d supports, want 5/2", majors, supports)
	}
	if !names["主角"] {
		t.Error("protagonist missing")
	}
	for _, dropped := range []string{"major-5", "support-2", "support-3"} {
		if names[dropped] {
			t.Errorf("lowest-scoring %s should have been dropped", dropped)
		}
	}
}

func TestSelector_WorldEntitiesPerTypeQuota(t *testing.T) {
	sel := testSelector()

	var entities []*types.WorldEntity
	for i := 0; i < 5; i++ {
		entities = append(entities, &types.WorldEntity{
			Name: fmt.Sprintf("org-%d", i), Type: types.WorldOrganization,
			InfluenceScore: float64(90 - i*10), LastMention: 10,
		})
	}
	for i := 0; i < 3; i++ {
		entities = append(entities, &types.WorldEntity{
			Name: fmt.Sprintf("loc-%d", i), Type: types.WorldLocation,
			InfluenceScore: float64(80 - i*10), LastMention: 10,
		})
	}
	entities = append(entities, &types.WorldEntity{
		Name: "artifact-0", Type: types.WorldArtifact, InfluenceScore: 70, LastMention: 10,
	})

	orgs, locations, artifacts := sel.SelectWorldEntities(entities, 10, emptyKeywords())
	if len(orgs) != 3 || len(locations) != 2 || len(artifacts) != 1 {
		t.Errorf("per-type counts = %d/%d/%d, want 3/2/1", len(orgs), len(locations), len(artifacts))
	}
	if orgs[0].Name != "org-0" {
		t.Errorf("top organization = %s, want org-0", orgs[0].Name)
	}
}
