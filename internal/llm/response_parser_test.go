package llm

import (
	"strings"
	"testing"

	"github.com/inklet/chronicle/pkg/types"
)

func TestExtractJSON_MarkdownFences(t *testing.T) {
	input := "```json\n{\"summary\": \"test\"}\n```"
	result := extractJSON(input)
	if result != `{"summary": "test"}` {
		t.Errorf("expected clean JSON, got %q", result)
	}
}

func TestExtractJSON_SurroundingText(t *testing.T) {
	input := `好的，以下是分析结果：
{"summary": "主角入门"}
希望对你有帮助。`
	result := extractJSON(input)
	if result != `{"summary": "主角入门"}` {
		t.Errorf("expected extracted JSON, got %q", result)
	}
}

func TestExtractJSON_NestedBracesAndStrings(t *testing.T) {
	input := `prefix {"a": {"b": "va}lue"}, "c": "x{y"} suffix`
	result := extractJSON(input)
	if result != `{"a": {"b": "va}lue"}, "c": "x{y"}` {
		t.Errorf("brace scan mishandled nested/quoted braces: %q", result)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	input := "no json here"
	if result := extractJSON(input); result != input {
		t.Errorf("expected input returned as-is, got %q", result)
	}
}

func TestParseUpdateBatch_FullResponse(t *testing.T) {
	raw := `{
		"summary": "林昭拜入青云宗，结识苏长老。",
		"characters": [
			{"name": "林昭", "role": "PROTAGONIST", "status": "ACTIVE", "influence_score": 90, "screen_time": 0.8, "return_probability": 1.0, "hook_line": "背负血仇的少年"},
			{"name": "苏长老", "role": "SUPPORT", "influence_score": 40, "screen_time": 0.2, "return_probability": 0.6}
		],
		"events": [{"description": "林昭通过入门考核", "timeline_info": "入秋"}],
		"foreshadowing": [{"content": "苏长老袖中的黑色令牌", "status": "ACTIVE", "type": "物品", "priority": 3}],
		"world_entities": [{"name": "青云宗", "type": "ORGANIZATION", "hook_line": "北境剑修第一宗", "influence_score": 70, "related_characters": ["林昭"]}],
		"protagonist": {"name": "林昭", "location": "青云宗", "power_level": "炼气一层"}
	}`

	batch, err := ParseUpdateBatch(12, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Chapter != 12 {
		t.Errorf("chapter = %d, want 12", batch.Chapter)
	}
	if len(batch.Characters) != 2 {
		t.Fatalf("characters = %d, want 2", len(batch.Characters))
	}
	if batch.Characters[0].Role != types.RoleProtagonist {
		t.Errorf("role = %q, want PROTAGONIST", batch.Characters[0].Role)
	}
	if len(batch.Events) != 1 || len(batch.Foreshadowing) != 1 || len(batch.WorldEntities) != 1 {
		t.Errorf("sub-lists not fully parsed: %+v", batch)
	}
	if batch.Protagonist == nil || batch.Protagonist.PowerLevel != "炼气一层" {
		t.Errorf("protagonist not parsed: %+v", batch.Protagonist)
	}
}

func TestParseUpdateBatch_MalformedJSON(t *testing.T) {
	_, err := ParseUpdateBatch(1, `{"summary": "truncated`)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestParseUpdateBatch_SkipsInvalidEntries(t *testing.T) {
	raw := `{
		"characters": [
			{"name": "", "role": "MAJOR"},
			{"name": "有效角色", "role": "SUPPORT"}
		],
		"events": [{"description": "  "}],
		"foreshadowing": [{"content": ""}],
		"world_entities": [
			{"name": "天气", "type": "WEATHER"},
			{"name": "诛仙剑", "type": "ARTIFACT"}
		]
	}`

	batch, err := ParseUpdateBatch(3, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Characters) != 1 || batch.Characters[0].Name != "有效角色" {
		t.Errorf("expected one valid character, got %+v", batch.Characters)
	}
	if len(batch.Events) != 0 {
		t.Errorf("expected blank event skipped, got %+v", batch.Events)
	}
	if len(batch.Foreshadowing) != 0 {
		t.Errorf("expected empty foreshadowing skipped, got %+v", batch.Foreshadowing)
	}
	if len(batch.WorldEntities) != 1 || batch.WorldEntities[0].Name != "诛仙剑" {
		t.Errorf("expected unknown world type skipped, got %+v", batch.WorldEntities)
	}
}

func TestParseUpdateBatch_ClampsScalars(t *testing.T) {
	raw := `{
		"characters": [{"name": "张三", "role": "MAJOR", "influence_score": 150, "screen_time": -0.5, "return_probability": 2.0}],
		"world_entities": [{"name": "青云宗", "type": "ORGANIZATION", "influence_score": -10}]
	}`

	batch, err := ParseUpdateBatch(1, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ch := batch.Characters[0]
	if ch.InfluenceScore != 100 || ch.ScreenTime != 0 || ch.ReturnProbability != 1 {
		t.Errorf("scalars not clamped: %+v", ch)
	}
	if batch.WorldEntities[0].InfluenceScore != 0 {
		t.Errorf("world influence not clamped: %v", batch.WorldEntities[0].InfluenceScore)
	}
}

func TestParseUpdateBatch_UnknownRoleDowngraded(t *testing.T) {
	raw := `{"characters": [{"name": "李四", "role": "SIDEKICK"}]}`
	batch, err := ParseUpdateBatch(1, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Characters[0].Role != types.RoleSupport {
		t.Errorf("unknown role should downgrade to SUPPORT, got %q", batch.Characters[0].Role)
	}
}

func TestParseUpdateBatch_UnknownForeshadowStatusDefaultsActive(t *testing.T) {
	raw := `{"foreshadowing": [{"content": "神秘玉佩", "status": "MAYBE"}]}`
	batch, err := ParseUpdateBatch(1, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Foreshadowing[0].Status != types.ForeshadowActive {
		t.Errorf("status = %q, want ACTIVE", batch.Foreshadowing[0].Status)
	}
}

func TestParseUpdateBatch_IgnoresUnknownFields(t *testing.T) {
	raw := `{"summary": "概要", "mood": "tense", "confidence": 0.9}`
	batch, err := ParseUpdateBatch(1, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Summary != "概要" {
		t.Errorf("summary = %q", batch.Summary)
	}
}

func TestChapterAnalysisPrompt_IncludesKnownNames(t *testing.T) {
	prompt := ChapterAnalysisPrompt(7, "章节正文……",
		[]string{"林昭", "苏长老"}, []string{"青云宗"}, []string{"黑色令牌"})

	for _, want := range []string{"林昭、苏长老", "青云宗", "黑色令牌", "第7章"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestChapterAnalysisPrompt_EmptyListsRenderNone(t *testing.T) {
	prompt := ChapterAnalysisPrompt(1, "正文", nil, nil, nil)
	if !strings.Contains(prompt, "无") {
		t.Error("empty known lists should render as 无")
	}
}
