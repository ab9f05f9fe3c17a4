package llm

import (
	"fmt"
	"strings"
)

// chapterAnalysisTemplate is the single structured-analysis prompt. One call
// per chapter extracts characters, events, foreshadowing, world entities, the
// protagonist's situation and a chapter summary in one JSON document. The
// known-name lists anchor the model to existing spellings so merges hit the
// right records.
const chapterAnalysisTemplate = `你是小说设定管理助手。阅读下面的章节正文，提取结构化记忆信息。

已知角色（请沿用这些名字，不要改写）：%s
已知世界设定（组织/地点/神器）：%s
未回收的伏笔：%s

章节号：第%d章

章节正文：
%s

请只输出一个 JSON 对象，不要输出任何解释文字。格式如下：
{
  "summary": "本章概要，100字以内",
  "characters": [
    {
      "name": "角色名",
      "role": "PROTAGONIST|ANTAGONIST|MAJOR|SUPPORT|CAMEO",
      "status": "当前状态，如 ACTIVE、DEAD、MISSING",
      "influence_score": 0到100的数字,
      "screen_time": 0到1的小数（本章戏份占比）,
      "return_probability": 0到1的小数（再次登场概率）,
      "core_trait": "核心性格",
      "speech_style": "说话风格",
      "desire": "核心欲望",
      "hook_line": "一句话人设",
      "links_to_protagonist": "与主角的关系",
      "trigger_conditions": "再次相关的情节条件"
    }
  ],
  "events": [
    {"description": "关键事件描述", "timeline_info": "时间线信息，可为空"}
  ],
  "foreshadowing": [
    {"content": "伏笔内容", "status": "ACTIVE|DEVELOPING|RESOLVED", "type": "物品|人物|事件", "priority": 1到5}
  ],
  "world_entities": [
    {"name": "名称", "type": "ORGANIZATION|LOCATION|ARTIFACT", "hook_line": "一句话设定", "influence_score": 0到100, "related_characters": ["角色名"]}
  ],
  "protagonist": {
    "name": "主角名",
    "current_state": "当前处境",
    "location": "所在地点",
    "power_level": "当前实力",
    "possessions": ["重要持有物"]
  }
}

只输出 JSON。未在本章出现的部分用空数组或省略。`

// ChapterAnalysisPrompt builds the chapter-analysis prompt for one chapter.
// knownCharacters, knownWorld and activeForeshadowing come from the current
// store snapshot; empty lists render as "无".
func ChapterAnalysisPrompt(chapter int, chapterText string, knownCharacters, knownWorld, activeForeshadowing []string) string {
	return fmt.Sprintf(chapterAnalysisTemplate,
		orNone(knownCharacters),
		orNone(knownWorld),
		orNone(activeForeshadowing),
		chapter,
		chapterText,
	)
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "无"
	}
	return strings.Join(items, "、")
}
