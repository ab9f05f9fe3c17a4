package engine

import (
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/inklet/chronicle/pkg/types"
)

// softSegmentLimit is the per-segment size threshold in characters. Oversized
// segments are logged, never truncated: budget enforcement belongs to the
// selector's quotas.
const softSegmentLimit = 10000

// AssemblyInput carries everything the assembler renders: the chapter plan's
// free-text material plus the selected working set read from the store.
type AssemblyInput struct {
	Plan          *ChapterPlan
	Selection     *Selection
	Protagonist   *types.ProtagonistStatus
	Summaries     []*types.ChapterSummary // newest first
	Foreshadowing []*types.ForeshadowingRecord
}

// Assembler renders the context package for a generation call. Each segment
// is generated independently and omitted entirely when empty; the order is
// the fixed enumerated sequence in types.SegmentOrder.
type Assembler struct{}

// NewAssembler creates an assembler.
func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble builds the ordered context package and its size metadata.
func (a *Assembler) Assemble(in AssemblyInput) *types.ContextPackage {
	texts := map[types.SegmentRole]string{
		types.SegmentSystemIdentity:    in.Plan.SystemIdentity,
		types.SegmentBasicInfo:         in.Plan.BasicInfo,
		types.SegmentOutline:           in.Plan.Outline,
		types.SegmentCurrentVolume:     in.Plan.CurrentVolume,
		types.SegmentCharacterRoster:   renderRoster(in.Selection),
		types.SegmentProtagonistStatus: renderProtagonist(in.Protagonist),
		types.SegmentWorldDictionary:   renderWorldDictionary(in.Selection),
		types.SegmentPriorSummaries:    renderSummaries(in.Summaries),
		types.SegmentPreviousChapter:   in.Plan.PreviousChapter,
		types.SegmentForeshadowing:     renderForeshadowing(in.Foreshadowing),
		types.SegmentUserDirection:     in.Plan.UserDirection,
		types.SegmentChapterTask:       renderTask(in.Plan),
	}

	pkg := &types.ContextPackage{
		Meta: types.ContextMeta{PerSegmentChars: map[types.SegmentRole]int{}},
	}

	for _, role := range types.SegmentOrder {
		text := strings.TrimSpace(texts[role])
		if text == "" {
			continue
		}
		size := utf8.RuneCountInString(text)
		if size > softSegmentLimit {
			log.Printf("assembler: segment %s is %d chars (soft limit %d)", role, size, softSegmentLimit)
		}
		pkg.Segments = append(pkg.Segments, types.ContextSegment{Role: role, Text: text})
		pkg.Meta.PerSegmentChars[role] = size
		pkg.Meta.TotalChars += size
	}

	pkg.Meta.SegmentCount = len(pkg.Segments)
	// Rough token estimate for CJK-heavy mixed text.
	pkg.Meta.EstimatedTokens = int(float64(pkg.Meta.TotalChars) / 1.7)

	return pkg
}

func renderRoster(sel *Selection) string {
	if sel == nil || len(sel.Characters) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("【本章出场角色】\n")
	for _, p := range sel.Characters {
		sb.WriteString(fmt.Sprintf("- %s（%s，%s）", p.Name, roleLabel(p.Role), p.Status))
		if !types.IsEnrichmentPending(p.HookLine) {
			sb.WriteString("：" + p.HookLine)
		}
		sb.WriteByte('\n')
		if !types.IsEnrichmentPending(p.CoreTrait) {
			sb.WriteString("  性格：" + p.CoreTrait + "\n")
		}
		if !types.IsEnrichmentPending(p.SpeechStyle) {
			sb.WriteString("  语言风格：" + p.SpeechStyle + "\n")
		}
		if !types.IsEnrichmentPending(p.Desire) {
			sb.WriteString("  欲望：" + p.Desire + "\n")
		}
		if !types.IsEnrichmentPending(p.LinksToProtagonist) {
			sb.WriteString("  与主角关系：" + p.LinksToProtagonist + "\n")
		}
	}
	return sb.String()
}

func roleLabel(role types.RoleTag) string {
	switch role {
	case types.RoleProtagonist:
		return "主角"
	case types.RoleAntagonist:
		return "反派"
	case types.RoleMajor:
		return "主要角色"
	case types.RoleSupport:
		return "配角"
	default:
		return "龙套"
	}
}

func renderProtagonist(st *types.ProtagonistStatus) string {
	if st == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("【主角当前状态】\n")
	if st.Name != "" {
		sb.WriteString("姓名：" + st.Name + "\n")
	}
	if st.CurrentState != "" {
		sb.WriteString("处境：" + st.CurrentState + "\n")
	}
	if st.Location != "" {
		sb.WriteString("所在：" + st.Location + "\n")
	}
	if st.PowerLevel != "" {
		sb.WriteString("实力：" + st.PowerLevel + "\n")
	}
	if len(st.Possessions) > 0 {
		sb.WriteString("持有：" + strings.Join(st.Possessions, "、") + "\n")
	}
	// Only the header means nothing to say.
	if strings.Count(sb.String(), "\n") == 1 {
		return ""
	}
	return sb.String()
}

func renderWorldDictionary(sel *Selection) string {
	if sel == nil {
		return ""
	}
	var sb strings.Builder
	writeGroup := func(title string, list []*types.WorldEntity) {
		if len(list) == 0 {
			return
		}
		sb.WriteString(title + "\n")
		for _, e := range list {
			sb.WriteString("- " + e.Name)
			if e.HookLine != "" {
				sb.WriteString("：" + e.HookLine)
			}
			sb.WriteByte('\n')
		}
	}
	writeGroup("【势力】", sel.Organizations)
	writeGroup("【地点】", sel.Locations)
	writeGroup("【神器/物品】", sel.Artifacts)
	return sb.String()
}

func renderSummaries(summaries []*types.ChapterSummary) string {
	if len(summaries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("【前情提要】\n")
	// Newest first in storage order; render oldest first so the narrative
	// reads forward.
	for i := len(summaries) - 1; i >= 0; i-- {
		sb.WriteString(fmt.Sprintf("第%d章：%s\n", summaries[i].Chapter, summaries[i].Summary))
	}
	return sb.String()
}

func renderForeshadowing(records []*types.ForeshadowingRecord) string {
	if len(records) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("【未回收伏笔】\n")
	for _, r := range records {
		if r.Status == types.ForeshadowResolved {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s（第%d章埋下，状态：%s）\n", r.Content, r.PlantedChapter, r.Status))
	}
	if strings.Count(sb.String(), "\n") == 1 {
		return ""
	}
	return sb.String()
}

func renderTask(plan *ChapterPlan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("【本章任务】第%d章", plan.Chapter))
	if plan.Title != "" {
		sb.WriteString("《" + plan.Title + "》")
	}
	sb.WriteByte('\n')
	if plan.Goal != "" {
		sb.WriteString("目标：" + plan.Goal + "\n")
	}
	if plan.Location != "" {
		sb.WriteString("场景：" + plan.Location + "\n")
	}
	return sb.String()
}
