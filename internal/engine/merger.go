package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/pkg/types"
)

// Merger applies an update batch to the entity store. Merge rules are
// fill-if-missing / raise-if-higher so that re-merging the same chapter is
// harmless; the per-(manuscript, chapter) merge log guards the one additive
// field family (appearanceCount/mentionCount) against double increments.
//
// Field-level inconsistencies reject only the offending update, never the
// whole batch.
type Merger struct {
	store storage.Store
	cfg   config.CameoConfig

	// mergedChapters is a fast path over the persisted merge log.
	mergedChapters *gocache.Cache
}

// NewMerger creates a merger with the given cameo-gate thresholds.
func NewMerger(store storage.Store, cfg config.CameoConfig) *Merger {
	return &Merger{
		store:          store,
		cfg:            cfg,
		mergedChapters: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// MergeBatch applies one chapter's update batch to the store. The optional
// summaryEmbedding is stored alongside the chapter summary when present.
// Callers must hold the manuscript's write lock.
func (m *Merger) MergeBatch(ctx context.Context, manuscriptID string, batch *types.UpdateBatch, summaryEmbedding []float32) error {
	if batch == nil || manuscriptID == "" {
		return fmt.Errorf("merger: manuscript ID and batch are required")
	}

	firstMerge, err := m.isFirstMerge(ctx, manuscriptID, batch.Chapter)
	if err != nil {
		return err
	}
	if !firstMerge {
		log.Printf("merger: chapter %d of %s already merged, skipping count increments", batch.Chapter, manuscriptID)
	}

	// A batch may carry the same name twice (LLM duplication). Counts are
	// per chapter, not per mention: only the first entry for a name is
	// count-eligible; later entries still merge their enrichment.
	seenCharacters := make(map[string]bool)
	for _, update := range batch.Characters {
		name := storage.NormalizeName(update.Name)
		countEligible := firstMerge && !seenCharacters[name]
		seenCharacters[name] = true
		if err := m.mergeCharacter(ctx, manuscriptID, batch.Chapter, update, countEligible); err != nil {
			log.Printf("merger: character %q rejected: %v", update.Name, err)
		}
	}

	seenWorld := make(map[string]bool)
	for _, update := range batch.WorldEntities {
		key := string(update.Type) + ":" + storage.NormalizeName(update.Name)
		countEligible := firstMerge && !seenWorld[key]
		seenWorld[key] = true
		if err := m.mergeWorldEntity(ctx, manuscriptID, batch.Chapter, update, countEligible); err != nil {
			log.Printf("merger: world entity %q rejected: %v", update.Name, err)
		}
	}

	for _, update := range batch.Foreshadowing {
		if err := m.mergeForeshadowing(ctx, manuscriptID, batch.Chapter, update); err != nil {
			log.Printf("merger: foreshadowing %q rejected: %v", update.Content, err)
		}
	}

	if len(batch.Events) > 0 {
		if err := m.mergeChronicle(ctx, manuscriptID, batch.Chapter, batch.Events); err != nil {
			log.Printf("merger: chronicle for chapter %d rejected: %v", batch.Chapter, err)
		}
	}

	if batch.Summary != "" {
		summary := &types.ChapterSummary{
			ManuscriptID: manuscriptID,
			Chapter:      batch.Chapter,
			Summary:      batch.Summary,
			Embedding:    summaryEmbedding,
		}
		if err := m.store.SaveChapterSummary(ctx, summary); err != nil {
			log.Printf("merger: chapter summary rejected: %v", err)
		}
	}

	if batch.Protagonist != nil {
		if err := m.mergeProtagonistStatus(ctx, manuscriptID, batch.Chapter, *batch.Protagonist); err != nil {
			log.Printf("merger: protagonist status rejected: %v", err)
		}
	}

	if err := m.ensureProtagonist(ctx, manuscriptID); err != nil {
		log.Printf("merger: protagonist promotion failed: %v", err)
	}

	if firstMerge {
		if err := m.store.RecordMerge(ctx, manuscriptID, batch.Chapter); err != nil {
			return fmt.Errorf("merger: failed to record merge: %w", err)
		}
		m.mergedChapters.SetDefault(mergeKey(manuscriptID, batch.Chapter), true)
	}

	return nil
}

func mergeKey(manuscriptID string, chapter int) string {
	return fmt.Sprintf("%s:%d", manuscriptID, chapter)
}

func (m *Merger) isFirstMerge(ctx context.Context, manuscriptID string, chapter int) (bool, error) {
	if _, found := m.mergedChapters.Get(mergeKey(manuscriptID, chapter)); found {
		return false, nil
	}
	merged, err := m.store.HasMerge(ctx, manuscriptID, chapter)
	if err != nil {
		return false, fmt.Errorf("merger: failed to check merge log: %w", err)
	}
	return !merged, nil
}

// isCameo evaluates the cameo gate: any one condition suffices.
func (m *Merger) isCameo(update types.CharacterUpdate) bool {
	return update.Role == types.RoleCameo ||
		update.InfluenceScore < m.cfg.MinInfluence ||
		update.ScreenTime < m.cfg.MinScreenTime ||
		update.ReturnProbability < m.cfg.MinReturnProbability
}

func (m *Merger) mergeCharacter(ctx context.Context, manuscriptID string, chapter int, update types.CharacterUpdate, countEligible bool) error {
	name := storage.NormalizeName(update.Name)
	if name == "" {
		return fmt.Errorf("empty name")
	}

	existing, err := m.store.GetCharacter(ctx, manuscriptID, name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	// A character with a full profile stays in the main store even when a
	// later chapter's weak signals would gate it; demotion never happens
	// implicitly.
	if existing == nil && m.isCameo(update) {
		return m.mergeCameo(ctx, manuscriptID, chapter, name, update.HookLine)
	}

	if existing == nil {
		profile := newProfileFromUpdate(manuscriptID, name, chapter, update)
		if err := m.store.UpsertCharacter(ctx, profile); err != nil {
			return err
		}
		// Promotion out of the cameo table: the name now has a full profile.
		if err := m.store.DeleteCameo(ctx, manuscriptID, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("merger: failed to remove promoted cameo %q: %v", name, err)
		}
		return nil
	}

	applyCharacterUpdate(existing, chapter, update, countEligible)
	return m.store.UpsertCharacter(ctx, existing)
}

// newProfileFromUpdate builds a fresh profile, defaulting omitted enrichment
// fields to the pending placeholder.
func newProfileFromUpdate(manuscriptID, name string, chapter int, update types.CharacterUpdate) *types.CharacterProfile {
	role := update.Role
	if role == "" {
		role = types.RoleSupport
	}
	status := update.Status
	if status == "" {
		status = "ACTIVE"
	}
	return &types.CharacterProfile{
		ManuscriptID:        manuscriptID,
		Name:                name,
		Role:                role,
		Status:              status,
		StatusChangeChapter: chapter,
		FirstAppearance:     chapter,
		LastAppearance:      chapter,
		AppearanceCount:     1,
		InfluenceScore:      update.InfluenceScore,
		ScreenTime:          update.ScreenTime,
		ReturnProbability:   update.ReturnProbability,
		CoreTrait:           orPending(update.CoreTrait),
		SpeechStyle:         orPending(update.SpeechStyle),
		Desire:              orPending(update.Desire),
		HookLine:            orPending(update.HookLine),
		LinksToProtagonist:  orPending(update.LinksToProtagonist),
		TriggerConditions:   update.TriggerConditions,
		Lifecycle:           types.DeriveLifecycle(role),
	}
}

func orPending(value string) string {
	if value == "" {
		return types.PendingValue
	}
	return value
}

// applyCharacterUpdate merges one chapter's signals into an existing profile.
// Strength scalars take the maximum; enrichment text is overwritten only when
// pending or when the new value is strictly longer; lastAppearance is
// unconditional; appearanceCount increments once per chapter.
func applyCharacterUpdate(p *types.CharacterProfile, chapter int, update types.CharacterUpdate, countEligible bool) {
	if update.Role != "" && update.Role != p.Role {
		p.Role = update.Role
		p.Lifecycle = types.DeriveLifecycle(update.Role)
	}
	if update.Status != "" && update.Status != p.Status {
		p.Status = update.Status
		p.StatusChangeChapter = chapter
	}

	p.InfluenceScore = maxFloat(p.InfluenceScore, update.InfluenceScore)
	p.ScreenTime = maxFloat(p.ScreenTime, update.ScreenTime)
	p.ReturnProbability = maxFloat(p.ReturnProbability, update.ReturnProbability)

	p.CoreTrait = enrich(p.CoreTrait, update.CoreTrait)
	p.SpeechStyle = enrich(p.SpeechStyle, update.SpeechStyle)
	p.Desire = enrich(p.Desire, update.Desire)
	p.HookLine = enrich(p.HookLine, update.HookLine)
	p.LinksToProtagonist = enrich(p.LinksToProtagonist, update.LinksToProtagonist)
	p.TriggerConditions = enrich(p.TriggerConditions, update.TriggerConditions)

	p.LastAppearance = chapter
	if countEligible {
		p.AppearanceCount++
	}
}

// enrich overwrites old only when it is empty/pending or the candidate is
// strictly longer, a proxy for "more detailed".
func enrich(old, candidate string) string {
	if candidate == "" {
		return old
	}
	if types.IsEnrichmentPending(old) || len([]rune(candidate)) > len([]rune(old)) {
		return candidate
	}
	return old
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (m *Merger) mergeCameo(ctx context.Context, manuscriptID string, chapter int, name, hookLine string) error {
	cameo, err := m.store.GetCameo(ctx, manuscriptID, name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if cameo == nil {
		cameo = &types.CameoRecord{ManuscriptID: manuscriptID, Name: name}
	}
	if len([]rune(hookLine)) > len([]rune(cameo.HookLine)) {
		cameo.HookLine = hookLine
	}
	if !containsInt(cameo.Chapters, chapter) {
		cameo.Chapters = append(cameo.Chapters, chapter)
	}
	return m.store.UpsertCameo(ctx, cameo)
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (m *Merger) mergeWorldEntity(ctx context.Context, manuscriptID string, chapter int, update types.WorldEntityUpdate, countEligible bool) error {
	name := storage.NormalizeName(update.Name)
	if name == "" {
		return fmt.Errorf("empty name")
	}

	existing, err := m.store.GetWorldEntity(ctx, manuscriptID, update.Type, name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	// Hard filter: low-signal scenery is not persisted at all. Entities
	// already in the store still merge, since they once cleared the bar.
	if existing == nil && update.InfluenceScore < m.cfg.WorldMinInfluence {
		return nil
	}

	if existing == nil {
		return m.store.UpsertWorldEntity(ctx, &types.WorldEntity{
			ManuscriptID:      manuscriptID,
			Type:              update.Type,
			Name:              name,
			HookLine:          update.HookLine,
			InfluenceScore:    update.InfluenceScore,
			RelatedCharacters: update.RelatedCharacters,
			FirstMention:      chapter,
			LastMention:       chapter,
			MentionCount:      1,
		})
	}

	if len([]rune(update.HookLine)) > len([]rune(existing.HookLine)) {
		existing.HookLine = update.HookLine
	}
	existing.InfluenceScore = maxFloat(existing.InfluenceScore, update.InfluenceScore)
	existing.RelatedCharacters = unionStrings(existing.RelatedCharacters, update.RelatedCharacters)
	existing.LastMention = chapter
	if countEligible {
		existing.MentionCount++
	}
	return m.store.UpsertWorldEntity(ctx, existing)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (m *Merger) mergeForeshadowing(ctx context.Context, manuscriptID string, chapter int, update types.ForeshadowUpdate) error {
	existing, err := m.store.FindForeshadowing(ctx, manuscriptID, update.Content, update.Type)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	if existing == nil {
		record := &types.ForeshadowingRecord{
			ID:             uuid.NewString(),
			ManuscriptID:   manuscriptID,
			Content:        update.Content,
			Status:         update.Status,
			PlantedChapter: chapter,
			Type:           update.Type,
			Priority:       update.Priority,
		}
		if record.Status == types.ForeshadowResolved {
			resolved := chapter
			if update.ResolvedChapter != nil {
				resolved = *update.ResolvedChapter
			}
			if resolved < record.PlantedChapter {
				resolved = record.PlantedChapter
			}
			record.ResolvedChapter = &resolved
		}
		return m.store.UpsertForeshadowing(ctx, record)
	}

	// Status transitions are monotone; a regression rejects only the status
	// field, the rest of the update still lands.
	if update.Status != "" {
		if types.CanTransitionForeshadow(existing.Status, update.Status) {
			existing.Status = update.Status
		} else {
			log.Printf("merger: foreshadowing %q status regression %s→%s ignored", update.Content, existing.Status, update.Status)
		}
	}
	if existing.Status == types.ForeshadowResolved && existing.ResolvedChapter == nil {
		resolved := chapter
		if update.ResolvedChapter != nil && *update.ResolvedChapter >= existing.PlantedChapter {
			resolved = *update.ResolvedChapter
		}
		existing.ResolvedChapter = &resolved
	}
	if update.Priority > existing.Priority {
		existing.Priority = update.Priority
	}
	return m.store.UpsertForeshadowing(ctx, existing)
}

func (m *Merger) mergeChronicle(ctx context.Context, manuscriptID string, chapter int, events []types.EventUpdate) error {
	existing, err := m.store.GetChronicle(ctx, manuscriptID, chapter)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if existing == nil {
		existing = &types.ChronicleEvent{ManuscriptID: manuscriptID, Chapter: chapter}
	}

	var descriptions []string
	for _, ev := range events {
		descriptions = append(descriptions, ev.Description)
		if ev.TimelineInfo != "" && existing.TimelineInfo == "" {
			existing.TimelineInfo = ev.TimelineInfo
		}
	}
	existing.MergeEvents(descriptions)

	return m.store.UpsertChronicle(ctx, existing)
}

func (m *Merger) mergeProtagonistStatus(ctx context.Context, manuscriptID string, chapter int, update types.ProtagonistUpdate) error {
	existing, err := m.store.GetProtagonistStatus(ctx, manuscriptID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if existing == nil {
		existing = &types.ProtagonistStatus{ManuscriptID: manuscriptID}
	}

	// Later chapters know more: non-empty fields overwrite.
	if update.Name != "" {
		existing.Name = update.Name
	}
	if update.CurrentState != "" {
		existing.CurrentState = update.CurrentState
	}
	if update.Location != "" {
		existing.Location = update.Location
	}
	if update.PowerLevel != "" {
		existing.PowerLevel = update.PowerLevel
	}
	if len(update.Possessions) > 0 {
		existing.Possessions = update.Possessions
	}
	existing.UpdatedChapter = chapter

	return m.store.SaveProtagonistStatus(ctx, existing)
}

// ensureProtagonist promotes the highest-influence character when no profile
// carries the PROTAGONIST tag. At most one protagonist should ever exist.
func (m *Merger) ensureProtagonist(ctx context.Context, manuscriptID string) error {
	profiles, err := m.store.ListCharacters(ctx, manuscriptID)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	var best *types.CharacterProfile
	for _, p := range profiles {
		if p.Role == types.RoleProtagonist {
			return nil
		}
		// An antagonist never becomes the lead by default.
		if p.Role == types.RoleAntagonist {
			continue
		}
		if best == nil || p.InfluenceScore > best.InfluenceScore {
			best = p
		}
	}
	if best == nil {
		return nil
	}

	log.Printf("merger: no protagonist tagged, promoting %q (influence %.0f)", best.Name, best.InfluenceScore)
	best.Role = types.RoleProtagonist
	best.Lifecycle = types.DeriveLifecycle(best.Role)
	return m.store.UpsertCharacter(ctx, best)
}
