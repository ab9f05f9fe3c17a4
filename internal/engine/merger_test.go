package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklet/chronicle/internal/config"
	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/internal/storage/sqlite"
	"github.com/inklet/chronicle/pkg/types"
)

func newTestMerger(t *testing.T) (*Merger, storage.Store) {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewMerger(store, config.DefaultCameo()), store
}

func strongCharacter(name string, role types.RoleTag) types.CharacterUpdate {
	return types.CharacterUpdate{
		Name:              name,
		Role:              role,
		InfluenceScore:    70,
		ScreenTime:        0.5,
		ReturnProbability: 0.9,
	}
}

func TestMergeBatch_CreatesProfileWithPlaceholders(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	batch := &types.UpdateBatch{
		Chapter:    1,
		Characters: []types.CharacterUpdate{strongCharacter("林昭", types.RoleProtagonist)},
	}
	require.NoError(t, m.MergeBatch(ctx, "ms-1", batch, nil))

	p, err := store.GetCharacter(ctx, "ms-1", "林昭")
	require.NoError(t, err)
	assert.Equal(t, types.LifecycleCore, p.Lifecycle)
	assert.Equal(t, 1, p.FirstAppearance)
	assert.Equal(t, 1, p.AppearanceCount)
	assert.Equal(t, types.PendingValue, p.CoreTrait)
	assert.Equal(t, types.PendingValue, p.HookLine)
}

func TestMergeBatch_DoubleMergeIdempotentAppearanceCount(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	batch := &types.UpdateBatch{
		Chapter:    3,
		Characters: []types.CharacterUpdate{strongCharacter("林昭", types.RoleProtagonist)},
		WorldEntities: []types.WorldEntityUpdate{
			{Name: "青云宗", Type: types.WorldOrganization, InfluenceScore: 60},
		},
	}
	require.NoError(t, m.MergeBatch(ctx, "ms-1", batch, nil))
	require.NoError(t, m.MergeBatch(ctx, "ms-1", batch, nil)) // retry, same chapter

	p, err := store.GetCharacter(ctx, "ms-1", "林昭")
	require.NoError(t, err)
	assert.Equal(t, 1, p.AppearanceCount, "retry must not double-increment")

	w, err := store.GetWorldEntity(ctx, "ms-1", types.WorldOrganization, "青云宗")
	require.NoError(t, err)
	assert.Equal(t, 1, w.MentionCount)
}

func TestMergeBatch_AppearanceCountPerChapter(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	for chapter := 1; chapter <= 3; chapter++ {
		batch := &types.UpdateBatch{
			Chapter:    chapter,
			Characters: []types.CharacterUpdate{strongCharacter("林昭", types.RoleProtagonist)},
		}
		require.NoError(t, m.MergeBatch(ctx, "ms-1", batch, nil))
	}

	p, err := store.GetCharacter(ctx, "ms-1", "林昭")
	require.NoError(t, err)
	assert.Equal(t, 3, p.AppearanceCount)
	assert.Equal(t, 1, p.FirstAppearance)
	assert.Equal(t, 3, p.LastAppearance)
}

func TestMergeBatch_CameoGateRouting(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	batch := &types.UpdateBatch{
		Chapter: 2,
		Characters: []types.CharacterUpdate{
			{Name: "茶馆伙计", Role: types.RoleCameo, InfluenceScore: 80, ScreenTime: 0.5, ReturnProbability: 0.9}, // role gate
			{Name: "路人甲", Role: types.RoleSupport, InfluenceScore: 10, ScreenTime: 0.5, ReturnProbability: 0.9},  // influence gate
			{Name: "掠影刺客", Role: types.RoleSupport, InfluenceScore: 50, ScreenTime: 0.05, ReturnProbability: 0.9}, // screen-time gate
			{Name: "过路商人", Role: types.RoleSupport, InfluenceScore: 50, ScreenTime: 0.5, ReturnProbability: 0.1},  // return-prob gate
		},
	}
	require.NoError(t, m.MergeBatch(ctx, "ms-1", batch, nil))

	for _, name := range []string{"茶馆伙计", "路人甲", "掠影刺客", "过路商人"} {
		_, err := store.GetCharacter(ctx, "ms-1", name)
		assert.ErrorIs(t, err, storage.ErrNotFound, "%s should not be in the main store", name)
		cameo, err := store.GetCameo(ctx, "ms-1", name)
		require.NoError(t, err, "%s should be a cameo", name)
		assert.Equal(t, []int{2}, cameo.Chapters)
	}
}

func TestMergeBatch_CameoPromotionIsExclusive(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	weak := &types.UpdateBatch{
		Chapter: 1,
		Characters: []types.CharacterUpdate{
			{Name: "神秘老者", Role: types.RoleSupport, InfluenceScore: 5, ScreenTime: 0.05, ReturnProbability: 0.1},
		},
	}
	require.NoError(t, m.MergeBatch(ctx, "ms-1", weak, nil))

	strong := &types.UpdateBatch{
		Chapter:    5,
		Characters: []types.CharacterUpdate{strongCharacter("神秘老者", types.RoleMajor)},
	}
	require.NoError(t, m.MergeBatch(ctx, "ms-1", strong, nil))

	// Promoted to the main store, removed from the cameo table.
	_, err := store.GetCharacter(ctx, "ms-1", "神秘老者")
	require.NoError(t, err)
	_, err = store.GetCameo(ctx, "ms-1", "神秘老者")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMergeBatch_ExistingProfileNotDemotedByWeakSignals(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:    1,
		Characters: []types.CharacterUpdate{strongCharacter("苏长老", types.RoleMajor)},
	}, nil))

	// A later chapter where the character barely appears must not push the
	// profile into the cameo table.
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 2,
		Characters: []types.CharacterUpdate{
			{Name: "苏长老", Role: types.RoleMajor, InfluenceScore: 5, ScreenTime: 0.01, ReturnProbability: 0.1},
		},
	}, nil))

	p, err := store.GetCharacter(ctx, "ms-1", "苏长老")
	require.NoError(t, err)
	assert.Equal(t, 70.0, p.InfluenceScore, "max merge keeps the stronger signal")
	assert.Equal(t, 2, p.LastAppearance)
	_, err = store.GetCameo(ctx, "ms-1", "苏长老")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMergeBatch_EnrichmentLongerWins(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	first := strongCharacter("林昭", types.RoleProtagonist)
	first.HookLine = "少年剑客"
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{Chapter: 1, Characters: []types.CharacterUpdate{first}}, nil))

	shorter := strongCharacter("林昭", types.RoleProtagonist)
	shorter.HookLine = "剑客"
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{Chapter: 2, Characters: []types.CharacterUpdate{shorter}}, nil))

	p, err := store.GetCharacter(ctx, "ms-1", "林昭")
	require.NoError(t, err)
	assert.Equal(t, "少年剑客", p.HookLine, "shorter hook must not overwrite")

	longer := strongCharacter("林昭", types.RoleProtagonist)
	longer.HookLine = "背负灭门之仇的少年剑客"
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{Chapter: 3, Characters: []types.CharacterUpdate{longer}}, nil))

	p, err = store.GetCharacter(ctx, "ms-1", "林昭")
	require.NoError(t, err)
	assert.Equal(t, "背负灭门之仇的少年剑客", p.HookLine)
}

func TestMergeBatch_StatusChangeTracksChapter(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:    1,
		Characters: []types.CharacterUpdate{strongCharacter("血魔老祖", types.RoleAntagonist)},
	}, nil))

	dead := strongCharacter("血魔老祖", types.RoleAntagonist)
	dead.Status = "DEAD"
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{Chapter: 10, Characters: []types.CharacterUpdate{dead}}, nil))

	p, err := store.GetCharacter(ctx, "ms-1", "血魔老祖")
	require.NoError(t, err)
	assert.Equal(t, "DEAD", p.Status)
	assert.Equal(t, 10, p.StatusChangeChapter)
}

func TestMergeBatch_WorldEntityHardFilter(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 1,
		WorldEntities: []types.WorldEntityUpdate{
			{Name: "无名小巷", Type: types.WorldLocation, InfluenceScore: 5},
			{Name: "青云宗", Type: types.WorldOrganization, InfluenceScore: 60},
		},
	}, nil))

	_, err := store.GetWorldEntity(ctx, "ms-1", types.WorldLocation, "无名小巷")
	assert.ErrorIs(t, err, storage.ErrNotFound, "low-signal scenery is not persisted at all")

	_, err = store.GetCameo(ctx, "ms-1", "无名小巷")
	assert.ErrorIs(t, err, storage.ErrNotFound, "world entities are never cameoed")

	_, err = store.GetWorldEntity(ctx, "ms-1", types.WorldOrganization, "青云宗")
	require.NoError(t, err)
}

func TestMergeBatch_WorldEntityMergeRules(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 1,
		WorldEntities: []types.WorldEntityUpdate{
			{Name: "青云宗", Type: types.WorldOrganization, InfluenceScore: 60, HookLine: "剑修宗门", RelatedCharacters: []string{"林昭"}},
		},
	}, nil))
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 4,
		WorldEntities: []types.WorldEntityUpdate{
			{Name: "青云宗", Type: types.WorldOrganization, InfluenceScore: 40, HookLine: "北境第一剑修宗门", RelatedCharacters: []string{"苏长老"}},
		},
	}, nil))

	w, err := store.GetWorldEntity(ctx, "ms-1", types.WorldOrganization, "青云宗")
	require.NoError(t, err)
	assert.Equal(t, 60.0, w.InfluenceScore)
	assert.Equal(t, "北境第一剑修宗门", w.HookLine)
	assert.ElementsMatch(t, []string{"林昭", "苏长老"}, w.RelatedCharacters)
	assert.Equal(t, 4, w.LastMention)
	assert.Equal(t, 2, w.MentionCount)
}

func TestMergeBatch_ForeshadowingMonotoneTransitions(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:       3,
		Foreshadowing: []types.ForeshadowUpdate{{Content: "黑色令牌", Type: "物品", Status: types.ForeshadowActive}},
	}, nil))

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:       7,
		Foreshadowing: []types.ForeshadowUpdate{{Content: "黑色令牌", Type: "物品", Status: types.ForeshadowResolved}},
	}, nil))

	r, err := store.FindForeshadowing(ctx, "ms-1", "黑色令牌", "物品")
	require.NoError(t, err)
	assert.Equal(t, types.ForeshadowResolved, r.Status)
	require.NotNil(t, r.ResolvedChapter)
	assert.Equal(t, 7, *r.ResolvedChapter)
	assert.Equal(t, 3, r.PlantedChapter)

	// A later regression attempt is ignored, not an error.
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:       9,
		Foreshadowing: []types.ForeshadowUpdate{{Content: "黑色令牌", Type: "物品", Status: types.ForeshadowActive}},
	}, nil))

	r, err = store.FindForeshadowing(ctx, "ms-1", "黑色令牌", "物品")
	require.NoError(t, err)
	assert.Equal(t, types.ForeshadowResolved, r.Status)
}

func TestMergeBatch_ChronicleMergesPerChapter(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 5,
		Events:  []types.EventUpdate{{Description: "林昭突破炼气期", TimelineInfo: "当夜"}},
	}, nil))
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 5,
		Events:  []types.EventUpdate{{Description: "林昭突破炼气期"}, {Description: "长老会议召开"}},
	}, nil))

	ev, err := store.GetChronicle(ctx, "ms-1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"林昭突破炼气期", "长老会议召开"}, ev.Events)
	assert.Equal(t, "当夜", ev.TimelineInfo)
}

func TestMergeBatch_ProtagonistPromotion(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter: 1,
		Characters: []types.CharacterUpdate{
			strongCharacter("甲", types.RoleMajor),
			{Name: "乙", Role: types.RoleMajor, InfluenceScore: 95, ScreenTime: 0.6, ReturnProbability: 0.9},
		},
	}, nil))

	p, err := store.GetCharacter(ctx, "ms-1", "乙")
	require.NoError(t, err)
	assert.Equal(t, types.RoleProtagonist, p.Role, "highest influence character promoted")
	assert.Equal(t, types.LifecycleCore, p.Lifecycle)

	other, err := store.GetCharacter(ctx, "ms-1", "甲")
	require.NoError(t, err)
	assert.Equal(t, types.RoleMajor, other.Role)
}

func TestMergeBatch_ProtagonistStatusFillAndOverwrite(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:     1,
		Protagonist: &types.ProtagonistUpdate{Name: "林昭", Location: "青云宗", PowerLevel: "炼气一层"},
	}, nil))
	require.NoError(t, m.MergeBatch(ctx, "ms-1", &types.UpdateBatch{
		Chapter:     6,
		Protagonist: &types.ProtagonistUpdate{PowerLevel: "筑基一层"},
	}, nil))

	st, err := store.GetProtagonistStatus(ctx, "ms-1")
	require.NoError(t, err)
	assert.Equal(t, "林昭", st.Name, "earlier value kept when update omits field")
	assert.Equal(t, "筑基一层", st.PowerLevel, "later non-empty value overwrites")
	assert.Equal(t, 6, st.UpdatedChapter)
}

func TestMergeBatch_EmptyBatchOnlyRecordsMerge(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	require.NoError(t, m.MergeBatch(ctx, "ms-1", types.EmptyBatch(4), nil))

	merged, err := store.HasMerge(ctx, "ms-1", 4)
	require.NoError(t, err)
	assert.True(t, merged)

	stats, err := store.Stats(ctx, "ms-1")
	require.NoError(t, err)
	assert.Zero(t, stats.Characters)
	assert.Zero(t, stats.WorldEntities)
}

func TestMergeBatch_DuplicateEntriesInOneBatchCountOnce(t *testing.T) {
	m, store := newTestMerger(t)
	ctx := context.Background()

	dup := strongCharacter("林昭", types.RoleProtagonist)
	dup.HookLine = "背负血仇的少年"
	batch := &types.UpdateBatch{
		Chapter: 1,
		Characters: []types.CharacterUpdate{
			strongCharacter("林昭", types.RoleProtagonist),
			dup,
		},
		WorldEntities: []types.WorldEntityUpdate{
			{Name: "青云宗", Type: types.WorldOrganization, InfluenceScore: 70},
			{Name: "青云宗", Type: types.WorldOrganization, InfluenceScore: 60},
		},
	}
	require.NoError(t, m.MergeBatch(ctx, "ms-1", batch, nil))

	p, err := store.GetCharacter(ctx, "ms-1", "林昭")
	require.NoError(t, err)
	assert.Equal(t, 1, p.AppearanceCount, "counts are per chapter, not per mention")
	assert.Equal(t, "背负血仇的少年", p.HookLine, "later duplicate still enriches")

	w, err := store.GetWorldEntity(ctx, "ms-1", types.WorldOrganization, "青云宗")
	require.NoError(t, err)
	assert.Equal(t, 1, w.MentionCount)
	assert.Equal(t, float64(70), w.InfluenceScore)
}
