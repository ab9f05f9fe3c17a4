// Package storage provides composable storage interfaces for the Chronicle
// narrative memory store.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed. Every record belongs to
// exactly one manuscript; characters and world entities are keyed by
// normalized name, chronicle and summary records by chapter number. The
// logical memory model makes no assumption about the backing technology
// beyond reads reflecting the latest committed merge for the manuscript.
package storage

import (
	"context"

	"github.com/inklet/chronicle/pkg/types"
)

// CharacterStore manages full character profiles and the lightweight cameo
// side-table. A name must never exist in both at once; promotion moves it out
// of the cameo table, and a full profile is never demoted back.
type CharacterStore interface {
	// UpsertCharacter creates or replaces a character profile keyed by
	// (manuscript_id, name).
	UpsertCharacter(ctx context.Context, profile *types.CharacterProfile) error

	// GetCharacter retrieves a character by normalized name.
	// Returns ErrNotFound if no profile exists.
	GetCharacter(ctx context.Context, manuscriptID, name string) (*types.CharacterProfile, error)

	// ListCharacters returns all character profiles for a manuscript.
	ListCharacters(ctx context.Context, manuscriptID string) ([]*types.CharacterProfile, error)

	// UpsertCameo creates or replaces a cameo record keyed by (manuscript_id, name).
	UpsertCameo(ctx context.Context, cameo *types.CameoRecord) error

	// GetCameo retrieves a cameo record by name.
	// Returns ErrNotFound if no record exists.
	GetCameo(ctx context.Context, manuscriptID, name string) (*types.CameoRecord, error)

	// ListCameos returns all cameo records for a manuscript.
	ListCameos(ctx context.Context, manuscriptID string) ([]*types.CameoRecord, error)

	// DeleteCameo removes a cameo record. Used when a name is promoted to a
	// full profile.
	DeleteCameo(ctx context.Context, manuscriptID, name string) error
}

// WorldStore manages world entities (organizations, locations, artifacts).
type WorldStore interface {
	// UpsertWorldEntity creates or replaces an entity keyed by
	// (manuscript_id, type, name).
	UpsertWorldEntity(ctx context.Context, entity *types.WorldEntity) error

	// GetWorldEntity retrieves an entity by type and normalized name.
	// Returns ErrNotFound if no entity exists.
	GetWorldEntity(ctx context.Context, manuscriptID string, entityType types.WorldEntityType, name string) (*types.WorldEntity, error)

	// ListWorldEntities returns all world entities for a manuscript,
	// optionally filtered by type (empty type means all).
	ListWorldEntities(ctx context.Context, manuscriptID string, entityType types.WorldEntityType) ([]*types.WorldEntity, error)
}

// ForeshadowStore manages foreshadowing records.
type ForeshadowStore interface {
	// UpsertForeshadowing creates or replaces a record keyed by ID.
	UpsertForeshadowing(ctx context.Context, record *types.ForeshadowingRecord) error

	// FindForeshadowing locates a record by (content, type) equality, the
	// merge matching rule. Returns ErrNotFound when absent.
	FindForeshadowing(ctx context.Context, manuscriptID, content, foreshadowType string) (*types.ForeshadowingRecord, error)

	// ListForeshadowing returns records for a manuscript, optionally filtered
	// by status (empty status means all), ordered by priority descending then
	// planted chapter ascending.
	ListForeshadowing(ctx context.Context, manuscriptID string, status types.ForeshadowStatus) ([]*types.ForeshadowingRecord, error)
}

// ChronicleStore manages per-chapter event records and chapter summaries.
type ChronicleStore interface {
	// UpsertChronicle creates or replaces the event record keyed by
	// (manuscript_id, chapter). At most one record exists per chapter.
	UpsertChronicle(ctx context.Context, event *types.ChronicleEvent) error

	// GetChronicle retrieves the event record for a chapter.
	// Returns ErrNotFound if no record exists.
	GetChronicle(ctx context.Context, manuscriptID string, chapter int) (*types.ChronicleEvent, error)

	// ListChronicle returns event records ordered by chapter ascending,
	// restricted to chapters >= fromChapter. A limit of 0 means no limit.
	ListChronicle(ctx context.Context, manuscriptID string, fromChapter, limit int) ([]*types.ChronicleEvent, error)

	// SaveChapterSummary stores the extractor's chapter digest (upsert by
	// (manuscript_id, chapter)).
	SaveChapterSummary(ctx context.Context, summary *types.ChapterSummary) error

	// ListRecentSummaries returns the most recent chapter summaries, newest
	// first, up to limit.
	ListRecentSummaries(ctx context.Context, manuscriptID string, limit int) ([]*types.ChapterSummary, error)
}

// ProtagonistStore manages the per-manuscript protagonist status record.
type ProtagonistStore interface {
	// SaveProtagonistStatus creates or replaces the status record.
	SaveProtagonistStatus(ctx context.Context, status *types.ProtagonistStatus) error

	// GetProtagonistStatus retrieves the status record.
	// Returns ErrNotFound if none has been recorded yet.
	GetProtagonistStatus(ctx context.Context, manuscriptID string) (*types.ProtagonistStatus, error)
}

// MergeLog provides durable idempotency for chapter merges. appearanceCount
// and mentionCount increments are guarded by the (manuscript, chapter) key so
// a bounded retry of the same extraction never double-counts.
type MergeLog interface {
	// HasMerge reports whether a merge for (manuscript, chapter) has already
	// been recorded.
	HasMerge(ctx context.Context, manuscriptID string, chapter int) (bool, error)

	// RecordMerge marks (manuscript, chapter) as merged. Recording twice is
	// not an error.
	RecordMerge(ctx context.Context, manuscriptID string, chapter int) error
}

// Store is the full narrative store contract composed from the focused
// interfaces above.
type Store interface {
	CharacterStore
	WorldStore
	ForeshadowStore
	ChronicleStore
	ProtagonistStore
	MergeLog

	// Stats returns per-family record counts for a manuscript.
	Stats(ctx context.Context, manuscriptID string) (*Stats, error)

	// Close releases any resources held by the store.
	Close() error
}

// SummarySearcher is an optional capability: semantic recall of prior chapter
// summaries by embedding similarity. The Postgres store implements it via
// pgvector; stores without vector support simply don't satisfy the interface
// and callers fall back to recency ordering.
type SummarySearcher interface {
	// SearchSummaries returns the summaries nearest to the query embedding,
	// most similar first, up to limit.
	SearchSummaries(ctx context.Context, manuscriptID string, embedding []float32, limit int) ([]*types.ChapterSummary, error)
}
