// Package sqlite implements the narrative store on SQLite via modernc.org/sqlite.
// It is the default backend: zero-dependency, single file per deployment, and
// good enough for one writer per manuscript since merges are serialized by the
// engine anyway.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/inklet/chronicle/internal/storage"
	"github.com/inklet/chronicle/pkg/types"
)

// Store implements storage.Store using SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at the given DSN, configures WAL mode, and
// creates the schema. Use ":memory:" for tests.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertCharacter creates or replaces a character profile keyed by
// (manuscript_id, name).
func (s *Store) UpsertCharacter(ctx context.Context, p *types.CharacterProfile) error {
	if p == nil || p.ManuscriptID == "" || p.Name == "" {
		return fmt.Errorf("%w: manuscript ID and name are required", storage.ErrInvalidInput)
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO characters (
			manuscript_id, name, role, status, status_change_chapter,
			first_appearance, last_appearance, appearance_count,
			influence_score, screen_time, return_probability,
			core_trait, speech_style, desire, hook_line,
			links_to_protagonist, trigger_conditions, lifecycle,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(manuscript_id, name) DO UPDATE SET
			role = excluded.role,
			status = excluded.status,
			status_change_chapter = excluded.status_change_chapter,
			first_appearance = excluded.first_appearance,
			last_appearance = excluded.last_appearance,
			appearance_count = excluded.appearance_count,
			influence_score = excluded.influence_score,
			screen_time = excluded.screen_time,
			return_probability = excluded.return_probability,
			core_trait = excluded.core_trait,
			speech_style = excluded.speech_style,
			desire = excluded.desire,
			hook_line = excluded.hook_line,
			links_to_protagonist = excluded.links_to_protagonist,
			trigger_conditions = excluded.trigger_conditions,
			lifecycle = excluded.lifecycle,
			updated_at = excluded.updated_at
	`,
		p.ManuscriptID, p.Name, string(p.Role), p.Status, p.StatusChangeChapter,
		p.FirstAppearance, p.LastAppearance, p.AppearanceCount,
		p.InfluenceScore, p.ScreenTime, p.ReturnProbability,
		p.CoreTrait, p.SpeechStyle, p.Desire, p.HookLine,
		p.LinksToProtagonist, p.TriggerConditions, string(p.Lifecycle),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert character %q: %w", p.Name, err)
	}
	return nil
}

const characterColumns = `
	manuscript_id, name, role, status, status_change_chapter,
	first_appearance, last_appearance, appearance_count,
	influence_score, screen_time, return_probability,
	core_trait, speech_style, desire, hook_line,
	links_to_protagonist, trigger_conditions, lifecycle,
	created_at, updated_at`

// scanCharacter reads one character row in characterColumns order.
func scanCharacter(row interface{ Scan(...any) error }) (*types.CharacterProfile, error) {
	var p types.CharacterProfile
	var role, lifecycle string
	err := row.Scan(
		&p.ManuscriptID, &p.Name, &role, &p.Status, &p.StatusChangeChapter,
		&p.FirstAppearance, &p.LastAppearance, &p.AppearanceCount,
		&p.InfluenceScore, &p.ScreenTime, &p.ReturnProbability,
		&p.CoreTrait, &p.SpeechStyle, &p.Desire, &p.HookLine,
		&p.LinksToProtagonist, &p.TriggerConditions, &lifecycle,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Role = types.RoleTag(role)
	p.Lifecycle = types.Lifecycle(lifecycle)
	return &p, nil
}

// GetCharacter retrieves a character by name.
func (s *Store) GetCharacter(ctx context.Context, manuscriptID, name string) (*types.CharacterProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+characterColumns+` FROM characters WHERE manuscript_id = ? AND name = ?`,
		manuscriptID, name)
	p, err := scanCharacter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get character %q: %w", name, err)
	}
	return p, nil
}

// ListCharacters returns all character profiles for a manuscript.
func (s *Store) ListCharacters(ctx context.Context, manuscriptID string) ([]*types.CharacterProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+characterColumns+` FROM characters WHERE manuscript_id = ? ORDER BY name`,
		manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list characters: %w", err)
	}
	defer rows.Close()

	var out []*types.CharacterProfile
	for rows.Next() {
		p, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan character: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertCameo creates or replaces a cameo record.
func (s *Store) UpsertCameo(ctx context.Context, c *types.CameoRecord) error {
	if c == nil || c.ManuscriptID == "" || c.Name == "" {
		return fmt.Errorf("%w: manuscript ID and name are required", storage.ErrInvalidInput)
	}

	chaptersJSON, err := json.Marshal(c.Chapters)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal cameo chapters: %w", err)
	}

	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cameos (manuscript_id, name, hook_line, chapters, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(manuscript_id, name) DO UPDATE SET
			hook_line = excluded.hook_line,
			chapters = excluded.chapters,
			updated_at = excluded.updated_at
	`, c.ManuscriptID, c.Name, c.HookLine, string(chaptersJSON), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert cameo %q: %w", c.Name, err)
	}
	return nil
}

// GetCameo retrieves a cameo record by name.
func (s *Store) GetCameo(ctx context.Context, manuscriptID, name string) (*types.CameoRecord, error) {
	var c types.CameoRecord
	var chaptersJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT manuscript_id, name, hook_line, chapters, created_at, updated_at
		FROM cameos WHERE manuscript_id = ? AND name = ?
	`, manuscriptID, name).Scan(&c.ManuscriptID, &c.Name, &c.HookLine, &chaptersJSON, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get cameo %q: %w", name, err)
	}
	if chaptersJSON.Valid && chaptersJSON.String != "" {
		if err := json.Unmarshal([]byte(chaptersJSON.String), &c.Chapters); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal cameo chapters: %w", err)
		}
	}
	return &c, nil
}

// ListCameos returns all cameo records for a manuscript.
func (s *Store) ListCameos(ctx context.Context, manuscriptID string) ([]*types.CameoRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT manuscript_id, name, hook_line, chapters, created_at, updated_at
		FROM cameos WHERE manuscript_id = ? ORDER BY name
	`, manuscriptID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list cameos: %w", err)
	}
	defer rows.Close()

	var out []*types.CameoRecord
	for rows.Next() {
		var c types.CameoRecord
		var chaptersJSON sql.NullString
		if err := rows.Scan(&c.ManuscriptID, &c.Name, &c.HookLine, &chaptersJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan cameo: %w", err)
		}
		if chaptersJSON.Valid && chaptersJSON.String != "" {
			if err := json.Unmarshal([]byte(chaptersJSON.String), &c.Chapters); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal cameo chapters: %w", err)
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteCameo removes a cameo record (promotion to full profile).
func (s *Store) DeleteCameo(ctx context.Context, manuscriptID, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cameos WHERE manuscript_id = ? AND name = ?`, manuscriptID, name)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete cameo %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpsertWorldEntity creates or replaces a world entity.
func (s *Store) UpsertWorldEntity(ctx context.Context, e *types.WorldEntity) error {
	if e == nil || e.ManuscriptID == "" || e.Name == "" {
		return fmt.Errorf("%w: manuscript ID and name are required", storage.ErrInvalidInput)
	}
	if !types.IsValidWorldEntityType(e.Type) {
		return fmt.Errorf("%w: invalid world entity type %q", storage.ErrInvalidInput, e.Type)
	}

	relatedJSON, err := json.Marshal(e.RelatedCharacters)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal related characters: %w", err)
	}

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO world_entities (
			manuscript_id, type, name, hook_line, influence_score,
			related_characters, first_mention, last_mention, mention_count,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(manuscript_id, type, name) DO UPDATE SET
			hook_line = excluded.hook_line,
			influence_score = excluded.influence_score,
			related_characters = excluded.related_characters,
			first_mention = excluded.first_mention,
			last_mention = excluded.last_mention,
			mention_count = excluded.mention_count,
			updated_at = excluded.updated_at
	`, e.ManuscriptID, string(e.Type), e.Name, e.HookLine, e.InfluenceScore,
		string(relatedJSON), e.FirstMention, e.LastMention, e.MentionCount,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert world entity %q: %w", e.Name, err)
	}
	return nil
}

// GetWorldEntity retrieves an entity by type and name.
func (s *Store) GetWorldEntity(ctx context.Context, manuscriptID string, entityType types.WorldEntityType, name string) (*types.WorldEntity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT manuscript_id, type, name, hook_line, influence_score,
			related_characters, first_mention, last_mention, mention_count,
			created_at, updated_at
		FROM world_entities WHERE manuscript_id = ? AND type = ? AND name = ?
	`, manuscriptID, string(entityType), name)
	e, err := scanWorldEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get world entity %q: %w", name, err)
	}
	return e, nil
}

// scanWorldEntity reads one world entity row.
func scanWorldEntity(row interface{ Scan(...any) error }) (*types.WorldEntity, error) {
	var e types.WorldEntity
	var entityType string
	var relatedJSON sql.NullString
	err := row.Scan(
		&e.ManuscriptID, &entityType, &e.Name, &e.HookLine, &e.InfluenceScore,
		&relatedJSON, &e.FirstMention, &e.LastMention, &e.MentionCount,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Type = types.WorldEntityType(entityType)
	if relatedJSON.Valid && relatedJSON.String != "" {
		if err := json.Unmarshal([]byte(relatedJSON.String), &e.RelatedCharacters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal related characters: %w", err)
		}
	}
	return &e, nil
}

// ListWorldEntities returns world entities, optionally filtered by type.
func (s *Store) ListWorldEntities(ctx context.Context, manuscriptID string, entityType types.WorldEntityType) ([]*types.WorldEntity, error) {
	query := `
		SELECT manuscript_id, type, name, hook_line, influence_score,
			related_characters, first_mention, last_mention, mention_count,
			created_at, updated_at
		FROM world_entities WHERE manuscript_id = ?`
	args := []any{manuscriptID}
	if entityType != "" {
		query += ` AND type = ?`
		args = append(args, string(entityType))
	}
	query += ` ORDER BY influence_score DESC, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list world entities: %w", err)
	}
	defer rows.Close()

	var out []*types.WorldEntity
	for rows.Next() {
		e, err := scanWorldEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan world entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertForeshadowing creates or replaces a foreshadowing record keyed by ID.
func (s *Store) UpsertForeshadowing(ctx context.Context, r *types.ForeshadowingRecord) error {
	if r == nil || r.ID == "" || r.ManuscriptID == "" {
		return fmt.Errorf("%w: ID and manuscript ID are required", storage.ErrInvalidInput)
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	var resolved sql.NullInt64
	if r.ResolvedChapter != nil {
		resolved = sql.NullInt64{Int64: int64(*r.ResolvedChapter), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO foreshadowing (
			id, manuscript_id, content, status, planted_chapter,
			resolved_chapter, type, priority, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			resolved_chapter = excluded.resolved_chapter,
			priority = excluded.priority,
			updated_at = excluded.updated_at
	`, r.ID, r.ManuscriptID, r.Content, string(r.Status), r.PlantedChapter,
		resolved, r.Type, r.Priority, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert foreshadowing: %w", err)
	}
	return nil
}

// scanForeshadowing reads one foreshadowing row.
func scanForeshadowing(row interface{ Scan(...any) error }) (*types.ForeshadowingRecord, error) {
	var r types.ForeshadowingRecord
	var status string
	var resolved sql.NullInt64
	err := row.Scan(
		&r.ID, &r.ManuscriptID, &r.Content, &status, &r.PlantedChapter,
		&resolved, &r.Type, &r.Priority, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = types.ForeshadowStatus(status)
	if resolved.Valid {
		ch := int(resolved.Int64)
		r.ResolvedChapter = &ch
	}
	return &r, nil
}

// FindForeshadowing locates a record by (content, type) equality.
func (s *Store) FindForeshadowing(ctx context.Context, manuscriptID, content, foreshadowType string) (*types.ForeshadowingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, manuscript_id, content, status, planted_chapter,
			resolved_chapter, type, priority, created_at, updated_at
		FROM foreshadowing WHERE manuscript_id = ? AND content = ? AND type = ?
	`, manuscriptID, content, foreshadowType)
	r, err := scanForeshadowing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to find foreshadowing: %w", err)
	}
	return r, nil
}

// ListForeshadowing returns records ordered by priority desc, planted asc.
func (s *Store) ListForeshadowing(ctx context.Context, manuscriptID string, status types.ForeshadowStatus) ([]*types.ForeshadowingRecord, error) {
	query := `
		SELECT id, manuscript_id, content, status, planted_chapter,
			resolved_chapter, type, priority, created_at, updated_at
		FROM foreshadowing WHERE manuscript_id = ?`
	args := []any{manuscriptID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY priority DESC, planted_chapter ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list foreshadowing: %w", err)
	}
	defer rows.Close()

	var out []*types.ForeshadowingRecord
	for rows.Next() {
		r, err := scanForeshadowing(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan foreshadowing: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertChronicle creates or replaces the event record for a chapter.
func (s *Store) UpsertChronicle(ctx context.Context, ev *types.ChronicleEvent) error {
	if ev == nil || ev.ManuscriptID == "" || ev.Chapter <= 0 {
		return fmt.Errorf("%w: manuscript ID and positive chapter are required", storage.ErrInvalidInput)
	}

	eventsJSON, err := json.Marshal(ev.Events)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal events: %w", err)
	}

	now := time.Now()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chronicle_events (manuscript_id, chapter, events, timeline_info, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(manuscript_id, chapter) DO UPDATE SET
			events = excluded.events,
			timeline_info = excluded.timeline_info,
			updated_at = excluded.updated_at
	`, ev.ManuscriptID, ev.Chapter, string(eventsJSON), ev.TimelineInfo, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert chronicle for chapter %d: %w", ev.Chapter, err)
	}
	return nil
}

// GetChronicle retrieves the event record for a chapter.
func (s *Store) GetChronicle(ctx context.Context, manuscriptID string, chapter int) (*types.ChronicleEvent, error) {
	var ev types.ChronicleEvent
	var eventsJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT manuscript_id, chapter, events, timeline_info, created_at, updated_at
		FROM chronicle_events WHERE manuscript_id = ? AND chapter = ?
	`, manuscriptID, chapter).Scan(&ev.ManuscriptID, &ev.Chapter, &eventsJSON, &ev.TimelineInfo, &ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get chronicle for chapter %d: %w", chapter, err)
	}
	if eventsJSON.Valid && eventsJSON.String != "" {
		if err := json.Unmarshal([]byte(eventsJSON.String), &ev.Events); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal events: %w", err)
		}
	}
	return &ev, nil
}

// ListChronicle returns event records for chapters >= fromChapter, ascending.
func (s *Store) ListChronicle(ctx context.Context, manuscriptID string, fromChapter, limit int) ([]*types.ChronicleEvent, error) {
	query := `
		SELECT manuscript_id, chapter, events, timeline_info, created_at, updated_at
		FROM chronicle_events WHERE manuscript_id = ? AND chapter >= ?
		ORDER BY chapter ASC`
	args := []any{manuscriptID, fromChapter}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list chronicle: %w", err)
	}
	defer rows.Close()

	var out []*types.ChronicleEvent
	for rows.Next() {
		var ev types.ChronicleEvent
		var eventsJSON sql.NullString
		if err := rows.Scan(&ev.ManuscriptID, &ev.Chapter, &eventsJSON, &ev.TimelineInfo, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan chronicle: %w", err)
		}
		if eventsJSON.Valid && eventsJSON.String != "" {
			if err := json.Unmarshal([]byte(eventsJSON.String), &ev.Events); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal events: %w", err)
			}
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// SaveChapterSummary stores the extractor's chapter digest.
func (s *Store) SaveChapterSummary(ctx context.Context, sum *types.ChapterSummary) error {
	if sum == nil || sum.ManuscriptID == "" || sum.Chapter <= 0 {
		return fmt.Errorf("%w: manuscript ID and positive chapter are required", storage.ErrInvalidInput)
	}

	var embeddingJSON sql.NullString
	if len(sum.Embedding) > 0 {
		data, err := json.Marshal(sum.Embedding)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal embedding: %w", err)
		}
		embeddingJSON = sql.NullString{String: string(data), Valid: true}
	}

	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_summaries (manuscript_id, chapter, summary, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(manuscript_id, chapter) DO UPDATE SET
			summary = excluded.summary,
			embedding = excluded.embedding
	`, sum.ManuscriptID, sum.Chapter, sum.Summary, embeddingJSON, sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save summary for chapter %d: %w", sum.Chapter, err)
	}
	return nil
}

// ListRecentSummaries returns the most recent summaries, newest first.
func (s *Store) ListRecentSummaries(ctx context.Context, manuscriptID string, limit int) ([]*types.ChapterSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT manuscript_id, chapter, summary, created_at
		FROM chapter_summaries WHERE manuscript_id = ?
		ORDER BY chapter DESC LIMIT ?
	`, manuscriptID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list summaries: %w", err)
	}
	defer rows.Close()

	var out []*types.ChapterSummary
	for rows.Next() {
		var sum types.ChapterSummary
		if err := rows.Scan(&sum.ManuscriptID, &sum.Chapter, &sum.Summary, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan summary: %w", err)
		}
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// SaveProtagonistStatus creates or replaces the status record.
func (s *Store) SaveProtagonistStatus(ctx context.Context, st *types.ProtagonistStatus) error {
	if st == nil || st.ManuscriptID == "" {
		return fmt.Errorf("%w: manuscript ID is required", storage.ErrInvalidInput)
	}

	possessionsJSON, err := json.Marshal(st.Possessions)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal possessions: %w", err)
	}

	st.UpdatedAt = time.Now()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO protagonist_status (
			manuscript_id, name, current_state, location, power_level,
			possessions, updated_chapter, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(manuscript_id) DO UPDATE SET
			name = excluded.name,
			current_state = excluded.current_state,
			location = excluded.location,
			power_level = excluded.power_level,
			possessions = excluded.possessions,
			updated_chapter = excluded.updated_chapter,
			updated_at = excluded.updated_at
	`, st.ManuscriptID, st.Name, st.CurrentState, st.Location, st.PowerLevel,
		string(possessionsJSON), st.UpdatedChapter, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: failed to save protagonist status: %w", err)
	}
	return nil
}

// GetProtagonistStatus retrieves the status record.
func (s *Store) GetProtagonistStatus(ctx context.Context, manuscriptID string) (*types.ProtagonistStatus, error) {
	var st types.ProtagonistStatus
	var possessionsJSON sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT manuscript_id, name, current_state, location, power_level,
			possessions, updated_chapter, updated_at
		FROM protagonist_status WHERE manuscript_id = ?
	`, manuscriptID).Scan(&st.ManuscriptID, &st.Name, &st.CurrentState, &st.Location,
		&st.PowerLevel, &possessionsJSON, &st.UpdatedChapter, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get protagonist status: %w", err)
	}
	if possessionsJSON.Valid && possessionsJSON.String != "" {
		if err := json.Unmarshal([]byte(possessionsJSON.String), &st.Possessions); err != nil {
			return nil, fmt.Errorf("sqlite: failed to unmarshal possessions: %w", err)
		}
	}
	return &st, nil
}

// HasMerge reports whether a merge for (manuscript, chapter) has been recorded.
func (s *Store) HasMerge(ctx context.Context, manuscriptID string, chapter int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM merge_log WHERE manuscript_id = ? AND chapter = ?`,
		manuscriptID, chapter).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to query merge log: %w", err)
	}
	return count > 0, nil
}

// RecordMerge marks (manuscript, chapter) as merged.
func (s *Store) RecordMerge(ctx context.Context, manuscriptID string, chapter int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merge_log (manuscript_id, chapter, merged_at)
		VALUES (?, ?, ?)
		ON CONFLICT(manuscript_id, chapter) DO NOTHING
	`, manuscriptID, chapter, time.Now())
	if err != nil {
		return fmt.Errorf("sqlite: failed to record merge: %w", err)
	}
	return nil
}

// Stats returns per-family record counts for a manuscript.
func (s *Store) Stats(ctx context.Context, manuscriptID string) (*storage.Stats, error) {
	stats := &storage.Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"characters", &stats.Characters},
		{"cameos", &stats.Cameos},
		{"world_entities", &stats.WorldEntities},
		{"foreshadowing", &stats.Foreshadowing},
		{"chronicle_events", &stats.Chronicle},
		{"chapter_summaries", &stats.Summaries},
	}
	for _, c := range counts {
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+c.table+" WHERE manuscript_id = ?", manuscriptID).Scan(c.dest)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to count %s: %w", c.table, err)
		}
	}
	return stats, nil
}
