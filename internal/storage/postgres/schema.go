package postgres

// Schema defines the PostgreSQL schema for the narrative store. All
// statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS characters (
    manuscript_id         TEXT NOT NULL,
    name                  TEXT NOT NULL,
    role                  TEXT NOT NULL,
    status                TEXT NOT NULL DEFAULT '',
    status_change_chapter INTEGER NOT NULL DEFAULT 0,
    first_appearance      INTEGER NOT NULL DEFAULT 0,
    last_appearance       INTEGER NOT NULL DEFAULT 0,
    appearance_count      INTEGER NOT NULL DEFAULT 0,
    influence_score       DOUBLE PRECISION NOT NULL DEFAULT 0,
    screen_time           DOUBLE PRECISION NOT NULL DEFAULT 0,
    return_probability    DOUBLE PRECISION NOT NULL DEFAULT 0,
    core_trait            TEXT NOT NULL DEFAULT '',
    speech_style          TEXT NOT NULL DEFAULT '',
    desire                TEXT NOT NULL DEFAULT '',
    hook_line             TEXT NOT NULL DEFAULT '',
    links_to_protagonist  TEXT NOT NULL DEFAULT '',
    trigger_conditions    TEXT NOT NULL DEFAULT '',
    lifecycle             TEXT NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (manuscript_id, name)
);

CREATE INDEX IF NOT EXISTS idx_characters_role
    ON characters(manuscript_id, role);

CREATE TABLE IF NOT EXISTS cameos (
    manuscript_id TEXT NOT NULL,
    name          TEXT NOT NULL,
    hook_line     TEXT NOT NULL DEFAULT '',
    chapters      JSONB,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (manuscript_id, name)
);

CREATE TABLE IF NOT EXISTS world_entities (
    manuscript_id      TEXT NOT NULL,
    type               TEXT NOT NULL,
    name               TEXT NOT NULL,
    hook_line          TEXT NOT NULL DEFAULT '',
    influence_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
    related_characters JSONB,
    first_mention      INTEGER NOT NULL DEFAULT 0,
    last_mention       INTEGER NOT NULL DEFAULT 0,
    mention_count      INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL,
    updated_at         TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (manuscript_id, type, name)
);

CREATE TABLE IF NOT EXISTS foreshadowing (
    id               TEXT PRIMARY KEY,
    manuscript_id    TEXT NOT NULL,
    content          TEXT NOT NULL,
    status           TEXT NOT NULL,
    planted_chapter  INTEGER NOT NULL,
    resolved_chapter INTEGER,
    type             TEXT NOT NULL DEFAULT '',
    priority         INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL,
    UNIQUE (manuscript_id, content, type)
);

CREATE TABLE IF NOT EXISTS chronicle_events (
    manuscript_id TEXT NOT NULL,
    chapter       INTEGER NOT NULL,
    events        JSONB,
    timeline_info TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (manuscript_id, chapter)
);

CREATE TABLE IF NOT EXISTS chapter_summaries (
    manuscript_id TEXT NOT NULL,
    chapter       INTEGER NOT NULL,
    summary       TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (manuscript_id, chapter)
);

CREATE TABLE IF NOT EXISTS protagonist_status (
    manuscript_id   TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    current_state   TEXT NOT NULL DEFAULT '',
    location        TEXT NOT NULL DEFAULT '',
    power_level     TEXT NOT NULL DEFAULT '',
    possessions     JSONB,
    updated_chapter INTEGER NOT NULL DEFAULT 0,
    updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS merge_log (
    manuscript_id TEXT NOT NULL,
    chapter       INTEGER NOT NULL,
    merged_at     TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (manuscript_id, chapter)
);
`

// MigrationPgvector adds the embedding column for chapter-summary semantic
// recall. Applied only when the pgvector extension is available.
const MigrationPgvector = `
ALTER TABLE chapter_summaries ADD COLUMN IF NOT EXISTS embedding vector(768);
CREATE INDEX IF NOT EXISTS idx_chapter_summaries_embedding
    ON chapter_summaries USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
