package sqlite

// Schema defines the SQLite schema for the narrative store. Executed on every
// open; all statements are idempotent.
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
    influence_score       REAL NOT NULL DEFAULT 0,
    screen_time           REAL NOT NULL DEFAULT 0,
    return_probability    REAL NOT NULL DEFAULT 0,
    core_trait            TEXT NOT NULL DEFAULT '',
    speech_style          TEXT NOT NULL DEFAULT '',
    desire                TEXT NOT NULL DEFAULT '',
    hook_line             TEXT NOT NULL DEFAULT '',
    links_to_protagonist  TEXT NOT NULL DEFAULT '',
    trigger_conditions    TEXT NOT NULL DEFAULT '',
    lifecycle             TEXT NOT NULL,
    created_at            TIMESTAMP NOT NULL,
    updated_at            TIMESTAMP NOT NULL,
    PRIMARY KEY (manuscript_id, name)
);

CREATE INDEX IF NOT EXISTS idx_characters_role
    ON characters(manuscript_id, role);

CREATE TABLE IF NOT EXISTS cameos (
    manuscript_id TEXT NOT NULL,
    name          TEXT NOT NULL,
    hook_line     TEXT NOT NULL DEFAULT '',
    chapters      TEXT,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (manuscript_id, name)
);

CREATE TABLE IF NOT EXISTS world_entities (
    manuscript_id      TEXT NOT NULL,
    type               TEXT NOT NULL,
    name               TEXT NOT NULL,
    hook_line          TEXT NOT NULL DEFAULT '',
    influence_score    REAL NOT NULL DEFAULT 0,
    related_characters TEXT,
    first_mention      INTEGER NOT NULL DEFAULT 0,
    last_mention       INTEGER NOT NULL DEFAULT 0,
    mention_count      INTEGER NOT NULL DEFAULT 0,
    created_at         TIMESTAMP NOT NULL,
    updated_at         TIMESTAMP NOT NULL,
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
    created_at       TIMESTAMP NOT NULL,
    updated_at       TIMESTAMP NOT NULL,
    UNIQUE (manuscript_id, content, type)
);

CREATE INDEX IF NOT EXISTS idx_foreshadowing_status
    ON foreshadowing(manuscript_id, status);

CREATE TABLE IF NOT EXISTS chronicle_events (
    manuscript_id TEXT NOT NULL,
    chapter       INTEGER NOT NULL,
    events        TEXT,
    timeline_info TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (manuscript_id, chapter)
);

CREATE TABLE IF NOT EXISTS chapter_summaries (
    manuscript_id TEXT NOT NULL,
    chapter       INTEGER NOT NULL,
    summary       TEXT NOT NULL,
    embedding     TEXT,
    created_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (manuscript_id, chapter)
);

CREATE TABLE IF NOT EXISTS protagonist_status (
    manuscript_id   TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    current_state   TEXT NOT NULL DEFAULT '',
    location        TEXT NOT NULL DEFAULT '',
    power_level     TEXT NOT NULL DEFAULT '',
    possessions     TEXT,
    updated_chapter INTEGER NOT NULL DEFAULT 0,
    updated_at      TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS merge_log (
    manuscript_id TEXT NOT NULL,
    chapter       INTEGER NOT NULL,
    merged_at     TIMESTAMP NOT NULL,
    PRIMARY KEY (manuscript_id, chapter)
);
`
