package sqlite

// Schema creates every table refmatch reads or writes. All statements are
// idempotent. Timestamps are fixed-width UTC TEXT (see timeLayout); arrays and
// snapshots are JSON TEXT.
const Schema = `
CREATE TABLE IF NOT EXISTS people (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    username TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    meta TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Items reference people and tags loosely: upstream sync is eventually consistent.
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    caption TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_user_created ON items(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_items_user_tag ON items(user_id, tag_id, created_at);
CREATE INDEX IF NOT EXISTS idx_items_tag ON items(tag_id);

CREATE TABLE IF NOT EXISTS tag_vectors (
    tag_id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    embedding BLOB NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tag_personalities (
    user_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    sentence TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (user_id, tag_id)
);
CREATE INDEX IF NOT EXISTS idx_tag_personalities_user_updated ON tag_personalities(user_id, updated_at);

CREATE TABLE IF NOT EXISTS person_personalities (
    user_id TEXT PRIMARY KEY,
    summary TEXT NOT NULL,
    ref_ids_used TEXT NOT NULL DEFAULT '[]',
    ref_count INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS search_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    ref_ids TEXT NOT NULL DEFAULT '[]',
    ref_titles TEXT NOT NULL DEFAULT '[]',
    search_title TEXT NOT NULL DEFAULT '',
    search_subtitle TEXT NOT NULL DEFAULT '',
    result_count INTEGER NOT NULL DEFAULT 0,
    search_results TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_user_created ON search_history(user_id, created_at);
`
