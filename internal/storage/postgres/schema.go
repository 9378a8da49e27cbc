// Package postgres provides PostgreSQL implementations of storage interfaces.
package postgres

// Schema contains the SQL statements to create the refmatch tables.
// Every statement is idempotent.
const Schema = `
-- People: display fields refreshed by the upstream sync
CREATE TABLE IF NOT EXISTS people (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    username TEXT NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Tags ("refs"): the interest catalog
CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT '',
    meta JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Items: a person adding a tag, optionally with a caption.
-- seq breaks created_at ties so "most recent" is deterministic.
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    seq BIGSERIAL,
    user_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    caption TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_items_user_created ON items(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_user_tag ON items(user_id, tag_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_tag ON items(tag_id);

-- Tag vectors: embedding stored as little-endian float32 BYTEA; the pgvector
-- column is added by MigrationPgvector when the extension is available.
CREATE TABLE IF NOT EXISTS tag_vectors (
    tag_id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    embedding BYTEA NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Per-tag personality sentences, overwritten on regeneration
CREATE TABLE IF NOT EXISTS tag_personalities (
    user_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    sentence TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_tag_personalities_user_updated ON tag_personalities(user_id, updated_at DESC);

-- Composite personality summaries, overwritten wholesale
CREATE TABLE IF NOT EXISTS person_personalities (
    user_id TEXT PRIMARY KEY,
    summary TEXT NOT NULL,
    ref_ids_used TEXT[] NOT NULL DEFAULT '{}',
    ref_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Search history: page-one snapshots served back verbatim on restore
CREATE TABLE IF NOT EXISTS search_history (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    ref_ids TEXT[] NOT NULL DEFAULT '{}',
    ref_titles TEXT[] NOT NULL DEFAULT '{}',
    search_title TEXT NOT NULL DEFAULT '',
    search_subtitle TEXT NOT NULL DEFAULT '',
    result_count INTEGER NOT NULL DEFAULT 0,
    search_results JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT search_history_count_matches CHECK (result_count = jsonb_array_length(search_results))
);

CREATE INDEX IF NOT EXISTS idx_search_history_user_created ON search_history(user_id, created_at DESC);
`

// MigrationPgvector adds the vector column to tag_vectors and installs the
// rank_people procedure. Only applied when the vector extension is available.
// Safe to run multiple times.
const MigrationPgvector = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'tag_vectors' AND column_name = 'embedding_vec'
    ) THEN
        ALTER TABLE tag_vectors ADD COLUMN embedding_vec vector;
    END IF;
END
$$;

-- rank_people has a fixed three-tag signature. Unused tag slots are NULL.
-- exact_matches counts distinct query tags the person holds;
-- vector_similarity is the best cosine similarity over the person's tag
-- vectors, NULL when none of their tags has one.
CREATE OR REPLACE FUNCTION rank_people(
    p_user TEXT,
    p_ref1 TEXT,
    p_ref2 TEXT,
    p_ref3 TEXT,
    p_vec vector
)
RETURNS TABLE (
    user_id TEXT,
    name TEXT,
    username TEXT,
    avatar_url TEXT,
    exact_matches INTEGER,
    vector_similarity DOUBLE PRECISION
)
LANGUAGE sql STABLE
AS $$
    WITH person_tags AS (
        SELECT DISTINCT i.user_id AS person_id, i.tag_id
        FROM items i
        WHERE i.user_id <> p_user
    ),
    scored AS (
        SELECT pt.person_id,
               (COUNT(*) FILTER (WHERE pt.tag_id IN (p_ref1, p_ref2, p_ref3)))::INTEGER AS exact_count,
               MAX(1 - (v.embedding_vec <=> p_vec)) AS best_similarity
        FROM person_tags pt
        LEFT JOIN tag_vectors v ON v.tag_id = pt.tag_id AND v.embedding_vec IS NOT NULL
        GROUP BY pt.person_id
    )
    SELECT p.id, p.name, p.username, p.avatar_url, s.exact_count, s.best_similarity
    FROM scored s
    JOIN people p ON p.id = s.person_id
    WHERE s.exact_count > 0 OR s.best_similarity IS NOT NULL
    ORDER BY s.exact_count DESC, s.best_similarity DESC NULLS LAST, p.id ASC
$$;
`

// exactRankQuery ranks on tag overlap alone. Used when pgvector is missing.
const exactRankQuery = `
	SELECT p.id, p.name, p.username, p.avatar_url,
	       COUNT(DISTINCT i.tag_id)::INTEGER AS exact_matches,
	       NULL::DOUBLE PRECISION AS vector_similarity
	FROM items i
	JOIN people p ON p.id = i.user_id
	WHERE i.user_id <> $1 AND i.tag_id = ANY($2)
	GROUP BY p.id, p.name, p.username, p.avatar_url
	ORDER BY exact_matches DESC, p.id ASC
`
