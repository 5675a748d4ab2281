package sqlite

// Schema is the SQLite DDL for the Converse tables. All statements are
// idempotent so the schema can be applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    message_count INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user
    ON conversations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    role            TEXT NOT NULL,
    content         TEXT NOT NULL,
    timestamp       TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages(conversation_id, timestamp ASC);

CREATE TABLE IF NOT EXISTS conversation_memories (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    summary         TEXT NOT NULL,
    key_topics      TEXT NOT NULL DEFAULT '[]',
    importance      REAL NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL,
    last_accessed   TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_user_accessed
    ON conversation_memories(user_id, last_accessed DESC);

CREATE TABLE IF NOT EXISTS usage_records (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    conversation_id   TEXT NOT NULL,
    message_id        TEXT NOT NULL,
    model             TEXT NOT NULL,
    prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    completion_tokens INTEGER NOT NULL DEFAULT 0,
    total_tokens      INTEGER NOT NULL DEFAULT 0,
    cost              REAL NOT NULL DEFAULT 0,
    timestamp         TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_user_time
    ON usage_records(user_id, timestamp DESC);
`
