package sqlstate

// Schema contains the DDL for the ui_state table.
const Schema = `
-- UI state: one row per path. is_null marks the unset sentinel: the path
-- stays present, readers treat it as absent.
CREATE TABLE IF NOT EXISTS ui_state (
    path       TEXT PRIMARY KEY,
    value      TEXT NOT NULL DEFAULT '',
    is_null    INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL
);
`
