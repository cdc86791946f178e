package snapstore

// Schema creates the single-slot snapshot table. The CHECK pins the table
// to exactly one row; saving always replaces it.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshot (
    slot        INTEGER PRIMARY KEY CHECK (slot = 1),
    snapshot_id TEXT NOT NULL,        -- identifier of the saved snapshot
    data        TEXT NOT NULL,        -- serialized registry JSON
    saved_at    INTEGER NOT NULL      -- unix millis
);
`
