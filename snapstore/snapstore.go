// Package snapstore persists one serialized registry snapshot in SQLite.
//
// The registry's non-goals allow exactly one snapshot of persistence: the
// store keeps a single row and Save always replaces it. Load returns
// ErrNoSnapshot until the first Save.
package snapstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/domscribe/dbopen"
	"github.com/hazyhaar/domscribe/idgen"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("snapstore: no snapshot")

// Store wraps the snapshot table. Safe for concurrent use; SQLite busy
// retries are handled by dbopen.
type Store struct {
	DB  *sql.DB
	IDs idgen.Generator
}

// New wraps an existing database handle. The schema must already be
// applied.
func New(db *sql.DB) *Store {
	return &Store{DB: db, IDs: idgen.Default}
}

// Open opens (or creates) the snapshot database at path.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	base := []dbopen.Option{dbopen.WithMkdirAll(), dbopen.WithSchema(Schema)}
	db, err := dbopen.Open(path, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("snapstore: open: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Save stores data as the current snapshot, replacing any previous one,
// and returns the new snapshot's identifier.
func (s *Store) Save(ctx context.Context, data []byte) (string, error) {
	ids := s.IDs
	if ids == nil {
		ids = idgen.Default
	}
	id := ids()
	_, err := dbopen.Exec(ctx, s.DB,
		`INSERT OR REPLACE INTO snapshot (slot, snapshot_id, data, saved_at) VALUES (1, ?, ?, ?)`,
		id, string(data), time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("snapstore: save: %w", err)
	}
	return id, nil
}

// Load returns the current snapshot data and its identifier.
func (s *Store) Load(ctx context.Context) ([]byte, string, error) {
	var (
		id   string
		data string
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT snapshot_id, data FROM snapshot WHERE slot = 1`).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNoSnapshot
	}
	if err != nil {
		return nil, "", fmt.Errorf("snapstore: load: %w", err)
	}
	return []byte(data), id, nil
}

// Info describes the stored snapshot.
type Info struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
	Size    int       `json:"size"`
}

// Stat returns metadata about the stored snapshot without loading it.
func (s *Store) Stat(ctx context.Context) (*Info, error) {
	var (
		id      string
		savedAt int64
		size    int
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT snapshot_id, saved_at, length(data) FROM snapshot WHERE slot = 1`).
		Scan(&id, &savedAt, &size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("snapstore: stat: %w", err)
	}
	return &Info{ID: id, SavedAt: time.UnixMilli(savedAt), Size: size}, nil
}

// Clear deletes the stored snapshot. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("snapstore: clear: %w", err)
	}
	return nil
}
