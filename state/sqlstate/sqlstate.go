// CLAUDE:SUMMARY SQLite-backed implementation of the state.Store contract with cross-process change polling.
// Package sqlstate persists title state in SQLite, implementing the
// state.Store contract.
//
// Writes through this process notify subscribers directly. To observe writes
// from other processes (or other connections to the same file), run Watch: it
// polls PRAGMA data_version and fires every subscriber when the database
// changes underneath us. Notifications are at-least-once (a local write can
// surface both directly and through the poll), so subscribers must tolerate
// duplicates and re-read rather than carry payloads.
package sqlstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/domscribe/dbopen"
)

// Options configures the store.
type Options struct {
	// PollInterval is the delay between data_version checks in Watch.
	// Default: 1s.
	PollInterval time.Duration
	// Debounce is the quiet window after a detected change before
	// subscribers fire. 0 fires immediately. Default: 0.
	Debounce time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Store is a SQLite-backed state.Store.
type Store struct {
	db   *sql.DB
	opts Options

	mu      sync.Mutex
	subs    map[string]map[int]func()
	nextSub int

	// Counters for observability (exported via Stats).
	checks   atomic.Int64
	changes  atomic.Int64
	notifies atomic.Int64
	errs     atomic.Int64
}

// Stats are point-in-time counters for the Watch loop.
type Stats struct {
	Checks   int64 `json:"checks"`
	Changes  int64 `json:"changes"`
	Notifies int64 `json:"notifies"`
	Errors   int64 `json:"errors"`
}

// New wraps an existing database handle. The ui_state table must exist
// (apply Schema, or use Open).
func New(db *sql.DB, opts Options) *Store {
	opts.defaults()
	return &Store{
		db:   db,
		opts: opts,
		subs: make(map[string]map[int]func()),
	}
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and returns a ready store.
func Open(path string, opts Options, dbOpts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, dbOpts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("sqlstate: open: %w", err)
	}
	return New(db, opts), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns the current Watch counters.
func (s *Store) Stats() Stats {
	return Stats{
		Checks:   s.checks.Load(),
		Changes:  s.changes.Load(),
		Notifies: s.notifies.Load(),
		Errors:   s.errs.Load(),
	}
}

// Get returns the value at path. ok is false for unknown paths and for paths
// holding the unset sentinel.
func (s *Store) Get(ctx context.Context, path string) (string, bool, error) {
	var value string
	var isNull int
	err := s.db.QueryRowContext(ctx,
		`SELECT value, is_null FROM ui_state WHERE path = ?`, path,
	).Scan(&value, &isNull)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlstate: get %s: %w", path, err)
	}
	if isNull != 0 {
		return "", false, nil
	}
	return value, true, nil
}

// Set upserts value at path and notifies local subscribers.
func (s *Store) Set(ctx context.Context, path, value string) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO ui_state (path, value, is_null, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, is_null = 0, updated_at = excluded.updated_at`,
		path, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlstate: set %s: %w", path, err)
	}
	s.notify(path)
	return nil
}

// Unset writes the null sentinel at path and notifies local subscribers.
func (s *Store) Unset(ctx context.Context, path string) error {
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO ui_state (path, value, is_null, updated_at) VALUES (?, '', 1, ?)
		ON CONFLICT(path) DO UPDATE SET value = '', is_null = 1, updated_at = excluded.updated_at`,
		path, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlstate: unset %s: %w", path, err)
	}
	s.notify(path)
	return nil
}

// Subscribe registers fn for changes to exactly path.
func (s *Store) Subscribe(path string, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[path] == nil {
		s.subs[path] = make(map[int]func())
	}
	id := s.nextSub
	s.nextSub++
	s.subs[path][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[path], id)
	}
}

func (s *Store) notify(path string) {
	s.mu.Lock()
	set := s.subs[path]
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	if len(fns) > 0 {
		s.notifies.Add(int64(len(fns)))
	}
}

func (s *Store) notifyAll() {
	s.mu.Lock()
	var fns []func()
	for _, set := range s.subs {
		for _, fn := range set {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	if len(fns) > 0 {
		s.notifies.Add(int64(len(fns)))
	}
}

// Watch blocks until ctx is cancelled, polling PRAGMA data_version at
// PollInterval. When the version advances (another connection or process
// committed) and the debounce window passes quietly, every subscriber fires.
func (s *Store) Watch(ctx context.Context) {
	log := s.opts.Logger

	last, err := s.dataVersion(ctx)
	if err != nil {
		s.errs.Add(1)
		log.Warn("sqlstate: initial version check failed", "error", err)
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := false

	log.Info("sqlstate: watch started",
		"interval", s.opts.PollInterval, "debounce", s.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			log.Info("sqlstate: watch stopped")
			return

		case <-ticker.C:
			s.checks.Add(1)
			cur, err := s.dataVersion(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.errs.Add(1)
				log.Warn("sqlstate: version check failed", "error", err)
				continue
			}
			if cur == last {
				continue
			}
			s.changes.Add(1)
			last = cur

			if s.opts.Debounce <= 0 {
				log.Debug("sqlstate: change detected, notifying", "version", cur)
				s.notifyAll()
				continue
			}
			pending = true
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(s.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("sqlstate: change detected, debouncing", "version", cur)

		case <-debounceCh:
			debounceCh = nil
			if pending {
				pending = false
				s.notifyAll()
			}
		}
	}
}

func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
