package cache

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

// ErrNotFound is returned by Get when no entry has the digest.
var ErrNotFound = errors.New(errors.PhaseCache, errors.KindNotFound).
	Detail("no cached circuit").
	Build()

// Entry is one cached compilation.
type Entry struct {
	Created  time.Time
	Digest   string
	Name     string
	Snapshot []byte
	Blocks   [][]gate.Ref
}

// Store is a compile cache backed by one SQLite file. It is safe for
// concurrent use.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.PhaseCache, errors.KindIO, err, "create cache directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCache, errors.KindIO, err, "open cache")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.PhaseCache, errors.KindIO, err, "set busy timeout")
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS circuits (
		digest TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		snapshot BLOB NOT NULL,
		blocks BLOB,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(errors.PhaseCache, errors.KindIO, err, "create circuits table")
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores e, replacing any entry with the same digest.
func (s *Store) Put(e *Entry) error {
	if e.Digest == "" {
		return errors.InvalidInput(errors.PhaseCache, "entry has no digest")
	}
	var blocks []byte
	if e.Blocks != nil {
		var err error
		blocks, err = cbor.Marshal(e.Blocks)
		if err != nil {
			return errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "encode block order")
		}
	}
	created := e.Created
	if created.IsZero() {
		created = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO circuits (digest, name, snapshot, blocks, created) VALUES (?, ?, ?, ?, ?)",
		e.Digest, e.Name, e.Snapshot, blocks, created.Unix(),
	)
	if err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindIO, err, fmt.Sprintf("store %s", e.Name))
	}
	return nil
}

// Get loads the entry for digest.
func (s *Store) Get(digest string) (*Entry, error) {
	var (
		e       Entry
		blocks  []byte
		created int64
	)
	err := s.db.QueryRow(
		"SELECT digest, name, snapshot, blocks, created FROM circuits WHERE digest = ?", digest,
	).Scan(&e.Digest, &e.Name, &e.Snapshot, &blocks, &created)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(errors.PhaseCache, errors.KindIO, err, "query circuit")
	}
	if len(blocks) > 0 {
		if err := cbor.Unmarshal(blocks, &e.Blocks); err != nil {
			return nil, errors.Wrap(errors.PhaseCache, errors.KindInvalidInput, err, "decode block order")
		}
	}
	e.Created = time.Unix(created, 0)
	return &e, nil
}

// Delete removes the entry for digest. Deleting a missing entry is not an
// error.
func (s *Store) Delete(digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM circuits WHERE digest = ?", digest); err != nil {
		return errors.Wrap(errors.PhaseCache, errors.KindIO, err, "delete circuit")
	}
	return nil
}

// Len returns the number of cached circuits.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM circuits").Scan(&n); err != nil {
		return 0, errors.Wrap(errors.PhaseCache, errors.KindIO, err, "count circuits")
	}
	return n, nil
}
