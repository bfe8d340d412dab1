// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// LOCKING
// ───────
// *sql.DB is already safe for concurrent use, but the server needs a
// stronger guarantee: one store operation at a time, including the time
// a caller spends inside the ScanUsers callback. A single sync.Mutex on
// the SQLite struct is that exclusion domain.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aanand-mishra/users-server/internal/config"
	"github.com/aanand-mishra/users-server/internal/storage"
	"github.com/aanand-mishra/users-server/internal/types"

	// Blank import: side-effect only (registers the "sqlite3" driver).
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the concrete implementation of storage.Storage.
type SQLite struct {
	mu     sync.Mutex
	db     *sql.DB
	closed atomic.Bool
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at cfg.StoragePath, creates the user
// table if it does not already exist, and returns a ready-to-use *SQLite.
func New(cfg *config.Config) (*SQLite, error) {
	db, err := sql.Open("sqlite3", cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	// All access is serialized by s.mu anyway; a single connection keeps
	// the file from being opened more than once by the pool.
	db.SetMaxOpenConns(1)

	// Schema:
	//   id   — assigned by SQLite, never reused (AUTOINCREMENT)
	//   name — whatever token the client sent
	//   age  — parsed integer, 0 when the client sent garbage
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS user (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			age  INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// InsertUser adds one row and returns its auto-generated id.
//
// The values go through ? placeholders, never through string formatting,
// so a name such as "x'); DROP TABLE user; --" is stored verbatim.
func (s *SQLite) InsertUser(name string, age int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return 0, fmt.Errorf("InsertUser: %w", storage.ErrClosed)
	}

	stmt, err := s.db.Prepare("INSERT INTO user (name, age) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("InsertUser: prepare: %w", err)
	}
	defer stmt.Close()

	result, err := stmt.Exec(name, age)
	if err != nil {
		return 0, fmt.Errorf("InsertUser: exec: %w", err)
	}

	lastID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertUser: last insert id: %w", err)
	}

	return lastID, nil
}

// ScanUsers walks the user table in id order and hands every row to emit.
// The mutex stays locked until the last emit returns.
func (s *SQLite) ScanUsers(emit func(types.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return fmt.Errorf("ScanUsers: %w", storage.ErrClosed)
	}

	return s.scan(func(u types.User) error {
		if err := emit(u); err != nil {
			return fmt.Errorf("ScanUsers: emit: %w", err)
		}
		return nil
	})
}

// ListUsers copies the whole table while locked and returns the copy
// once the lock is released, so callers can do slow I/O with the rows
// without stalling other connections.
func (s *SQLite) ListUsers() ([]types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, fmt.Errorf("ListUsers: %w", storage.ErrClosed)
	}

	users := make([]types.User, 0)
	err := s.scan(func(u types.User) error {
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}

	return users, nil
}

// Close closes the database. It does not wait for s.mu, so a client
// stalled inside ScanUsers cannot hold up process shutdown; database/sql
// takes care of connections still in use. A second call returns
// storage.ErrClosed.
func (s *SQLite) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return storage.ErrClosed
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	return nil
}

// scan runs the full-table query. Callers must hold s.mu.
func (s *SQLite) scan(fn func(types.User) error) error {
	// Explicit columns: SELECT * would silently break Scan's ordering if
	// a column is ever added.
	rows, err := s.db.Query("SELECT id, name, age FROM user ORDER BY id")
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u    types.User
			name sql.NullString
			age  sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &name, &age); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		// Rows written by other tools may carry NULLs; they read as "" / 0.
		u.Name = name.String
		u.Age = int(age.Int64)

		if err := fn(u); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows iteration: %w", err)
	}
	return nil
}
