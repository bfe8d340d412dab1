// Package storage defines the Storage interface — the contract the TCP
// server relies on to persist and read back users.
//
// WHY AN INTERFACE?
// ─────────────────
// The connection handler should not know which database it talks to.
// Depending only on this interface keeps the handler testable with a
// small in-memory stub and lets the SQLite backend stay swappable.
//
// CONCURRENCY CONTRACT
// ────────────────────
// Every implementation guards all of its operations with ONE exclusive
// lock. At most one insert, scan or list is in flight at any moment,
// no matter how many connections are being served.
package storage

import (
	"errors"

	"github.com/aanand-mishra/users-server/internal/types"
)

// ErrClosed is returned by every operation once Close has been called.
var ErrClosed = errors.New("storage: closed")

// Storage is the user store contract.
type Storage interface {
	// InsertUser appends a new user and returns the id the store assigned.
	// Ids are unique and strictly increasing for the lifetime of the store.
	InsertUser(name string, age int) (int64, error)

	// ScanUsers calls emit once per stored user, ordered by id, while the
	// store's exclusive lock is held. Every other store operation waits
	// until emit has been called for the last row, so emit must not block
	// for long. A non-nil error from emit stops the scan and is returned.
	ScanUsers(emit func(types.User) error) error

	// ListUsers copies every stored user inside the critical section and
	// returns the copy after the lock is released. Returns an empty slice
	// (not nil) when there are no users.
	ListUsers() ([]types.User, error)

	// Close releases the underlying database.
	Close() error
}
