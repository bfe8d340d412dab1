// Package types holds the shared data structures used across the server.
// Keeping them in one place prevents import cycles: the protocol, storage
// and server packages can all import types without depending on each other.
package types

// User is the only record this server persists.
//
// ID is assigned by the store (AUTOINCREMENT) and never changes afterwards.
// Name and Age come straight from the client and are stored as given:
// there is no uniqueness constraint on Name and no range check on Age.
type User struct {
	ID   int64
	Name string
	Age  int
}
