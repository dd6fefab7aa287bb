package session

import (
	"context"
	"errors"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrStoreClosed          = errors.New("store is closed")
)

// Store is the session table the Manager keeps client state in. The
// broker holds sessions only for the life of the process; a Store is a
// lookup structure, not durable storage.
type Store interface {
	// Save stores or replaces the session under its client ID.
	Save(ctx context.Context, session *Session) error

	// Load returns the session for clientID, or ErrSessionNotFound.
	Load(ctx context.Context, clientID string) (*Session, error)

	// Delete removes clientID's session; absent is not an error.
	Delete(ctx context.Context, clientID string) error

	// Exists reports whether a session is stored for clientID.
	Exists(ctx context.Context, clientID string) (bool, error)

	// List returns every stored client ID.
	List(ctx context.Context) ([]string, error)

	// Close releases the store; every later call fails ErrStoreClosed.
	Close() error
}
