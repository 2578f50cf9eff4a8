package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that a storage backend should implement.
// Backends: postgres and sqlite (relational, durable) and memory
// (process-lifetime, non-durable fallback).
type Driver interface {
	// GetDB returns the underlying database handle, or nil for the
	// in-memory backend.
	GetDB() *sql.DB
	Close() error

	// Ping is the connectivity probe used by the startup fallback decision
	// and by the health endpoint.
	Ping(ctx context.Context) error

	// IsInitialized reports whether the backend schema exists. The
	// in-memory backend is always initialized.
	IsInitialized(ctx context.Context) (bool, error)

	// Session model related methods.
	CreateSession(ctx context.Context, create *Session) (*Session, error)
	GetSession(ctx context.Context, find *FindSession) (*Session, error)
	ListSessions(ctx context.Context, find *FindSession) ([]*Session, error)
	UpdateSession(ctx context.Context, update *UpdateSession) (*Session, error)
	DeleteSession(ctx context.Context, delete *DeleteSession) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	CountMessages(ctx context.Context, find *FindMessage) (int, error)
	DeleteMessage(ctx context.Context, delete *DeleteMessage) error
}
