package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates an unknown session ID.
var ErrNotFound = errors.New("session: not found")

// ErrConflict indicates an optimistic-concurrency failure: the stored version
// moved since the caller loaded the document. Load-mutate-save loops retry on
// this.
var ErrConflict = errors.New("session: version conflict")

// Repository persists session documents. Put performs a versioned write: it
// succeeds only when the stored version still equals the document's version
// at load time, then bumps it.
type Repository interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Put(ctx context.Context, sess *Session) error
}

// InMemoryRepository is a Repository for tests and local development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{sessions: make(map[string]Session)}
}

// Get returns a copy of the stored session.
func (r *InMemoryRepository) Get(_ context.Context, sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := stored
	return &copied, nil
}

// Put writes the session if the stored version matches, then increments it.
func (r *InMemoryRepository) Put(_ context.Context, sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sessions[sess.SessionID]
	if exists && stored.Version != sess.Version {
		return ErrConflict
	}
	if !exists && sess.Version != 0 {
		return ErrConflict
	}

	sess.Version++
	r.sessions[sess.SessionID] = *sess
	return nil
}
