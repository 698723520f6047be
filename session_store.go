package auth

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// SessionBackend persists SessionState values keyed by session id. Backends
// must be safe for concurrent use and read-your-writes for a single id.
type SessionBackend interface {
	// Load returns the stored state and whether one was found.
	Load(ctx context.Context, id string) (SessionState, bool, error)
	Save(ctx context.Context, id string, state SessionState) error
	Delete(ctx context.Context, id string) error
}

// SessionStore is the view of a single session over a SessionBackend.
type SessionStore struct {
	id      string
	backend SessionBackend
}

// NewSessionStore binds backend to session id.
func NewSessionStore(backend SessionBackend, id string) *SessionStore {
	if backend == nil {
		panic("auth: NewSessionStore requires a SessionBackend")
	}
	return &SessionStore{id: id, backend: backend}
}

// ID returns the session id.
func (s *SessionStore) ID() string {
	return s.id
}

// Get returns the current state. A session that was never written is
// EmptySession. A stored state that breaks the invariants is reported with
// ErrInvalidSessionState alongside EmptySession.
func (s *SessionStore) Get(ctx context.Context) (SessionState, error) {
	state, found, err := s.backend.Load(ctx, s.id)
	if err != nil {
		return EmptySession(), goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load session").
			WithMetadata(map[string]any{"session_id": s.id})
	}

	if !found {
		return EmptySession(), nil
	}

	state = state.Normalize()
	if err := state.Validate(); err != nil {
		return EmptySession(), fmt.Errorf("session %s: %w", s.id, err)
	}

	return state, nil
}

// Set replaces the stored state. Invalid states are refused.
func (s *SessionStore) Set(ctx context.Context, state SessionState) error {
	state = state.Normalize()
	if err := state.Validate(); err != nil {
		return err
	}

	if err := s.backend.Save(ctx, s.id, state); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to save session").
			WithMetadata(map[string]any{"session_id": s.id, "phase": state.Phase.String()})
	}
	return nil
}

// Clear removes the session record, so the next Get yields EmptySession.
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session").
			WithMetadata(map[string]any{"session_id": s.id})
	}
	return nil
}
