package auth_test

import (
	"context"
	"errors"
	"testing"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreGetDefaultsToEmpty(t *testing.T) {
	store := auth.NewSessionStore(newMapBackend(), "sid-1")
	assert.Equal(t, "sid-1", store.ID())

	state, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, auth.EmptySession(), state)
}

func TestSessionStoreReadYourWrites(t *testing.T) {
	ctx := context.Background()
	backend := newMapBackend()
	store := auth.NewSessionStore(backend, "sid-1")

	require.NoError(t, store.Set(ctx, pendingState()))
	state, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, pendingState(), state)

	require.NoError(t, store.Clear(ctx))
	assert.False(t, backend.has("sid-1"))
	state, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.EmptySession(), state)
}

func TestSessionStoreSetRejectsInvalidState(t *testing.T) {
	backend := &MockSessionBackend{}
	store := auth.NewSessionStore(backend, "sid-1")

	err := store.Set(context.Background(), auth.SessionState{Phase: auth.PhaseAuthenticated, Username: "a@b.com"})
	assert.ErrorIs(t, err, auth.ErrInvalidSessionState)
	backend.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionStoreGetReportsCorruptState(t *testing.T) {
	backend := &MockSessionBackend{}
	backend.On("Load", mock.Anything, "sid-1").
		Return(auth.SessionState{Phase: auth.PhaseUnauthenticated, AccessToken: "A"}, true, nil).Once()

	store := auth.NewSessionStore(backend, "sid-1")
	state, err := store.Get(context.Background())
	assert.ErrorIs(t, err, auth.ErrInvalidSessionState)
	assert.Equal(t, auth.EmptySession(), state)
}

func TestSessionStoreWrapsBackendErrors(t *testing.T) {
	cause := errors.New("connection refused")
	backend := &MockSessionBackend{}
	backend.On("Load", mock.Anything, "sid-1").Return(auth.SessionState{}, false, cause).Once()
	backend.On("Save", mock.Anything, "sid-1", pendingState()).Return(cause).Once()
	backend.On("Delete", mock.Anything, "sid-1").Return(cause).Once()

	store := auth.NewSessionStore(backend, "sid-1")
	ctx := context.Background()

	_, err := store.Get(ctx)
	assert.Error(t, err)
	assert.Error(t, store.Set(ctx, pendingState()))
	assert.Error(t, store.Clear(ctx))
	backend.AssertExpectations(t)
}
