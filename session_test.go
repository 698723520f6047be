package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/stretchr/testify/assert"
)

func TestSessionStateValidate(t *testing.T) {
	tests := []struct {
		name  string
		state auth.SessionState
		valid bool
	}{
		{name: "zero value", state: auth.SessionState{}, valid: true},
		{name: "empty", state: auth.EmptySession(), valid: true},
		{name: "pending", state: pendingState(), valid: true},
		{name: "verified", state: verifiedState(), valid: true},
		{name: "authenticated", state: authenticatedState(), valid: true},
		{
			name:  "unknown phase",
			state: auth.SessionState{Phase: "locked"},
		},
		{
			name:  "authenticated missing refresh token",
			state: auth.SessionState{Phase: auth.PhaseAuthenticated, Username: "a@b.com", AccessToken: "A", IDToken: "I"},
		},
		{
			name:  "authenticated without username",
			state: auth.SessionState{Phase: auth.PhaseAuthenticated, AccessToken: "A", IDToken: "I", RefreshToken: "R"},
		},
		{
			name:  "pending with token",
			state: auth.SessionState{Phase: auth.PhasePendingVerification, Username: "a@b.com", AccessToken: "A"},
		},
		{
			name:  "pending without username",
			state: auth.SessionState{Phase: auth.PhasePendingVerification},
		},
		{
			name:  "unauthenticated with token",
			state: auth.SessionState{Phase: auth.PhaseUnauthenticated, AccessToken: "A"},
		},
		{
			name:  "username retained without confirmation",
			state: auth.SessionState{Phase: auth.PhaseUnauthenticated, Username: "a@b.com"},
		},
		{
			name:  "verified without username",
			state: auth.SessionState{Phase: auth.PhaseUnauthenticated, Verified: true},
		},
		{
			name: "verified authenticated",
			state: auth.SessionState{
				Phase: auth.PhaseAuthenticated, Username: "a@b.com",
				AccessToken: "A", IDToken: "I", RefreshToken: "R", Verified: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, auth.ErrInvalidSessionState)
		})
	}
}

func TestSessionStateHelpers(t *testing.T) {
	assert.True(t, auth.SessionState{}.IsEmpty())
	assert.False(t, verifiedState().IsEmpty())
	assert.True(t, authenticatedState().IsAuthenticated())
	assert.True(t, pendingState().IsPendingVerification())
	assert.Equal(t, auth.PhaseUnauthenticated, auth.SessionState{}.Normalize().Phase)
	assert.Equal(t, fullTokens, authenticatedState().Tokens())
}
