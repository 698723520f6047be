package auth

import (
	"fmt"
)

// Phase is the authentication lifecycle stage of a session.
type Phase string

const (
	PhaseUnauthenticated     Phase = "unauthenticated"
	PhasePendingVerification Phase = "pending_verification"
	PhaseAuthenticated       Phase = "authenticated"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseUnauthenticated, PhasePendingVerification, PhaseAuthenticated:
		return true
	}
	return false
}

func (p Phase) String() string {
	return string(p)
}

// SessionState is the authentication state of one user session.
//
// Tokens are present if and only if Phase is PhaseAuthenticated. Username is
// present while pending verification or authenticated, and after a successful
// confirmation, where the session is back to PhaseUnauthenticated with
// Verified set so the login form can be pre-filled.
type SessionState struct {
	Phase        Phase  `json:"phase"`
	Username     string `json:"username,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Verified     bool   `json:"verified,omitempty"`
}

// EmptySession returns the initial Unauthenticated state.
func EmptySession() SessionState {
	return SessionState{Phase: PhaseUnauthenticated}
}

// Normalize fills in the zero Phase so a zero value behaves as EmptySession.
func (s SessionState) Normalize() SessionState {
	if s.Phase == "" {
		s.Phase = PhaseUnauthenticated
	}
	return s
}

// IsEmpty reports whether s is the initial Unauthenticated state.
func (s SessionState) IsEmpty() bool {
	return s.Normalize() == EmptySession()
}

// IsAuthenticated reports whether the session holds issued tokens.
func (s SessionState) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated
}

// IsPendingVerification reports whether a sign-up awaits its confirmation code.
func (s SessionState) IsPendingVerification() bool {
	return s.Phase == PhasePendingVerification
}

// Tokens returns the issued tokens.
func (s SessionState) Tokens() AuthResult {
	return AuthResult{
		AccessToken:  s.AccessToken,
		IDToken:      s.IDToken,
		RefreshToken: s.RefreshToken,
	}
}

func (s SessionState) hasAnyToken() bool {
	return s.AccessToken != "" || s.IDToken != "" || s.RefreshToken != ""
}

// Validate checks the SessionState invariants.
func (s SessionState) Validate() error {
	s = s.Normalize()
	if !s.Phase.Valid() {
		return s.invalid("unknown phase")
	}

	switch s.Phase {
	case PhaseAuthenticated:
		if !s.Tokens().Complete() {
			return s.invalid("authenticated session is missing tokens")
		}
		if s.Username == "" {
			return s.invalid("authenticated session has no username")
		}
		if s.Verified {
			return s.invalid("verified flag set on authenticated session")
		}
	case PhasePendingVerification:
		if s.hasAnyToken() {
			return s.invalid("tokens set before authentication")
		}
		if s.Username == "" {
			return s.invalid("pending verification without username")
		}
		if s.Verified {
			return s.invalid("verified flag set while pending verification")
		}
	case PhaseUnauthenticated:
		if s.hasAnyToken() {
			return s.invalid("tokens set before authentication")
		}
		if s.Verified != (s.Username != "") {
			return s.invalid("username retained without confirmation")
		}
	}

	return nil
}

func (s SessionState) invalid(reason string) error {
	return fmt.Errorf("%w: %s (phase=%s)", ErrInvalidSessionState, reason, s.Phase)
}
