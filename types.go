package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Attributes are provider-side user attributes, e.g. "email" or "phone_number".
type Attributes map[string]string

// AuthResult holds the bearer tokens issued by a successful authentication.
type AuthResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
}

// Complete reports whether all three tokens are present.
func (r AuthResult) Complete() bool {
	return r.AccessToken != "" && r.IDToken != "" && r.RefreshToken != ""
}

// UserRecord is the provider's view of a registered user.
type UserRecord struct {
	Username   string
	Attributes Attributes
	Enabled    bool
	Status     string
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
}

// Email returns the "email" attribute, falling back to the username.
func (u UserRecord) Email() string {
	if email := u.Attributes["email"]; email != "" {
		return email
	}
	return u.Username
}

// IdentityProvider is the remote service that owns credentials and registration.
//
// Implementations should report classified failures as *ProviderError so the
// controller can map them with ClassifyError. Any other error is treated as
// ErrorKindUnknown.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (AuthResult, error)
	LookupUser(ctx context.Context, username string) (UserRecord, error)
	DeleteUser(ctx context.Context, username string) error
	Register(ctx context.Context, username, password string, attributes Attributes) error
	ConfirmRegistration(ctx context.Context, username, code string) error
	ResendCode(ctx context.Context, username string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
