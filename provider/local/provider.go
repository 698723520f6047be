// Package local is a self-hosted auth.IdentityProvider for development and
// tests. Users live in a bun table, passwords and confirmation codes are
// bcrypt hashed, and tokens are HS256 JWTs. It reports failures with the same
// codes a Cognito user pool uses.
package local

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-auth-frontend"
	"github.com/goliatone/go-auth-frontend/logging"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	ProviderName     = "local"
	DefaultCodeTTL   = 24 * time.Hour
	DefaultTokenTTL  = time.Hour
	MinSigningKeyLen = 16
)

// CodeSender delivers confirmation codes.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// CodeSenderFunc adapts a function to CodeSender.
type CodeSenderFunc func(ctx context.Context, email, code string) error

func (f CodeSenderFunc) SendCode(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

type loggerCodeSender struct {
	logger auth.Logger
}

func (s loggerCodeSender) SendCode(_ context.Context, email, code string) error {
	s.logger.Info("confirmation code for %s: %s", logging.MaskEmail(email), code)
	return nil
}

// IdentityProvider implements auth.IdentityProvider over the local_users table.
type IdentityProvider struct {
	db         *bun.DB
	users      Users
	tokens     *TokenIssuer
	sender     CodeSender
	logger     auth.Logger
	bcryptCost int
	codeTTL    time.Duration
	tokenTTL   time.Duration
	issuer     string
	now        func() time.Time
}

var _ auth.IdentityProvider = (*IdentityProvider)(nil)

type Option func(*IdentityProvider)

func WithLogger(logger auth.Logger) Option {
	return func(p *IdentityProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithCodeSender sets how confirmation codes are delivered. The default
// writes them to the logger.
func WithCodeSender(sender CodeSender) Option {
	return func(p *IdentityProvider) {
		p.sender = sender
	}
}

func WithBcryptCost(cost int) Option {
	return func(p *IdentityProvider) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.bcryptCost = cost
		}
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(p *IdentityProvider) {
		if ttl > 0 {
			p.codeTTL = ttl
		}
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(p *IdentityProvider) {
		if ttl > 0 {
			p.tokenTTL = ttl
		}
	}
}

func WithIssuer(issuer string) Option {
	return func(p *IdentityProvider) {
		p.issuer = issuer
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *IdentityProvider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewIdentityProvider returns a provider storing users in db. The table must
// exist, see EnsureSchema.
func NewIdentityProvider(db *bun.DB, signingKey []byte, opts ...Option) (*IdentityProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}
	if len(signingKey) < MinSigningKeyLen {
		return nil, fmt.Errorf("local provider: signing key must be at least %d bytes", MinSigningKeyLen)
	}

	p := &IdentityProvider{
		db:         db,
		users:      NewUsersRepository(db),
		logger:     auth.DefaultLogger(),
		bcryptCost: bcrypt.DefaultCost,
		codeTTL:    DefaultCodeTTL,
		tokenTTL:   DefaultTokenTTL,
		issuer:     ProviderName,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.sender == nil {
		p.sender = loggerCodeSender{logger: p.logger}
	}

	p.tokens = NewTokenIssuer(signingKey, p.issuer, p.tokenTTL)
	p.tokens.now = p.now

	return p, nil
}

// Tokens returns the issuer, e.g. to verify tokens in tests.
func (p *IdentityProvider) Tokens() *TokenIssuer {
	return p.tokens
}

func (p *IdentityProvider) Authenticate(ctx context.Context, username, password string) (auth.AuthResult, error) {
	const op = "InitiateAuth"

	user, err := p.lookup(ctx, op, username)
	if err != nil {
		return auth.AuthResult{}, err
	}

	if err := compareSecret(password, user.PasswordHash); err != nil {
		if errors.Is(err, errSecretMismatch) {
			return auth.AuthResult{}, providerError(op, auth.ErrNotAuthorized, "NotAuthorizedException", "Incorrect username or password.", err)
		}
		return auth.AuthResult{}, failure(op, err)
	}

	if !user.Enabled {
		return auth.AuthResult{}, providerError(op, auth.ErrNotAuthorized, "NotAuthorizedException", "User is disabled.", nil)
	}

	if !user.Confirmed {
		return auth.AuthResult{}, providerError(op, nil, "UserNotConfirmedException", "User is not confirmed.", nil)
	}

	access, id, refresh, err := p.tokens.Issue(user)
	if err != nil {
		return auth.AuthResult{}, failure(op, err)
	}

	now := p.now()
	user.LoggedInAt = &now
	if _, err := p.users.Save(ctx, user); err != nil {
		p.logger.Warn("failed to track login: %v", err)
	}

	return auth.AuthResult{AccessToken: access, IDToken: id, RefreshToken: refresh}, nil
}

func (p *IdentityProvider) LookupUser(ctx context.Context, username string) (auth.UserRecord, error) {
	user, err := p.lookup(ctx, "AdminGetUser", username)
	if err != nil {
		return auth.UserRecord{}, err
	}

	attrs := make(auth.Attributes, len(user.Attributes)+2)
	for k, v := range user.Attributes {
		attrs[k] = v
	}
	attrs["email"] = user.Email
	attrs["email_verified"] = fmt.Sprintf("%t", user.Confirmed)

	return auth.UserRecord{
		Username:   user.Username,
		Attributes: attrs,
		Enabled:    user.Enabled,
		Status:     user.Status(),
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}, nil
}

func (p *IdentityProvider) DeleteUser(ctx context.Context, username string) error {
	const op = "AdminDeleteUser"

	if err := p.users.DeleteByUsername(ctx, username); err != nil {
		if repository.IsRecordNotFound(err) {
			return providerError(op, auth.ErrUserNotFound, "UserNotFoundException", "User does not exist.", err)
		}
		return failure(op, err)
	}
	return nil
}

func (p *IdentityProvider) Register(ctx context.Context, username, password string, attributes auth.Attributes) error {
	const op = "SignUp"

	if err := validation.Validate(password, passwordRules...); err != nil {
		return providerError(op, nil, "InvalidPasswordException", "Password did not conform with policy: "+err.Error(), err)
	}

	_, err := p.users.GetByUsername(ctx, username)
	if err == nil {
		return providerError(op, auth.ErrUsernameExists, "UsernameExistsException", "User already exists", nil)
	}
	if !repository.IsRecordNotFound(err) {
		return failure(op, err)
	}

	hash, err := hashSecret(password, p.bcryptCost)
	if err != nil {
		return failure(op, err)
	}

	email := attributes["email"]
	if email == "" {
		email = username
	}

	stored := make(map[string]string, len(attributes))
	for k, v := range attributes {
		if k != "email" {
			stored[k] = v
		}
	}

	user := &User{
		ID:           p.userID(username),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Attributes:   stored,
		Enabled:      true,
	}

	code, err := p.assignCode(user)
	if err != nil {
		return failure(op, err)
	}

	// The row only commits once the code went out, so a failed delivery
	// leaves the username free for another attempt.
	err = p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := p.users.CreateTx(ctx, tx, user)
		if err != nil {
			return err
		}
		user = created
		return p.sender.SendCode(ctx, email, code)
	})
	if err != nil {
		return failure(op, err)
	}

	p.logger.Debug("registered local user: %s", print.MaybePrettyJSON(user))
	return nil
}

func (p *IdentityProvider) ConfirmRegistration(ctx context.Context, username, code string) error {
	const op = "ConfirmSignUp"

	user, err := p.lookup(ctx, op, username)
	if err != nil {
		return err
	}

	if user.Confirmed {
		return providerError(op, auth.ErrNotAuthorized, "NotAuthorizedException", "User cannot be confirmed. Current status is CONFIRMED", nil)
	}

	if user.CodeExpiresAt == nil || !p.now().Before(*user.CodeExpiresAt) {
		return providerError(op, nil, "ExpiredCodeException", "Invalid code provided, please request a code again.", nil)
	}

	if err := compareSecret(code, user.CodeHash); err != nil {
		if errors.Is(err, errSecretMismatch) {
			return providerError(op, auth.ErrCodeMismatch, "CodeMismatchException", "Invalid verification code provided, please try again.", err)
		}
		return failure(op, err)
	}

	user.Confirmed = true
	user.CodeHash = ""
	user.CodeExpiresAt = nil
	if _, err := p.users.Save(ctx, user); err != nil {
		return failure(op, err)
	}
	return nil
}

func (p *IdentityProvider) ResendCode(ctx context.Context, username string) error {
	const op = "ResendConfirmationCode"

	user, err := p.lookup(ctx, op, username)
	if err != nil {
		return err
	}

	if user.Confirmed {
		return providerError(op, nil, "InvalidParameterException", "User is already confirmed.", nil)
	}

	code, err := p.assignCode(user)
	if err != nil {
		return failure(op, err)
	}

	if _, err := p.users.Save(ctx, user); err != nil {
		return failure(op, err)
	}

	if err := p.sender.SendCode(ctx, user.Email, code); err != nil {
		return failure(op, err)
	}
	return nil
}

func (p *IdentityProvider) lookup(ctx context.Context, op, username string) (*User, error) {
	user, err := p.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, providerError(op, auth.ErrUserNotFound, "UserNotFoundException", "User does not exist.", err)
		}
		return nil, failure(op, err)
	}
	return user, nil
}

func (p *IdentityProvider) assignCode(user *User) (string, error) {
	code, err := newConfirmationCode()
	if err != nil {
		return "", err
	}

	hash, err := hashSecret(code, p.bcryptCost)
	if err != nil {
		return "", err
	}

	expiresAt := p.now().Add(p.codeTTL)
	user.CodeHash = hash
	user.CodeExpiresAt = &expiresAt
	return code, nil
}

func (p *IdentityProvider) userID(username string) uuid.UUID {
	if id, err := hashid.NewUUID(username); err == nil {
		return id
	}
	return uuid.New()
}

func providerError(op string, reason error, code, description string, cause error) *auth.ProviderError {
	perr := auth.NewProviderError(ProviderName, op, reason, cause)
	perr.Code = code
	perr.Description = description
	return perr
}

func failure(op string, err error) *auth.ProviderError {
	return auth.NewProviderError(ProviderName, op, nil, err)
}
