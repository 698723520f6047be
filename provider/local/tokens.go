package local

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	TokenUseAccess = "access"
	TokenUseID     = "id"
)

// Claims are the claims of locally issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	TokenUse      string `json:"token_use"`
	Username      string `json:"username,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// TokenIssuer signs HS256 access and id tokens.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

func NewTokenIssuer(signingKey []byte, issuer string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Issue returns access, id, and refresh tokens for user. The refresh token
// is opaque.
func (ti *TokenIssuer) Issue(user *User) (access, id, refresh string, err error) {
	now := ti.now()
	registered := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ti.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		}
	}

	access, err = ti.sign(&Claims{
		RegisteredClaims: registered(),
		TokenUse:         TokenUseAccess,
		Username:         user.Username,
	})
	if err != nil {
		return "", "", "", err
	}

	id, err = ti.sign(&Claims{
		RegisteredClaims: registered(),
		TokenUse:         TokenUseID,
		Username:         user.Username,
		Email:            user.Email,
		EmailVerified:    user.Confirmed,
	})
	if err != nil {
		return "", "", "", err
	}

	return access, id, uuid.NewString(), nil
}

func (ti *TokenIssuer) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Parse verifies a token issued by ti.
func (ti *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.issuer != "" {
		opts = append(opts, jwt.WithIssuer(ti.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return ti.signingKey, nil
	}, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid token")
	}
	return claims, nil
}
