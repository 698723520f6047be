package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"github.com/goliatone/go-router"
)

var (
	ErrCSRFMissing  = errors.New("CSRF token missing")
	ErrCSRFMismatch = errors.New("CSRF token mismatch")
)

const (
	DefaultCSRFField  = "_token"
	DefaultCSRFHeader = "X-CSRF-Token"
	MinCSRFKeyLen     = 32
)

// CSRF issues form tokens derived from the session id cookie. A token is
// only valid for the session it was rendered in, so no server state is kept.
type CSRF struct {
	Field        string
	Header       string
	CookieName   string
	SafeMethods  []string
	ErrorHandler router.ErrorHandler

	key []byte
}

// NewCSRF panics when key is shorter than MinCSRFKeyLen.
func NewCSRF(key []byte, cookieName string) *CSRF {
	if len(key) < MinCSRFKeyLen {
		panic(fmt.Errorf("csrf: secure key must be at least %d bytes, got %d", MinCSRFKeyLen, len(key)))
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return &CSRF{
		Field:        DefaultCSRFField,
		Header:       DefaultCSRFHeader,
		CookieName:   cookieName,
		SafeMethods:  []string{"GET", "HEAD", "OPTIONS", "TRACE"},
		ErrorHandler: csrfErrorHandler,
		key:          key,
	}
}

// Token returns the form token for sessionID.
func (c *CSRF) Token(sessionID string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte("csrf:" + sessionID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether token was issued for sessionID.
func (c *CSRF) Verify(sessionID, token string) bool {
	if sessionID == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(c.Token(sessionID)), []byte(token))
}

// Middleware rejects unsafe requests without a token matching the session
// cookie.
func (c *CSRF) Middleware() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if slices.Contains(c.SafeMethods, ctx.Method()) {
				return ctx.Next()
			}

			token := ctx.FormValue(c.Field)
			if token == "" {
				token = ctx.GetString(c.Header, "")
			}
			if token == "" {
				return c.ErrorHandler(ctx, ErrCSRFMissing)
			}

			if !c.Verify(ctx.Cookies(c.CookieName), token) {
				return c.ErrorHandler(ctx, ErrCSRFMismatch)
			}

			return ctx.Next()
		}
	}
}

func csrfErrorHandler(ctx router.Context, err error) error {
	switch {
	case errors.Is(err, ErrCSRFMissing):
		return ctx.Status(router.StatusBadRequest).SendString(err.Error())
	case errors.Is(err, ErrCSRFMismatch):
		return ctx.Status(router.StatusForbidden).SendString(err.Error())
	default:
		return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
	}
}
