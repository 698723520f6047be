// Package web renders the sign-in, sign-up, and profile pages on top of
// auth.Flow. Each browser is tied to a session through an opaque id cookie.
package web

import (
	"errors"
	"net/http"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

const (
	DefaultCookieName = "authweb_session"
	DefaultCookieTTL  = 12 * time.Hour
)

type Routes struct {
	Home          string
	Login         string
	SignUp        string
	Confirm       string
	Resend        string
	Logout        string
	Profile       string
	DeleteAccount string
}

type Views struct {
	Home    string
	Login   string
	SignUp  string
	Profile string
	Error   string
}

// CookieConfig controls the session id cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

type Controller struct {
	Debug        bool
	Logger       auth.Logger
	Routes       *Routes
	Views        *Views
	Cookie       CookieConfig
	CSRF         *CSRF
	ErrorHandler router.ErrorHandler

	flow    *auth.Flow
	backend auth.SessionBackend
	newID   func() string
}

type ControllerOption func(*Controller) *Controller

func WithLogger(logger auth.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithCookie(cfg CookieConfig) ControllerOption {
	return func(c *Controller) *Controller {
		if cfg.Name != "" {
			c.Cookie.Name = cfg.Name
		}
		if cfg.TTL > 0 {
			c.Cookie.TTL = cfg.TTL
		}
		c.Cookie.Secure = cfg.Secure
		return c
	}
}

// WithCSRF requires a session bound token on every form post.
func WithCSRF(csrf *CSRF) ControllerOption {
	return func(c *Controller) *Controller {
		c.CSRF = csrf
		return c
	}
}

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

// NewController panics when flow or backend is nil.
func NewController(flow *auth.Flow, backend auth.SessionBackend, opts ...ControllerOption) *Controller {
	if flow == nil {
		panic("web: flow is required")
	}
	if backend == nil {
		panic("web: session backend is required")
	}

	c := &Controller{
		Logger: auth.DefaultLogger(),
		Routes: &Routes{
			Home:          "/",
			Login:         "/login",
			SignUp:        "/signup",
			Confirm:       "/signup/confirm",
			Resend:        "/signup/resend",
			Logout:        "/logout",
			Profile:       "/me",
			DeleteAccount: "/account/delete",
		},
		Views: &Views{
			Home:    "home",
			Login:   "login",
			SignUp:  "signup",
			Profile: "profile",
			Error:   "error",
		},
		Cookie: CookieConfig{
			Name: DefaultCookieName,
			TTL:  DefaultCookieTTL,
		},
		flow:    flow,
		backend: backend,
		newID:   uuid.NewString,
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.defaultErrHandler
	}

	return c
}

// RegisterRoutes mounts the controller handlers on app.
func RegisterRoutes[T any](app router.Router[T], c *Controller) {
	app.Get(c.Routes.Home, c.Home).SetName("home.get")

	app.Get(c.Routes.Login, c.LoginShow).SetName("login.get")
	app.Post(c.Routes.Login, c.LoginPost).SetName("login.post")

	app.Get(c.Routes.SignUp, c.SignUpShow).SetName("signup.get")
	app.Post(c.Routes.SignUp, c.SignUpPost).SetName("signup.post")
	app.Post(c.Routes.Confirm, c.ConfirmPost).SetName("signup-confirm.post")
	app.Post(c.Routes.Resend, c.ResendPost).SetName("signup-resend.post")

	app.Get(c.Routes.Logout, c.Logout).SetName("logout.get")
	app.Get(c.Routes.Profile, c.Profile).SetName("profile.get")
	app.Post(c.Routes.DeleteAccount, c.DeleteAccount).SetName("account-delete.post")
}

func (c *Controller) Home(ctx router.Context) error {
	store := c.store(ctx)
	state, err := c.flow.State(ctx.Context(), store)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.render(ctx, store, c.Views.Home, state, nil, nil)
}

func (c *Controller) LoginShow(ctx router.Context) error {
	store := c.store(ctx)
	state, err := c.flow.State(ctx.Context(), store)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.render(ctx, store, c.Views.Login, state, nil, nil)
}

func (c *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginForm)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	store := c.store(ctx)
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, store, c.Views.Login, err)
	}

	state, outcome := c.flow.Login(ctx.Context(), store, payload.Username, payload.Password)
	c.debug("login", state, outcome)

	view := c.Views.Login
	if outcome.Success {
		view = c.Views.Home
	}
	return c.render(ctx, store, view, state, &outcome, nil)
}

func (c *Controller) SignUpShow(ctx router.Context) error {
	store := c.store(ctx)
	state, err := c.flow.State(ctx.Context(), store)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}
	return c.render(ctx, store, c.Views.SignUp, state, nil, nil)
}

func (c *Controller) SignUpPost(ctx router.Context) error {
	payload := new(SignUpForm)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	store := c.store(ctx)
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, store, c.Views.SignUp, err)
	}

	attrs := auth.Attributes{}
	if phone, _ := payload.PhoneE164(); phone != "" {
		attrs["phone_number"] = phone
	}

	state, outcome := c.flow.SignUpWithAttributes(ctx.Context(), store, payload.Username, payload.Password, attrs)
	c.debug("signup", state, outcome)

	return c.render(ctx, store, c.Views.SignUp, state, &outcome, nil)
}

func (c *Controller) ConfirmPost(ctx router.Context) error {
	payload := new(ConfirmForm)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	store := c.store(ctx)
	if err := payload.Validate(); err != nil {
		return c.invalid(ctx, store, c.Views.SignUp, err)
	}

	state, outcome := c.flow.ConfirmSignUp(ctx.Context(), store, payload.Code)
	c.debug("confirm", state, outcome)

	view := c.Views.SignUp
	if outcome.Success {
		view = c.Views.Login
	}
	return c.render(ctx, store, view, state, &outcome, nil)
}

func (c *Controller) ResendPost(ctx router.Context) error {
	store := c.store(ctx)
	state, outcome := c.flow.ResendConfirmationCode(ctx.Context(), store)
	c.debug("resend", state, outcome)

	return c.render(ctx, store, c.Views.SignUp, state, &outcome, nil)
}

func (c *Controller) Logout(ctx router.Context) error {
	store := c.store(ctx)
	state, outcome := c.flow.Logout(ctx.Context(), store)
	c.debug("logout", state, outcome)

	c.cookieDel(ctx)
	return c.render(ctx, store, c.Views.Home, state, &outcome, nil)
}

func (c *Controller) Profile(ctx router.Context) error {
	store := c.store(ctx)
	state, err := c.flow.State(ctx.Context(), store)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	record, outcome := c.flow.LookupUser(ctx.Context(), store)
	if !outcome.Success {
		return c.render(ctx, store, c.Views.Profile, state, &outcome, nil)
	}

	return c.render(ctx, store, c.Views.Profile, state, nil, router.ViewContext{
		"user": router.ViewContext{
			"username":   record.Username,
			"email":      record.Email(),
			"enabled":    record.Enabled,
			"status":     record.Status,
			"attributes": record.Attributes,
			"created_at": record.CreatedAt,
		},
	})
}

func (c *Controller) DeleteAccount(ctx router.Context) error {
	store := c.store(ctx)
	state, outcome := c.flow.DeleteAccount(ctx.Context(), store)
	c.debug("delete", state, outcome)

	if !outcome.Success {
		return c.render(ctx, store, c.Views.Profile, state, &outcome, nil)
	}

	c.cookieDel(ctx)
	return c.render(ctx, store, c.Views.Home, state, &outcome, nil)
}

// store returns the session store for the request, issuing a new session id
// cookie when the request carries none.
func (c *Controller) store(ctx router.Context) *auth.SessionStore {
	id := ctx.Cookies(c.Cookie.Name)
	if _, err := uuid.Parse(id); err != nil {
		id = c.newID()
	}

	// refresh on every request so active sessions do not expire
	ctx.Cookie(&router.Cookie{
		Name:     c.Cookie.Name,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(c.Cookie.TTL),
		HTTPOnly: true,
		Secure:   c.Cookie.Secure,
		SameSite: "Lax",
	})

	return auth.NewSessionStore(c.backend, id)
}

func (c *Controller) cookieDel(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     c.Cookie.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   c.Cookie.Secure,
		SameSite: "Lax",
	})
}

func (c *Controller) invalid(ctx router.Context, store *auth.SessionStore, view string, err error) error {
	state, serr := c.flow.State(ctx.Context(), store)
	if serr != nil {
		return c.ErrorHandler(ctx, serr)
	}

	return c.render(ctx, store, view, state, nil, router.ViewContext{
		"validation": err,
	})
}

func (c *Controller) render(ctx router.Context, store *auth.SessionStore, view string, state auth.SessionState, outcome *auth.AuthOutcome, extra router.ViewContext) error {
	data := router.ViewContext{
		"session": sessionView(state),
		"routes":  c.Routes,
		"outcome": nil,
	}

	if c.CSRF != nil {
		data["csrf_field"] = c.CSRF.Field
		data["csrf_token"] = c.CSRF.Token(store.ID())
	}

	if outcome != nil {
		data["outcome"] = router.ViewContext{
			"success":    outcome.Success,
			"message":    outcome.Message,
			"error_kind": string(outcome.ErrorKind),
		}
	}

	for k, v := range extra {
		data[k] = v
	}

	return ctx.Render(view, data)
}

func (c *Controller) debug(op string, state auth.SessionState, outcome auth.AuthOutcome) {
	if !c.Debug {
		return
	}
	c.Logger.Debug("%s outcome: %s session: %s", op,
		print.MaybePrettyJSON(outcome),
		print.MaybePrettyJSON(sessionView(state)),
	)
}

func (c *Controller) defaultErrHandler(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !errors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	c.Logger.Error("request failed: %s: %v", richErr.Category, err)

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	return ctx.Status(code).Render(c.Views.Error, router.ViewContext{
		"message": richErr.Message,
	})
}

// sessionView is the template-safe projection of a session. Tokens are never
// exposed to views.
func sessionView(state auth.SessionState) router.ViewContext {
	state = state.Normalize()
	return router.ViewContext{
		"phase":         string(state.Phase),
		"username":      state.Username,
		"verified":      state.Verified,
		"authenticated": state.IsAuthenticated(),
		"pending":       state.IsPendingVerification(),
	}
}
