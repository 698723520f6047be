package web

import (
	"bytes"
	"context"
	"testing"

	auth "github.com/goliatone/go-auth-frontend"
	"github.com/goliatone/go-auth-frontend/sessionstore"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSessionID = "5d2c3a6e-8f1b-4c57-9a43-0e7b1f2d9c11"

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, username, password string) (auth.AuthResult, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(auth.AuthResult), args.Error(1)
}

func (m *MockIdentityProvider) LookupUser(ctx context.Context, username string) (auth.UserRecord, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(auth.UserRecord), args.Error(1)
}

func (m *MockIdentityProvider) DeleteUser(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockIdentityProvider) Register(ctx context.Context, username, password string, attributes auth.Attributes) error {
	return m.Called(ctx, username, password, attributes).Error(0)
}

func (m *MockIdentityProvider) ConfirmRegistration(ctx context.Context, username, code string) error {
	return m.Called(ctx, username, code).Error(0)
}

func (m *MockIdentityProvider) ResendCode(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

type testEnv struct {
	provider *MockIdentityProvider
	backend  *sessionstore.MemoryBackend
	ctrl     *Controller
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	provider := &MockIdentityProvider{}
	backend := sessionstore.NewMemoryBackend(0)
	flow := auth.NewFlow(auth.NewAuthController(provider))

	return &testEnv{
		provider: provider,
		backend:  backend,
		ctrl:     NewController(flow, backend),
	}
}

func (e *testEnv) seed(t *testing.T, state auth.SessionState) {
	t.Helper()
	require.NoError(t, e.backend.Save(context.Background(), testSessionID, state))
}

func (e *testEnv) session(t *testing.T) auth.SessionState {
	t.Helper()
	state, err := auth.NewSessionStore(e.backend, testSessionID).Get(context.Background())
	require.NoError(t, err)
	return state
}

func newRequest(t *testing.T) *router.MockContext {
	t.Helper()
	ctx := router.NewMockContext()
	ctx.CookiesM[DefaultCookieName] = testSessionID
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).Return()
	return ctx
}

func bindPayload[T any](ctx *router.MockContext, payload T) {
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(0).(*T)) = payload
	}).Return(nil)
}

func captureRender(ctx *router.MockContext, view string, into *router.ViewContext) {
	ctx.On("Render", view, mock.Anything).Run(func(args mock.Arguments) {
		*into = args.Get(1).(router.ViewContext)
	}).Return(nil).Once()
}

func outcomeOf(t *testing.T, data router.ViewContext) router.ViewContext {
	t.Helper()
	outcome, ok := data["outcome"].(router.ViewContext)
	require.True(t, ok, "expected an outcome in the view")
	return outcome
}

func TestLoginPostSuccessRendersHome(t *testing.T) {
	env := newTestEnv(t)
	ctx := newRequest(t)

	env.provider.On("Authenticate", mock.Anything, "a@b.com", "secret").
		Return(auth.AuthResult{AccessToken: "A", IDToken: "I", RefreshToken: "R"}, nil).Once()

	bindPayload(ctx, LoginForm{Username: "a@b.com", Password: "secret"})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Home, &data)

	require.NoError(t, env.ctrl.LoginPost(ctx))

	outcome := outcomeOf(t, data)
	assert.Equal(t, true, outcome["success"])
	assert.Equal(t, auth.DefaultMessages().LoginSuccess, outcome["message"])

	session := data["session"].(router.ViewContext)
	assert.Equal(t, true, session["authenticated"])
	assert.Equal(t, "a@b.com", session["username"])
	assert.NotContains(t, session, "access_token")

	stored := env.session(t)
	assert.True(t, stored.IsAuthenticated())
	assert.Equal(t, "A", stored.AccessToken)

	ctx.AssertExpectations(t)
	env.provider.AssertExpectations(t)
}

func TestLoginPostFailureRendersLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := newRequest(t)

	env.provider.On("Authenticate", mock.Anything, "a@b.com", "wrong").
		Return(auth.AuthResult{}, auth.ErrNotAuthorized).Once()

	bindPayload(ctx, LoginForm{Username: "a@b.com", Password: "wrong"})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Login, &data)

	require.NoError(t, env.ctrl.LoginPost(ctx))

	outcome := outcomeOf(t, data)
	assert.Equal(t, false, outcome["success"])
	assert.Equal(t, string(auth.ErrorKindNotAuthorized), outcome["error_kind"])
	assert.True(t, env.session(t).IsEmpty())
}

func TestLoginPostMissingCredentialsSkipsProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := newRequest(t)

	bindPayload(ctx, LoginForm{})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Login, &data)

	require.NoError(t, env.ctrl.LoginPost(ctx))

	outcome := outcomeOf(t, data)
	assert.Equal(t, string(auth.ErrorKindInvalidInput), outcome["error_kind"])
	env.provider.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignUpPostNormalizesPhone(t *testing.T) {
	env := newTestEnv(t)
	ctx := newRequest(t)

	env.provider.On("Register", mock.Anything, "a@b.com", "password123", auth.Attributes{
		"email":        "a@b.com",
		"phone_number": "+14155552671",
	}).Return(nil).Once()

	bindPayload(ctx, SignUpForm{Username: "a@b.com", Password: "password123", Phone: "(415) 555-2671"})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.SignUp, &data)

	require.NoError(t, env.ctrl.SignUpPost(ctx))

	assert.Equal(t, true, outcomeOf(t, data)["success"])
	stored := env.session(t)
	assert.True(t, stored.IsPendingVerification())
	assert.Equal(t, "a@b.com", stored.Username)
	env.provider.AssertExpectations(t)
}

func TestSignUpPostRejectsInvalidPhone(t *testing.T) {
	env := newTestEnv(t)
	ctx := newRequest(t)

	bindPayload(ctx, SignUpForm{Username: "a@b.com", Password: "password123", Phone: "12"})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.SignUp, &data)

	require.NoError(t, env.ctrl.SignUpPost(ctx))

	assert.NotNil(t, data["validation"])
	assert.Nil(t, data["outcome"])
	env.provider.AssertNotCalled(t, "Register", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmPostSuccessRendersLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, auth.SessionState{Phase: auth.PhasePendingVerification, Username: "a@b.com"})
	ctx := newRequest(t)

	env.provider.On("ConfirmRegistration", mock.Anything, "a@b.com", "123456").Return(nil).Once()

	bindPayload(ctx, ConfirmForm{Code: "123456"})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Login, &data)

	require.NoError(t, env.ctrl.ConfirmPost(ctx))

	session := data["session"].(router.ViewContext)
	assert.Equal(t, "a@b.com", session["username"])
	assert.Equal(t, true, session["verified"])
	assert.Equal(t, false, session["authenticated"])
}

func TestConfirmPostWrongCodeStaysPending(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, auth.SessionState{Phase: auth.PhasePendingVerification, Username: "a@b.com"})
	ctx := newRequest(t)

	env.provider.On("ConfirmRegistration", mock.Anything, "a@b.com", "000000").
		Return(auth.ErrCodeMismatch).Once()

	bindPayload(ctx, ConfirmForm{Code: "000000"})

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.SignUp, &data)

	require.NoError(t, env.ctrl.ConfirmPost(ctx))

	assert.Equal(t, string(auth.ErrorKindInvalidCode), outcomeOf(t, data)["error_kind"])
	assert.True(t, env.session(t).IsPendingVerification())
}

func TestResendPostUsesPendingUsername(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, auth.SessionState{Phase: auth.PhasePendingVerification, Username: "a@b.com"})
	ctx := newRequest(t)

	env.provider.On("ResendCode", mock.Anything, "a@b.com").Return(nil).Once()

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.SignUp, &data)

	require.NoError(t, env.ctrl.ResendPost(ctx))
	assert.Equal(t, true, outcomeOf(t, data)["success"])
	env.provider.AssertExpectations(t)
}

func TestLogoutClearsSessionAndCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, auth.SessionState{
		Phase:        auth.PhaseAuthenticated,
		Username:     "a@b.com",
		AccessToken:  "A",
		IDToken:      "I",
		RefreshToken: "R",
	})

	ctx := router.NewMockContext()
	ctx.CookiesM[DefaultCookieName] = testSessionID
	ctx.On("Context").Return(context.Background())

	var cookies []*router.Cookie
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookies = append(cookies, args.Get(0).(*router.Cookie))
	}).Return()

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Home, &data)

	require.NoError(t, env.ctrl.Logout(ctx))

	assert.True(t, env.session(t).IsEmpty())
	assert.Equal(t, 0, env.backend.Len())
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]
	assert.Equal(t, DefaultCookieName, last.Name)
	assert.Empty(t, last.Value)
	assert.Equal(t, auth.DefaultMessages().LogoutSuccess, outcomeOf(t, data)["message"])
}

func TestProfileRequiresSignIn(t *testing.T) {
	env := newTestEnv(t)
	ctx := newRequest(t)

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Profile, &data)

	require.NoError(t, env.ctrl.Profile(ctx))

	assert.Equal(t, string(auth.ErrorKindInvalidState), outcomeOf(t, data)["error_kind"])
	assert.Nil(t, data["user"])
}

func TestProfileRendersUser(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, auth.SessionState{
		Phase:        auth.PhaseAuthenticated,
		Username:     "a@b.com",
		AccessToken:  "A",
		IDToken:      "I",
		RefreshToken: "R",
	})
	ctx := newRequest(t)

	env.provider.On("LookupUser", mock.Anything, "a@b.com").Return(auth.UserRecord{
		Username:   "a@b.com",
		Attributes: auth.Attributes{"email": "a@b.com"},
		Enabled:    true,
		Status:     "CONFIRMED",
	}, nil).Once()

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Profile, &data)

	require.NoError(t, env.ctrl.Profile(ctx))

	user := data["user"].(router.ViewContext)
	assert.Equal(t, "a@b.com", user["email"])
	assert.Equal(t, "CONFIRMED", user["status"])
}

func TestDeleteAccountClearsSession(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, auth.SessionState{
		Phase:        auth.PhaseAuthenticated,
		Username:     "a@b.com",
		AccessToken:  "A",
		IDToken:      "I",
		RefreshToken: "R",
	})
	ctx := newRequest(t)

	env.provider.On("DeleteUser", mock.Anything, "a@b.com").Return(nil).Once()

	var data router.ViewContext
	captureRender(ctx, env.ctrl.Views.Home, &data)

	require.NoError(t, env.ctrl.DeleteAccount(ctx))
	assert.True(t, env.session(t).IsEmpty())
	env.provider.AssertExpectations(t)
}

func TestStoreIssuesSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.newID = func() string { return testSessionID }

	ctx := router.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == DefaultCookieName &&
			c.Value == testSessionID &&
			c.HTTPOnly &&
			c.SameSite == "Lax"
	})).Return().Once()

	store := env.ctrl.store(ctx)
	assert.Equal(t, testSessionID, store.ID())
	ctx.AssertExpectations(t)
}

func TestStoreReplacesMalformedCookie(t *testing.T) {
	env := newTestEnv(t)
	env.ctrl.newID = func() string { return testSessionID }

	ctx := router.NewMockContext()
	ctx.CookiesM[DefaultCookieName] = "../../etc/passwd"
	ctx.On("Cookie", mock.Anything).Return()

	assert.Equal(t, testSessionID, env.ctrl.store(ctx).ID())
}

func TestNewControllerPanicsWithoutDependencies(t *testing.T) {
	flow := auth.NewFlow(auth.NewAuthController(&MockIdentityProvider{}))
	assert.Panics(t, func() { NewController(nil, sessionstore.NewMemoryBackend(0)) })
	assert.Panics(t, func() { NewController(flow, nil) })
}

func TestViewsLoadAndRender(t *testing.T) {
	engine := NewViewEngine(false)
	require.NoError(t, engine.Load())

	var buf bytes.Buffer
	err := engine.Render(&buf, "home", map[string]any{
		"routes":  &Routes{Home: "/", Login: "/login", SignUp: "/signup"},
		"session": sessionView(auth.SessionState{Phase: auth.PhaseUnauthenticated}),
		"outcome": router.ViewContext{"success": true, "message": "You have been logged out"},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "You have been logged out")
	assert.Contains(t, buf.String(), "/signup")
}
