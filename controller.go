package auth

import (
	"context"
	"errors"
	"time"
)

// providerErrorKinds lists, per operation, which classified provider failures
// are reported as such. Anything else becomes ErrorKindUnknown.
var providerErrorKinds = map[Operation][]ErrorKind{
	OperationLogin:         {ErrorKindNotAuthorized, ErrorKindUserNotFound},
	OperationSignUp:        {ErrorKindDuplicateUser},
	OperationConfirmSignUp: {ErrorKindInvalidCode},
	OperationResendCode:    {},
	OperationLookupUser:    {ErrorKindUserNotFound},
	OperationDeleteAccount: {ErrorKindUserNotFound},
}

// AuthController drives the session state machine. Every operation takes the
// current SessionState and returns the next one together with an AuthOutcome;
// the controller holds no per-session data and never renders anything.
type AuthController struct {
	provider     IdentityProvider
	logger       Logger
	activitySink ActivitySink
	messages     Messages
	now          func() time.Time
}

// ControllerOption customizes an AuthController.
type ControllerOption func(*AuthController)

// WithLogger sets the controller logger.
func WithLogger(logger Logger) ControllerOption {
	return func(c *AuthController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish operation events.
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(c *AuthController) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithMessages overrides outcome messages. Empty fields keep their defaults.
func WithMessages(messages Messages) ControllerOption {
	return func(c *AuthController) {
		c.messages = messages.merge(DefaultMessages())
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ControllerOption {
	return func(c *AuthController) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewAuthController returns a controller backed by the given identity provider.
func NewAuthController(provider IdentityProvider, opts ...ControllerOption) *AuthController {
	if provider == nil {
		panic("auth: NewAuthController requires an IdentityProvider")
	}

	c := &AuthController{
		provider:     provider,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		messages:     DefaultMessages(),
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Messages returns the messages in use.
func (c *AuthController) Messages() Messages {
	return c.messages
}

// Login exchanges credentials for tokens. Empty credentials are rejected
// without calling the provider.
func (c *AuthController) Login(ctx context.Context, state SessionState, username, password string) (SessionState, AuthOutcome) {
	state = state.Normalize()
	run := c.begin(ctx, OperationLogin, state, username)

	if err := (Credentials{Username: username, Password: password}).Validate(); err != nil {
		return state, run.reject(ErrorKindInvalidInput, c.messages.MissingCredentials, err)
	}

	result, err := c.provider.Authenticate(ctx, username, password)
	if err != nil {
		return state, run.fail(err)
	}

	if !result.Complete() {
		return state, run.reject(ErrorKindUnknown, c.messages.IncompleteTokens, nil)
	}

	next := SessionState{
		Phase:        PhaseAuthenticated,
		Username:     username,
		AccessToken:  result.AccessToken,
		IDToken:      result.IDToken,
		RefreshToken: result.RefreshToken,
	}

	return next, run.succeed(next, c.messages.LoginSuccess)
}

// SignUp registers username (which is also the email) with the provider.
func (c *AuthController) SignUp(ctx context.Context, state SessionState, username, password string) (SessionState, AuthOutcome) {
	return c.SignUpWithAttributes(ctx, state, username, password, nil)
}

// SignUpWithAttributes is SignUp with extra provider attributes. The "email"
// attribute is always set to username.
func (c *AuthController) SignUpWithAttributes(ctx context.Context, state SessionState, username, password string, attributes Attributes) (SessionState, AuthOutcome) {
	state = state.Normalize()
	run := c.begin(ctx, OperationSignUp, state, username)

	if err := (Registration{Username: username, Password: password}).Validate(); err != nil {
		return state, run.reject(ErrorKindInvalidInput, withDetail(c.messages.InvalidSignUp, err), err)
	}

	attrs := make(Attributes, len(attributes)+1)
	for k, v := range attributes {
		if v != "" {
			attrs[k] = v
		}
	}
	attrs["email"] = username

	if err := c.provider.Register(ctx, username, password, attrs); err != nil {
		return state, run.fail(err)
	}

	next := SessionState{
		Phase:    PhasePendingVerification,
		Username: username,
	}

	return next, run.succeed(next, c.messages.SignUpSuccess)
}

// ConfirmSignUp submits the emailed verification code. On success the session
// returns to Unauthenticated with the username retained for the login form.
func (c *AuthController) ConfirmSignUp(ctx context.Context, state SessionState, code string) (SessionState, AuthOutcome) {
	state = state.Normalize()
	run := c.begin(ctx, OperationConfirmSignUp, state, state.Username)

	if !CanRun(OperationConfirmSignUp, state.Phase) {
		return state, run.reject(ErrorKindInvalidState, c.messages.NothingPending, ErrInvalidState)
	}

	if err := (Confirmation{Code: code}).Validate(); err != nil {
		return state, run.reject(ErrorKindInvalidInput, c.messages.MissingCode, err)
	}

	if err := c.provider.ConfirmRegistration(ctx, state.Username, code); err != nil {
		return state, run.fail(err)
	}

	next := SessionState{
		Phase:    PhaseUnauthenticated,
		Username: state.Username,
		Verified: true,
	}

	return next, run.succeed(next, c.messages.ConfirmSuccess)
}

// ResendConfirmationCode asks the provider to send a new verification code.
// The phase never changes.
func (c *AuthController) ResendConfirmationCode(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
	state = state.Normalize()
	run := c.begin(ctx, OperationResendCode, state, state.Username)

	if !CanRun(OperationResendCode, state.Phase) {
		return state, run.reject(ErrorKindInvalidState, c.messages.NothingPending, ErrInvalidState)
	}

	if err := c.provider.ResendCode(ctx, state.Username); err != nil {
		return state, run.fail(err)
	}

	return state, run.succeed(state, c.messages.ResendSuccess)
}

// Logout resets the session. It never calls the provider and never fails.
func (c *AuthController) Logout(ctx context.Context, state SessionState) SessionState {
	state = state.Normalize()
	run := c.begin(ctx, OperationLogout, state, state.Username)
	next := EmptySession()
	run.succeed(next, c.messages.LogoutSuccess)
	return next
}

// LookupUser fetches the provider record of the signed in user.
func (c *AuthController) LookupUser(ctx context.Context, state SessionState) (UserRecord, AuthOutcome) {
	state = state.Normalize()
	run := c.begin(ctx, OperationLookupUser, state, state.Username)

	if !CanRun(OperationLookupUser, state.Phase) {
		return UserRecord{}, run.reject(ErrorKindInvalidState, c.messages.NotSignedIn, ErrInvalidState)
	}

	record, err := c.provider.LookupUser(ctx, state.Username)
	if err != nil {
		return UserRecord{}, run.fail(err)
	}

	return record, run.succeed(state, c.messages.LookupSuccess)
}

// DeleteAccount removes the signed in user from the provider and resets the
// session. This is an explicit user action; Logout never deletes anything.
func (c *AuthController) DeleteAccount(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
	state = state.Normalize()
	run := c.begin(ctx, OperationDeleteAccount, state, state.Username)

	if !CanRun(OperationDeleteAccount, state.Phase) {
		return state, run.reject(ErrorKindInvalidState, c.messages.NotSignedIn, ErrInvalidState)
	}

	if err := c.provider.DeleteUser(ctx, state.Username); err != nil {
		return state, run.fail(err)
	}

	next := EmptySession()
	return next, run.succeed(next, c.messages.DeleteSuccess)
}

func (c *AuthController) classify(op Operation, err error) ErrorKind {
	kind := ClassifyError(err)
	for _, allowed := range providerErrorKinds[op] {
		if kind == allowed {
			return kind
		}
	}
	return ErrorKindUnknown
}

func (c *AuthController) messageFor(kind ErrorKind, err error) string {
	switch kind {
	case ErrorKindNotAuthorized:
		return c.messages.NotAuthorized
	case ErrorKindUserNotFound:
		return c.messages.UserNotFound
	case ErrorKindDuplicateUser:
		return c.messages.DuplicateUser
	case ErrorKindInvalidCode:
		return c.messages.InvalidCode
	}
	if err == nil {
		return c.messages.UnknownPrefix
	}
	return c.messages.UnknownPrefix + err.Error()
}

// withDetail appends the failed validation rules to message.
func withDetail(message string, err error) string {
	if detail := describeValidation(err); detail != "" {
		return message + ": " + detail
	}
	return message
}

type operationRun struct {
	controller *AuthController
	ctx        context.Context
	op         Operation
	from       Phase
	username   string
	started    time.Time
}

func (c *AuthController) begin(ctx context.Context, op Operation, from SessionState, username string) *operationRun {
	if ctx == nil {
		ctx = context.Background()
	}
	return &operationRun{
		controller: c,
		ctx:        ctx,
		op:         op,
		from:       from.Phase,
		username:   username,
		started:    c.now(),
	}
}

func (r *operationRun) succeed(next SessionState, message string) AuthOutcome {
	outcome := Succeeded(message)
	r.record(next.Phase, outcome, nil)
	return outcome
}

func (r *operationRun) reject(kind ErrorKind, message string, cause error) AuthOutcome {
	outcome := Failed(kind, message)
	r.record(r.from, outcome, cause)
	return outcome
}

func (r *operationRun) fail(err error) AuthOutcome {
	kind := r.controller.classify(r.op, err)
	outcome := Failed(kind, r.controller.messageFor(kind, err))
	r.record(r.from, outcome, err)
	return outcome
}

func (r *operationRun) record(to Phase, outcome AuthOutcome, cause error) {
	c := r.controller
	now := c.now()

	switch {
	case outcome.Success:
		c.logger.Debug("%s succeeded: %s -> %s", r.op, r.from, to)
	case outcome.ErrorKind == ErrorKindUnknown:
		c.logger.Error("%s failed: identity provider error: %v", r.op, cause)
	case outcome.ErrorKind == ErrorKindInvalidInput:
		c.logger.Info("%s rejected: %s", r.op, describeValidation(cause))
	default:
		c.logger.Info("%s rejected: %s", r.op, outcome.ErrorKind)
	}

	types := activityEventTypes[r.op]
	eventType := types[0]
	if !outcome.Success {
		eventType = types[1]
	}

	event := ActivityEvent{
		EventType:  eventType,
		Operation:  r.op,
		Username:   r.username,
		FromPhase:  r.from,
		ToPhase:    to,
		Success:    outcome.Success,
		ErrorKind:  outcome.ErrorKind,
		Duration:   now.Sub(r.started),
		OccurredAt: now,
	}

	if cause != nil {
		event.Metadata = map[string]any{"error": cause.Error()}
		var perr *ProviderError
		if errors.As(cause, &perr) {
			for k, v := range perr.Metadata() {
				event.Metadata[k] = v
			}
		}
	}

	if buf := eventBufferFrom(r.ctx); buf != nil {
		buf.events = append(buf.events, event)
		return
	}
	c.publish(r.ctx, event)
}

func (c *AuthController) publish(ctx context.Context, event ActivityEvent) {
	if err := c.activitySink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error: %v", err)
	}
}
