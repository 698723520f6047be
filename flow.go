package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const lockStripes = 256

// Flow runs controller operations against a SessionStore: it reads the
// snapshot, calls the controller and writes the next state back. Intents for
// the same session id are serialized; different sessions run in parallel.
//
// Activity events of an operation are held back until the write is done. If
// the write fails, successful events are published as failures with
// ErrorKindUnknown and no phase change.
type Flow struct {
	controller *AuthController
	logger     Logger
	locks      [lockStripes]sync.Mutex
}

// FlowOption customizes a Flow.
type FlowOption func(*Flow)

// WithFlowLogger sets the logger used for store failures.
func WithFlowLogger(logger Logger) FlowOption {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFlow returns a Flow driving controller.
func NewFlow(controller *AuthController, opts ...FlowOption) *Flow {
	if controller == nil {
		panic("auth: NewFlow requires an AuthController")
	}
	f := &Flow{
		controller: controller,
		logger:     controller.logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Controller returns the wrapped controller.
func (f *Flow) Controller() *AuthController {
	return f.controller
}

// State returns the current session state.
func (f *Flow) State(ctx context.Context, store *SessionStore) (SessionState, error) {
	unlock := f.lock(store.ID())
	defer unlock()
	return f.load(ctx, store)
}

func (f *Flow) Login(ctx context.Context, store *SessionStore, username, password string) (SessionState, AuthOutcome) {
	return f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		return f.controller.Login(ctx, state, username, password)
	})
}

func (f *Flow) SignUp(ctx context.Context, store *SessionStore, username, password string) (SessionState, AuthOutcome) {
	return f.SignUpWithAttributes(ctx, store, username, password, nil)
}

func (f *Flow) SignUpWithAttributes(ctx context.Context, store *SessionStore, username, password string, attributes Attributes) (SessionState, AuthOutcome) {
	return f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		return f.controller.SignUpWithAttributes(ctx, state, username, password, attributes)
	})
}

func (f *Flow) ConfirmSignUp(ctx context.Context, store *SessionStore, code string) (SessionState, AuthOutcome) {
	return f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		return f.controller.ConfirmSignUp(ctx, state, code)
	})
}

func (f *Flow) ResendConfirmationCode(ctx context.Context, store *SessionStore) (SessionState, AuthOutcome) {
	return f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		return f.controller.ResendConfirmationCode(ctx, state)
	})
}

// Logout clears the session record.
func (f *Flow) Logout(ctx context.Context, store *SessionStore) (SessionState, AuthOutcome) {
	return f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		next := f.controller.Logout(ctx, state)
		return next, Succeeded(f.controller.messages.LogoutSuccess)
	})
}

// LookupUser reads the session and fetches the signed in user's record. The
// session is left untouched.
func (f *Flow) LookupUser(ctx context.Context, store *SessionStore) (UserRecord, AuthOutcome) {
	var record UserRecord
	_, outcome := f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		var out AuthOutcome
		record, out = f.controller.LookupUser(ctx, state)
		return state, out
	})
	return record, outcome
}

func (f *Flow) DeleteAccount(ctx context.Context, store *SessionStore) (SessionState, AuthOutcome) {
	return f.run(ctx, store, func(ctx context.Context, state SessionState) (SessionState, AuthOutcome) {
		return f.controller.DeleteAccount(ctx, state)
	})
}

func (f *Flow) run(ctx context.Context, store *SessionStore, op func(context.Context, SessionState) (SessionState, AuthOutcome)) (SessionState, AuthOutcome) {
	unlock := f.lock(store.ID())
	defer unlock()

	current, err := f.load(ctx, store)
	if err != nil {
		return current, f.storeFailure(err)
	}

	opCtx, events := withEventBuffer(ctx)
	next, outcome := op(opCtx, current)
	if next == current {
		f.publish(ctx, events.events, nil)
		return next, outcome
	}

	if next.IsEmpty() {
		err = store.Clear(ctx)
	} else {
		err = store.Set(ctx, next)
	}
	f.publish(ctx, events.events, err)
	if err != nil {
		return current, f.storeFailure(err)
	}

	return next, outcome
}

// publish sends held back events to the controller sink, downgrading
// successes to failures when the session write failed.
func (f *Flow) publish(ctx context.Context, events []ActivityEvent, storeErr error) {
	for _, event := range events {
		if storeErr != nil && event.Success {
			event = event.storeFailed(storeErr)
		}
		f.controller.publish(ctx, event)
	}
}

// load reads the snapshot. A stored state that breaks the invariants is
// discarded and the session starts over.
func (f *Flow) load(ctx context.Context, store *SessionStore) (SessionState, error) {
	state, err := store.Get(ctx)
	if err == nil {
		return state, nil
	}

	if !errors.Is(err, ErrInvalidSessionState) {
		return EmptySession(), err
	}

	f.logger.Warn("discarding session %s: %v", store.ID(), err)
	if err := store.Clear(ctx); err != nil {
		return EmptySession(), err
	}
	return EmptySession(), nil
}

func (f *Flow) storeFailure(err error) AuthOutcome {
	f.logger.Error("session store error: %v", err)
	return Failed(ErrorKindUnknown, f.controller.messages.UnknownPrefix+err.Error())
}

func (f *Flow) lock(id string) func() {
	m := &f.locks[xxhash.Sum64String(id)%lockStripes]
	m.Lock()
	return m.Unlock
}
