package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventSignUpSuccess   ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure   ActivityEventType = "auth.signup.failure"
	ActivityEventConfirmSuccess  ActivityEventType = "auth.confirm.success"
	ActivityEventConfirmFailure  ActivityEventType = "auth.confirm.failure"
	ActivityEventResendSuccess   ActivityEventType = "auth.resend.success"
	ActivityEventResendFailure   ActivityEventType = "auth.resend.failure"
	ActivityEventLogout          ActivityEventType = "auth.logout"
	ActivityEventLookupSuccess   ActivityEventType = "auth.lookup.success"
	ActivityEventLookupFailure   ActivityEventType = "auth.lookup.failure"
	ActivityEventAccountDeleted  ActivityEventType = "auth.account.deleted"
	ActivityEventDeletionFailure ActivityEventType = "auth.account.delete_failure"
)

var activityEventTypes = map[Operation][2]ActivityEventType{
	OperationLogin:         {ActivityEventLoginSuccess, ActivityEventLoginFailure},
	OperationSignUp:        {ActivityEventSignUpSuccess, ActivityEventSignUpFailure},
	OperationConfirmSignUp: {ActivityEventConfirmSuccess, ActivityEventConfirmFailure},
	OperationResendCode:    {ActivityEventResendSuccess, ActivityEventResendFailure},
	OperationLogout:        {ActivityEventLogout, ActivityEventLogout},
	OperationLookupUser:    {ActivityEventLookupSuccess, ActivityEventLookupFailure},
	OperationDeleteAccount: {ActivityEventAccountDeleted, ActivityEventDeletionFailure},
}

// ActivityEvent captures audit-friendly information about a controller operation.
type ActivityEvent struct {
	EventType  ActivityEventType
	Operation  Operation
	Username   string
	FromPhase  Phase
	ToPhase    Phase
	Success    bool
	ErrorKind  ErrorKind
	Duration   time.Duration
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to several sinks, returning the first error.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	filtered := make([]ActivitySink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return multiActivitySink(filtered)
}

type multiActivitySink []ActivitySink

func (m multiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// storeFailed rewrites a successful event for a run whose session write
// failed.
func (e ActivityEvent) storeFailed(err error) ActivityEvent {
	e.Success = false
	e.ErrorKind = ErrorKindUnknown
	e.ToPhase = e.FromPhase
	if types, ok := activityEventTypes[e.Operation]; ok {
		e.EventType = types[1]
	}

	meta := make(map[string]any, len(e.Metadata)+2)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta["error"] = err.Error()
	meta["stage"] = "session_store"
	e.Metadata = meta
	return e
}

type eventBufferKey struct{}

// eventBuffer collects events instead of publishing them right away.
type eventBuffer struct {
	events []ActivityEvent
}

func withEventBuffer(ctx context.Context) (context.Context, *eventBuffer) {
	buf := &eventBuffer{}
	return context.WithValue(ctx, eventBufferKey{}, buf), buf
}

func eventBufferFrom(ctx context.Context) *eventBuffer {
	buf, _ := ctx.Value(eventBufferKey{}).(*eventBuffer)
	return buf
}
