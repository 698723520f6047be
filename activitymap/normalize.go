// Package activitymap flattens auth.ActivityEvent values into a transport
// agnostic record for audit logs and downstream consumers.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
)

const (
	MetadataKeyOperation  = "operation"
	MetadataKeyFromPhase  = "from_phase"
	MetadataKeyToPhase    = "to_phase"
	MetadataKeyErrorKind  = "error_kind"
	MetadataKeyDurationMS = "duration_ms"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Normalized is the flattened activity record.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	Result     string         `json:"result"`
	ObjectType string         `json:"object_type,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	actorMasker   func(string) string
}

// Normalize converts event into a Normalized record.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := strings.TrimSpace(event.Username)
	if actorID != "" && options.actorMasker != nil {
		actorID = options.actorMasker(actorID)
	}
	if actorID == "" {
		actorID = options.actorFallback
	}

	result := ResultFailure
	if event.Success {
		result = ResultSuccess
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		Result:     result,
		ObjectType: options.objectType,
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event has no username.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithActorMasker rewrites usernames before they become actor ids, e.g.
// logging.MaskEmail.
func WithActorMasker(masker func(string) string) Option {
	return func(opts *normalizeOptions) {
		opts.actorMasker = masker
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

// normalizeMetadata copies event metadata and adds the lifecycle fields.
// Lifecycle fields win over metadata keys with the same name.
func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+5)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	metadata[MetadataKeyOperation] = string(event.Operation)
	if event.FromPhase != "" {
		metadata[MetadataKeyFromPhase] = string(event.FromPhase)
	}
	if event.ToPhase != "" {
		metadata[MetadataKeyToPhase] = string(event.ToPhase)
	}
	if event.ErrorKind != auth.ErrorKindNone {
		metadata[MetadataKeyErrorKind] = string(event.ErrorKind)
	}
	if event.Duration > 0 {
		metadata[MetadataKeyDurationMS] = event.Duration.Milliseconds()
	}

	return metadata
}
