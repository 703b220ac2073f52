package activitymap

import (
	"strconv"
	"strings"
	"time"

	"github.com/inkwell-blog/go-auth"
)

const (
	// MetadataKeyOutcome stores whether the event records a granted or refused action.
	MetadataKeyOutcome = "outcome"
	// MetadataKeyMethod stores how the subject authenticated: password, oauth or token.
	MetadataKeyMethod = "method"
)

const (
	OutcomeGranted = "granted"
	OutcomeRefused = "refused"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(auth.ActivityEvent) string
	now              func() time.Time
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := options.actorFallback
	if event.UserID != 0 {
		actorID = strconv.FormatInt(event.UserID, 10)
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   resolveObjectID(event, actorID, options.objectIDResolver),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used for events without a subject,
// such as failed logins.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithClock sets the time stamped on events that carry none.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func resolveObjectID(event auth.ActivityEvent, actorID string, resolver func(auth.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return actorID
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}

	if _, exists := metadata[MetadataKeyOutcome]; !exists {
		metadata[MetadataKeyOutcome] = outcomeFor(event.EventType)
	}
	if method := methodFor(event.EventType); method != "" {
		if _, exists := metadata[MetadataKeyMethod]; !exists {
			metadata[MetadataKeyMethod] = method
		}
	}
	return metadata
}

func outcomeFor(kind auth.ActivityEventType) string {
	switch kind {
	case auth.ActivityEventLoginFailure, auth.ActivityEventBanRejected, auth.ActivityEventForcedLogout:
		return OutcomeRefused
	default:
		return OutcomeGranted
	}
}

func methodFor(kind auth.ActivityEventType) string {
	switch kind {
	case auth.ActivityEventLoginSuccess, auth.ActivityEventLoginFailure, auth.ActivityEventSignUp:
		return string(auth.SourcePassword)
	case auth.ActivityEventSocialLogin, auth.ActivityEventSocialSignUp:
		return string(auth.SourceOAuth)
	case auth.ActivityEventTokenRefreshed, auth.ActivityEventForcedLogout:
		return "token"
	default:
		return ""
	}
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
