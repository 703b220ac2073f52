package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// BanGate rejects requests from subjects whose ban has not expired yet.
type BanGate struct {
	store      BanStateProvider
	contextKey string
	now        func() time.Time
	activity   ActivitySink
	logger     Logger
}

// BanGateOption configures a BanGate
type BanGateOption func(*BanGate)

// WithBanClock overrides the time source bans are compared against.
func WithBanClock(now func() time.Time) BanGateOption {
	return func(b *BanGate) {
		if now != nil {
			b.now = now
		}
	}
}

// WithBanContextKey sets the locals key claims are read from
func WithBanContextKey(key string) BanGateOption {
	return func(b *BanGate) {
		if key != "" {
			b.contextKey = key
		}
	}
}

func WithBanActivitySink(sink ActivitySink) BanGateOption {
	return func(b *BanGate) {
		b.activity = normalizeActivitySink(sink)
	}
}

func WithBanLogger(l Logger) BanGateOption {
	return func(b *BanGate) {
		b.logger = ResolveLogger("auth.ban_gate", l)
	}
}

func NewBanGate(store BanStateProvider, opts ...BanGateOption) *BanGate {
	b := &BanGate{
		store:      store,
		contextKey: DefaultContextKey,
		now:        time.Now,
		activity:   noopActivitySink{},
		logger:     ResolveLogger("auth.ban_gate", nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Middleware must run after the primary scheme middleware. Requests
// without primary scheme claims pass through untouched.
func (b *BanGate) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromLocals(c, b.contextKey)
		if !ok {
			return c.Next()
		}

		if err := b.Check(c, claims.SubjectID()); err != nil {
			return RenderError(c, err)
		}
		return c.Next()
	}
}

// Check returns a banned error when subjectID is banned right now.
func (b *BanGate) Check(c *fiber.Ctx, subjectID int64) error {
	until, err := b.store.BanExpiry(c.UserContext(), subjectID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load ban state")
	}
	if until == nil || !b.now().Before(*until) {
		return nil
	}

	if err := b.activity.Record(c.UserContext(), ActivityEvent{
		EventType:  ActivityEventBanRejected,
		UserID:     subjectID,
		Metadata:   map[string]any{"banned_until": until.UTC().Format(time.RFC3339)},
		OccurredAt: b.now(),
	}); err != nil {
		b.logger.Warn("activity sink failed", "error", err)
	}

	return BannedError(*until)
}

// BannedError describes a ban ending at until.
func BannedError(until time.Time) *errors.Error {
	stamp := until.UTC().Format(time.RFC3339)
	clone := withSource(ErrUserBanned, nil, map[string]any{"banned_until": stamp})
	clone.Message = "user is banned until " + stamp
	return clone
}
