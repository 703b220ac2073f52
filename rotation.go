package auth

import (
	"context"
	"crypto/subtle"
	"time"
)

// RotationGuard exchanges a live token pair for a new one, at most once
// per pair.
type RotationGuard struct {
	cache     SessionCache
	codec     *TokenCodec
	assembler *ClaimsAssembler
	issuer    *TokenIssuer
	activity  ActivitySink
	logger    Logger
}

// RotationOption configures a RotationGuard
type RotationOption func(*RotationGuard)

// WithRotationActivitySink records refresh and forced logout events.
func WithRotationActivitySink(sink ActivitySink) RotationOption {
	return func(g *RotationGuard) {
		g.activity = normalizeActivitySink(sink)
	}
}

// WithRotationLogger sets the guard logger
func WithRotationLogger(l Logger) RotationOption {
	return func(g *RotationGuard) {
		g.logger = ResolveLogger("auth.rotation", l)
	}
}

func NewRotationGuard(cache SessionCache, codec *TokenCodec, assembler *ClaimsAssembler, issuer *TokenIssuer, opts ...RotationOption) *RotationGuard {
	g := &RotationGuard{
		cache:     cache,
		codec:     codec,
		assembler: assembler,
		issuer:    issuer,
		activity:  noopActivitySink{},
		logger:    ResolveLogger("auth.rotation", nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Rotate validates presented against the session cache and issues a new
// pair. It fails with ErrSessionNotFound when the refresh token is not
// live, ErrStaleOrReplayed when its access half was already superseded
// and ErrUserRecordMissing when the subject was removed, in which case
// the session is evicted.
func (g *RotationGuard) Rotate(ctx context.Context, presented AuthorizeToken) (AuthorizeToken, error) {
	cached, ok, err := g.cache.Lookup(ctx, presented.RefreshToken)
	if err != nil {
		return AuthorizeToken{}, err
	}
	if !ok {
		return AuthorizeToken{}, ErrSessionNotFound
	}

	if subtle.ConstantTimeCompare([]byte(cached), []byte(presented.AccessToken)) != 1 {
		g.logger.Warn("refresh rejected, access token superseded", "superseded", IsSupersededMarker(cached))
		return AuthorizeToken{}, ErrStaleOrReplayed
	}

	claims, err := g.codec.DecodeIgnoringExpiry(presented.AccessToken)
	if err != nil {
		return AuthorizeToken{}, withSource(ErrUnauthenticated, err, nil)
	}

	identity, err := g.assembler.FromUser(ctx, claims.SubjectID(), claims.Source())
	if err != nil {
		if HasTextCode(err, TextCodeUserRecordMissing) {
			g.forceLogout(ctx, presented.RefreshToken, claims.SubjectID())
		}
		return AuthorizeToken{}, err
	}

	issued, err := g.issuer.IssueToken(identity)
	if err != nil {
		return AuthorizeToken{}, err
	}

	// the new pair is cached before the old one is burned, a failed write
	// leaves the presented pair usable for a retry
	if err := g.cache.Cache(ctx, issued); err != nil {
		return AuthorizeToken{}, err
	}

	// the lookup above is only advisory, two refreshes of the same pair
	// race until this compare-and-supersede
	res, err := g.cache.Supersede(ctx, presented.RefreshToken, presented.AccessToken)
	if err != nil {
		g.discard(ctx, issued, identity.SubjectID)
		return AuthorizeToken{}, err
	}
	switch res {
	case SupersedeMissing:
		g.discard(ctx, issued, identity.SubjectID)
		return AuthorizeToken{}, ErrSessionNotFound
	case SupersedeMismatch:
		g.discard(ctx, issued, identity.SubjectID)
		return AuthorizeToken{}, ErrStaleOrReplayed
	}

	g.record(ctx, ActivityEventTokenRefreshed, identity.SubjectID, nil)
	return issued, nil
}

// Revoke evicts the session for refreshToken, reporting whether it was live.
func (g *RotationGuard) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	return g.cache.Evict(ctx, refreshToken)
}

// subjectOf reads the subject of an access token regardless of expiry,
// zero when the token does not verify.
func (g *RotationGuard) subjectOf(accessToken string) int64 {
	claims, err := g.codec.DecodeIgnoringExpiry(accessToken)
	if err != nil {
		return 0
	}
	return claims.SubjectID()
}

func (g *RotationGuard) discard(ctx context.Context, issued AuthorizeToken, subjectID int64) {
	if _, err := g.cache.Evict(ctx, issued.RefreshToken); err != nil {
		g.logger.Error("rotation could not discard unused session", "error", err, "user_id", subjectID)
	}
}

func (g *RotationGuard) forceLogout(ctx context.Context, refreshToken string, subjectID int64) {
	if _, err := g.cache.Evict(ctx, refreshToken); err != nil {
		g.logger.Error("forced logout could not evict session", "error", err, "user_id", subjectID)
	}
	g.record(ctx, ActivityEventForcedLogout, subjectID, map[string]any{"reason": TextCodeUserRecordMissing})
}

func (g *RotationGuard) record(ctx context.Context, kind ActivityEventType, subjectID int64, meta map[string]any) {
	err := g.activity.Record(ctx, ActivityEvent{
		EventType:  kind,
		UserID:     subjectID,
		Metadata:   meta,
		OccurredAt: time.Now(),
	})
	if err != nil {
		g.logger.Warn("activity sink failed", "event", string(kind), "error", err)
	}
}
