package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionKeyPrefix namespaces refresh token keys.
const DefaultSessionKeyPrefix = "auth:refresh:"

const supersededPrefix = "superseded:"

// SupersedeResult is the outcome of an atomic compare-and-supersede.
type SupersedeResult int

const (
	// SupersedeMissing no entry exists for the refresh token
	SupersedeMissing SupersedeResult = 0
	// SupersedeSwapped the entry matched and was marked superseded
	SupersedeSwapped SupersedeResult = 1
	// SupersedeMismatch the entry holds a different access token
	SupersedeMismatch SupersedeResult = -1
)

// SessionCache maps refresh tokens to the currently authoritative access token.
// Implementations must be safe across processes without local locking.
type SessionCache interface {
	// Cache stores refresh->access with the refresh lifetime as TTL.
	// It fails if the refresh token is already live.
	Cache(ctx context.Context, token AuthorizeToken) error
	// Lookup returns the cached value and whether it was present.
	Lookup(ctx context.Context, refreshToken string) (string, bool, error)
	// Evict removes the entry, reporting whether it existed.
	Evict(ctx context.Context, refreshToken string) (bool, error)
	// Supersede atomically replaces the entry with a rotation marker
	// if it still holds expectedAccess. The remaining TTL is kept.
	Supersede(ctx context.Context, refreshToken, expectedAccess string) (SupersedeResult, error)
}

// ErrRefreshTokenCollision a freshly issued refresh token is already cached
var ErrRefreshTokenCollision = errors.New("refresh token already present in session cache", errors.CategoryInternal).
	WithTextCode("REFRESH_TOKEN_COLLISION").
	WithCode(errors.CodeInternal)

var supersedeScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return 0
end
if current ~= ARGV[1] then
	return -1
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisSessionCache is a SessionCache backed by redis.
type RedisSessionCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger Logger
}

// RedisCacheOption configures a RedisSessionCache
type RedisCacheOption func(*RedisSessionCache)

// WithSessionKeyPrefix overrides DefaultSessionKeyPrefix
func WithSessionKeyPrefix(prefix string) RedisCacheOption {
	return func(r *RedisSessionCache) {
		r.prefix = prefix
	}
}

// WithSessionCacheLogger sets the cache logger
func WithSessionCacheLogger(l Logger) RedisCacheOption {
	return func(r *RedisSessionCache) {
		r.logger = ResolveLogger("auth.session_cache", l)
	}
}

// NewRedisSessionCache creates a cache whose entries live for ttl.
func NewRedisSessionCache(client redis.UniversalClient, ttl time.Duration, opts ...RedisCacheOption) *RedisSessionCache {
	r := &RedisSessionCache{
		client: client,
		ttl:    ttl,
		prefix: DefaultSessionKeyPrefix,
		logger: ResolveLogger("auth.session_cache", nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

var _ SessionCache = (*RedisSessionCache)(nil)

func (r *RedisSessionCache) key(refreshToken string) string {
	return r.prefix + refreshToken
}

func (r *RedisSessionCache) Cache(ctx context.Context, token AuthorizeToken) error {
	if token.RefreshToken == "" || token.AccessToken == "" {
		return errors.New("cannot cache an incomplete token pair", errors.CategoryInternal)
	}

	ok, err := r.client.SetNX(ctx, r.key(token.RefreshToken), token.AccessToken, r.ttl).Result()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "session cache write failed")
	}
	if !ok {
		return ErrRefreshTokenCollision
	}
	return nil
}

func (r *RedisSessionCache) Lookup(ctx context.Context, refreshToken string) (string, bool, error) {
	if refreshToken == "" {
		return "", false, nil
	}

	val, err := r.client.Get(ctx, r.key(refreshToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, errors.CategoryInternal, "session cache read failed")
	}
	return val, true, nil
}

func (r *RedisSessionCache) Evict(ctx context.Context, refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}

	n, err := r.client.Del(ctx, r.key(refreshToken)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "session cache evict failed")
	}
	return n > 0, nil
}

func (r *RedisSessionCache) Supersede(ctx context.Context, refreshToken, expectedAccess string) (SupersedeResult, error) {
	res, err := supersedeScript.Run(ctx, r.client,
		[]string{r.key(refreshToken)},
		expectedAccess, supersededMarker(expectedAccess),
	).Int()
	if err != nil {
		return SupersedeMissing, errors.Wrap(err, errors.CategoryInternal, "session cache supersede failed")
	}

	switch SupersedeResult(res) {
	case SupersedeSwapped:
		return SupersedeSwapped, nil
	case SupersedeMismatch:
		r.logger.Warn("refresh token presented with a superseded access token")
		return SupersedeMismatch, nil
	default:
		return SupersedeMissing, nil
	}
}

// IsSupersededMarker reports whether a cached value is a rotation marker.
func IsSupersededMarker(val string) bool {
	return strings.HasPrefix(val, supersededPrefix)
}

func supersededMarker(access string) string {
	sum := sha256.Sum256([]byte(access))
	return supersededPrefix + hex.EncodeToString(sum[:8])
}
