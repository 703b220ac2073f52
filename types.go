package auth

import (
	"context"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningKeyID() string
	GetRetiredSigningKeys() map[string]string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetAccessCookieName() string
	GetRefreshCookieName() string
	GetSetCookieHeader() string
	GetCookieDomain() string
	GetRequestTimeout() time.Duration
}

// UserTracker is a store we can use to retrieve users by login and track attempts
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// IdentityReader resolves the facts that go into a claims set.
type IdentityReader interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	RolesForUser(ctx context.Context, id int64) ([]string, error)
	GetByExternalLogin(ctx context.Context, provider, providerKey string) (*User, error)
}

// BanStateProvider returns the ban expiry for a user, nil when not banned.
type BanStateProvider interface {
	BanExpiry(ctx context.Context, id int64) (*time.Time, error)
}

// AccountRegisterer creates local accounts, optionally linked to an external login.
type AccountRegisterer interface {
	Register(ctx context.Context, user *User, roles ...string) (*User, error)
	RegisterExternal(ctx context.Context, user *User, login *ExternalLogin, roles ...string) (*User, error)
}

// IdentityStore is the durable identity store.
type IdentityStore interface {
	UserTracker
	IdentityReader
	BanStateProvider
	AccountRegisterer
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}
