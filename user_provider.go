package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// MaxLoginAttempts is the maximun number of attempts a user gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = 24 * time.Hour

// UserProvider verifies local account credentials.
type UserProvider struct {
	store     UserTracker
	passwords PasswordAuthenticator
	now       func() time.Time
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:     store,
		passwords: BcryptAuthenticator(),
		now:       time.Now,
		logger:    ResolveLogger("auth.user_provider", nil),
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = ResolveLogger("auth.user_provider", l)
	return u
}

func (u *UserProvider) WithPasswordAuthenticator(p PasswordAuthenticator) *UserProvider {
	if p != nil {
		u.passwords = p
	}
	return u
}

func (u *UserProvider) WithClock(now func() time.Time) *UserProvider {
	if now != nil {
		u.now = now
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return it.
// Unknown logins and wrong passwords both yield ErrMismatchedHashAndPassword.
func (u *UserProvider) VerifyIdentity(ctx context.Context, login, password string) (*User, error) {
	user, err := u.store.GetByIdentifier(ctx, login)
	if err != nil {
		if errors.IsNotFound(err) || HasTextCode(err, TextCodeIdentityNotFound) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}
	if user == nil {
		return nil, ErrMismatchedHashAndPassword
	}

	if user.LoginAttemptAt != nil && IsOutsideThresholdPeriod(*user.LoginAttemptAt, u.now(), CoolDownPeriod) {
		user.LoginAttempts = 0
	}

	//if we have too many attempts in the given window, cool off!
	if user.LoginAttempts >= MaxLoginAttempts {
		return nil, withSource(ErrTooManyLoginAttempts, nil, map[string]any{"user_id": user.ID})
	}

	if err := u.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := u.store.TrackAttemptedLogin(ctx, user); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}
		return nil, err
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("failed to track successful login", "error", err, "user_id", user.ID)
	}

	return user, nil
}
