package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeInvalidSignature   = "TOKEN_INVALID_SIGNATURE"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeStaleOrReplayed    = "SESSION_STALE_OR_REPLAYED"
	TextCodeUserRecordMissing  = "USER_RECORD_MISSING"
	TextCodeUserBanned         = "USER_BANNED"
	TextCodeTokenPairMalformed = "TOKEN_PAIR_MALFORMED"
	TextCodeExternalNotLinked  = "EXTERNAL_LOGIN_NOT_LINKED"
	TextCodeLoginTaken         = "LOGIN_TAKEN"
	TextCodeInvalidPayload     = "INVALID_PAYLOAD"
	TextCodeForbidden          = "FORBIDDEN"
)

// ErrIdentityNotFound is returned by stores when no user matches.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned for unknown logins and wrong passwords alike.
var ErrMismatchedHashAndPassword = errors.New("invalid login or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrUnauthenticated is the only authentication failure surfaced to clients.
var ErrUnauthenticated = errors.New("unauthenticated", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden the subject lacks the role a route requires
var ErrForbidden = errors.New("access denied", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrTokenMalformed the access token could not be parsed
var ErrTokenMalformed = errors.New("access token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature the access token failed signature verification
var ErrInvalidSignature = errors.New("access token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired the access token is past its expiry
var ErrTokenExpired = errors.New("access token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrSessionNotFound no live session is cached for the refresh token.
var ErrSessionNotFound = errors.New("session not found or expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrStaleOrReplayed the presented access token was already superseded.
var ErrStaleOrReplayed = errors.New("token pair has been superseded", errors.CategoryAuthz).
	WithTextCode(TextCodeStaleOrReplayed).
	WithCode(errors.CodeForbidden)

// ErrUserRecordMissing the token is valid but its user no longer exists.
var ErrUserRecordMissing = errors.New("user record no longer exists", errors.CategoryAuth).
	WithTextCode(TextCodeUserRecordMissing).
	WithCode(errors.CodeUnauthorized)

// ErrUserBanned the subject is currently banned
var ErrUserBanned = errors.New("user is banned", errors.CategoryAuthz).
	WithTextCode(TextCodeUserBanned).
	WithCode(errors.CodeForbidden)

// ErrTokenPairMalformed the request body carried an incomplete token pair.
var ErrTokenPairMalformed = errors.New("token pair payload is malformed", errors.CategoryValidation).
	WithTextCode(TextCodeTokenPairMalformed).
	WithCode(errors.CodeBadRequest)

// ErrExternalLoginNotLinked no local account is linked to the external identity.
var ErrExternalLoginNotLinked = errors.New("external login is not linked to an account", errors.CategoryAuth).
	WithTextCode(TextCodeExternalNotLinked).
	WithCode(errors.CodeUnauthorized)

// ErrLoginTaken the login or email is already registered.
var ErrLoginTaken = errors.New("login or email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeLoginTaken).
	WithCode(errors.CodeConflict)

// ErrInvalidPayload the request body failed validation
var ErrInvalidPayload = errors.New("invalid request payload", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPayload).
	WithCode(errors.CodeBadRequest)

// HasTextCode reports whether err wraps a rich error carrying code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for malformed or forged tokens
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeTokenMalformed) || HasTextCode(err, TextCodeInvalidSignature)
}

// IsUnauthenticated reports whether err must be surfaced as a bare 401.
func IsUnauthenticated(err error) bool {
	return IsTokenExpiredError(err) || IsMalformedError(err) || HasTextCode(err, TextCodeUnauthenticated)
}

// withSource clones a sentinel, attaches the cause and optional metadata.
func withSource(base *errors.Error, src error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if src != nil {
		clone.Source = src
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
