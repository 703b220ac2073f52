package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/goliatone/go-errors"
)

const refreshTokenBytes = 32

// AuthorizeToken is an access/refresh token pair.
type AuthorizeToken struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`

	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// IsZero reports whether neither half is set.
func (t AuthorizeToken) IsZero() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// TokenIssuer mints token pairs. It never touches the session cache.
type TokenIssuer struct {
	codec      *TokenCodec
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption configures a TokenIssuer
type IssuerOption func(*TokenIssuer)

// WithIssuerClock overrides the issuance time source
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer validates that access tokens expire strictly before
// the refresh token cache entry does.
func NewTokenIssuer(codec *TokenCodec, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) (*TokenIssuer, error) {
	if codec == nil {
		return nil, errors.New("token issuer requires a codec", errors.CategoryInternal)
	}
	if accessTTL <= 0 || accessTTL >= refreshTTL {
		return nil, errors.New("access token ttl must be positive and shorter than refresh token ttl", errors.CategoryValidation).
			WithTextCode("INVALID_TOKEN_TTL").
			WithMetadata(map[string]any{
				"access_ttl":  accessTTL.String(),
				"refresh_ttl": refreshTTL.String(),
			})
	}

	t := &TokenIssuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// RefreshTTL is the lifetime of the session cache entry.
func (t *TokenIssuer) RefreshTTL() time.Duration {
	return t.refreshTTL
}

// IssueToken encodes identity and pairs it with a fresh refresh token.
func (t *TokenIssuer) IssueToken(identity ClaimsIdentity) (AuthorizeToken, error) {
	now := t.now()
	accessExp := now.Add(t.accessTTL)

	access, err := t.codec.Encode(identity, now, accessExp)
	if err != nil {
		return AuthorizeToken{}, err
	}

	refresh, err := NewRefreshToken()
	if err != nil {
		return AuthorizeToken{}, err
	}

	return AuthorizeToken{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: now.Add(t.refreshTTL),
	}, nil
}

// NewRefreshToken returns 256 random bits, base64url encoded.
func NewRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate refresh token")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
