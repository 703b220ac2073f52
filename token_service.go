package auth

import (
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/inkwell-blog/go-auth/middleware/jwtware"
)

const signingAlg = "HS256"

// SigningKey is an HMAC secret identified by kid.
type SigningKey struct {
	ID     string
	Secret []byte
}

// KeySet holds the key used to sign new tokens and the retired keys
// that still verify tokens issued before a key rotation.
type KeySet struct {
	Active  SigningKey
	Retired []SigningKey
}

// KeySetFromConfig builds a KeySet from config values.
func KeySetFromConfig(cfg Config) KeySet {
	ks := KeySet{
		Active: SigningKey{ID: cfg.GetSigningKeyID(), Secret: []byte(cfg.GetSigningKey())},
	}
	for kid, secret := range cfg.GetRetiredSigningKeys() {
		ks.Retired = append(ks.Retired, SigningKey{ID: kid, Secret: []byte(secret)})
	}
	return ks
}

// TokenCodec encodes claims into signed access tokens and verifies them back.
type TokenCodec struct {
	active   SigningKey
	issuer   string
	audience jwt.ClaimStrings
	keyfunc  jwt.Keyfunc
	now      func() time.Time
	logger   Logger
}

// CodecOption configures a TokenCodec
type CodecOption func(*TokenCodec)

// WithCodecClock overrides the time source used for expiry checks.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithCodecLogger sets the codec logger
func WithCodecLogger(l Logger) CodecOption {
	return func(c *TokenCodec) {
		c.logger = ResolveLogger("auth.token_codec", l)
	}
}

// NewTokenCodec creates a codec that signs with keys.Active and verifies
// with any key in the set, resolved by the token kid header.
func NewTokenCodec(keys KeySet, issuer string, audience []string, opts ...CodecOption) (*TokenCodec, error) {
	if keys.Active.ID == "" || len(keys.Active.Secret) == 0 {
		return nil, errors.New("active signing key requires an id and a secret", errors.CategoryValidation).
			WithTextCode("SIGNING_KEY_REQUIRED")
	}

	given := make(map[string]keyfunc.GivenKey, len(keys.Retired)+1)
	for _, k := range keys.Retired {
		if k.ID == "" || len(k.Secret) == 0 {
			continue
		}
		given[k.ID] = keyfunc.NewGivenCustom(k.Secret, keyfunc.GivenKeyOptions{Algorithm: signingAlg})
	}
	given[keys.Active.ID] = keyfunc.NewGivenCustom(keys.Active.Secret, keyfunc.GivenKeyOptions{Algorithm: signingAlg})

	c := &TokenCodec{
		active:   keys.Active,
		issuer:   issuer,
		audience: append(jwt.ClaimStrings(nil), audience...),
		keyfunc:  keyfunc.NewGiven(given).Keyfunc,
		now:      time.Now,
		logger:   ResolveLogger("auth.token_codec", nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Encode signs identity into an access token valid until expiresAt.
func (c *TokenCodec) Encode(identity ClaimsIdentity, issuedAt, expiresAt time.Time) (string, error) {
	if !expiresAt.After(issuedAt) {
		return "", errors.New("token expiry must be after issuance", errors.CategoryInternal)
	}

	claims := newJWTClaims(identity)
	claims.ID = uuid.NewString()
	claims.Issuer = c.issuer
	claims.Audience = c.audience
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = c.active.ID

	signed, err := token.SignedString(c.active.Secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Decode verifies signature, issuer, audience and expiry.
// Failures are ErrInvalidSignature, ErrTokenMalformed or ErrTokenExpired.
func (c *TokenCodec) Decode(raw string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingAlg}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	claims, err := c.parse(raw, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.verifyAudience(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// DecodeIgnoringExpiry verifies the signature, issuer and audience but accepts
// expired tokens. Rotation relies on it since the access half of a pair
// usually expired by the time the client refreshes.
func (c *TokenCodec) DecodeIgnoringExpiry(raw string) (*JWTClaims, error) {
	claims, err := c.parse(raw,
		jwt.WithValidMethods([]string{signingAlg}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return nil, withSource(ErrInvalidSignature, nil, map[string]any{"issuer": claims.Issuer})
	}
	if err := c.verifyAudience(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// verifyAudience accepts a token naming at least one configured audience.
func (c *TokenCodec) verifyAudience(claims *JWTClaims) error {
	if len(c.audience) == 0 {
		return nil
	}
	for _, want := range c.audience {
		for _, got := range claims.Audience {
			if got == want {
				return nil
			}
		}
	}
	return withSource(ErrInvalidSignature, nil, map[string]any{"audience": []string(claims.Audience)})
}

// Validate implements jwtware.TokenValidator
func (c *TokenCodec) Validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := c.Decode(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *TokenCodec) parse(raw string, opts ...jwt.ParserOption) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &JWTClaims{}, c.keyfunc, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, withSource(ErrTokenExpired, err, nil)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, withSource(ErrTokenMalformed, err, nil)
		default:
			c.logger.Debug("token verification failed", "error", err)
			return nil, withSource(ErrInvalidSignature, err, nil)
		}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		c.logger.Error("token codec could not map claims")
		return nil, ErrTokenMalformed
	}
	return claims, nil
}
