package auth

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// Options is the environment backed Config implementation.
type Options struct {
	SigningKey         string            `env:"AUTH_SIGNING_KEY,required"`
	SigningKeyID       string            `env:"AUTH_SIGNING_KEY_ID" envDefault:"k1"`
	RetiredSigningKeys map[string]string `env:"AUTH_RETIRED_SIGNING_KEYS"`
	Issuer             string            `env:"AUTH_ISSUER" envDefault:"inkwell-blog"`
	Audience           []string          `env:"AUTH_AUDIENCE" envDefault:"inkwell-blog"`
	AccessTokenTTL     time.Duration     `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL    time.Duration     `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"720h"`
	ContextKey         string            `env:"AUTH_CONTEXT_KEY" envDefault:"user"`
	TokenLookup        string            `env:"AUTH_TOKEN_LOOKUP"`
	AuthScheme         string            `env:"AUTH_SCHEME" envDefault:"Bearer"`
	AccessCookieName   string            `env:"AUTH_ACCESS_COOKIE" envDefault:"blog_access"`
	RefreshCookieName  string            `env:"AUTH_REFRESH_COOKIE" envDefault:"blog_refresh"`
	SetCookieHeader    string            `env:"AUTH_SET_COOKIE_HEADER" envDefault:"X-Set-Cookie"`
	CookieDomain       string            `env:"AUTH_COOKIE_DOMAIN"`
	RequestTimeout     time.Duration     `env:"AUTH_REQUEST_TIMEOUT" envDefault:"5s"`
}

// LoadOptions parses AUTH_* environment variables and validates them.
func LoadOptions() (*Options, error) {
	opts, err := env.ParseAs[Options]()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to parse auth options from environment")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Validate checks the values that would make token issuance unsafe.
func (o Options) Validate() error {
	err := validation.ValidateStruct(&o,
		validation.Field(&o.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&o.SigningKeyID, validation.Required),
		validation.Field(&o.AccessTokenTTL, validation.Required),
		validation.Field(&o.RefreshTokenTTL, validation.Required, validation.By(func(value any) error {
			if ttl, _ := value.(time.Duration); ttl <= o.AccessTokenTTL {
				return errors.New("must be longer than the access token ttl", errors.CategoryValidation)
			}
			return nil
		})),
		validation.Field(&o.AccessCookieName, validation.Required),
		validation.Field(&o.RefreshCookieName, validation.Required, validation.NotIn(o.AccessCookieName)),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid auth options").
			WithCode(errors.CodeBadRequest)
	}
	return nil
}

var _ Config = Options{}

func (o Options) GetSigningKey() string                    { return o.SigningKey }
func (o Options) GetSigningKeyID() string                  { return o.SigningKeyID }
func (o Options) GetRetiredSigningKeys() map[string]string { return o.RetiredSigningKeys }
func (o Options) GetIssuer() string                        { return o.Issuer }
func (o Options) GetAudience() []string                    { return o.Audience }
func (o Options) GetAccessTokenTTL() time.Duration         { return o.AccessTokenTTL }
func (o Options) GetRefreshTokenTTL() time.Duration        { return o.RefreshTokenTTL }
func (o Options) GetContextKey() string                    { return o.ContextKey }
func (o Options) GetAuthScheme() string                    { return o.AuthScheme }
func (o Options) GetAccessCookieName() string              { return o.AccessCookieName }
func (o Options) GetRefreshCookieName() string             { return o.RefreshCookieName }
func (o Options) GetSetCookieHeader() string               { return o.SetCookieHeader }
func (o Options) GetCookieDomain() string                  { return strings.TrimSpace(o.CookieDomain) }
func (o Options) GetRequestTimeout() time.Duration         { return o.RequestTimeout }

// GetTokenLookup returns AUTH_TOKEN_LOOKUP, or the Authorization header
// followed by the configured access cookie when it is unset.
func (o Options) GetTokenLookup() string {
	if lookup := strings.TrimSpace(o.TokenLookup); lookup != "" {
		return lookup
	}
	lookup := "header:Authorization"
	if o.AccessCookieName != "" {
		lookup += ",cookie:" + o.AccessCookieName
	}
	return lookup
}
