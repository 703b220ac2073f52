package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"

	"github.com/inkwell-blog/go-auth"
)

type socialConfig struct {
	BaseURL         string        `env:"SOCIAL_BASE_URL" envDefault:"http://localhost:8080"`
	StateKey        string        `env:"SOCIAL_STATE_KEY"`
	StateHMACKey    string        `env:"SOCIAL_STATE_HMAC_KEY"`
	StateTTL        time.Duration `env:"SOCIAL_STATE_TTL" envDefault:"10m"`
	SuccessRedirect string        `env:"SOCIAL_SUCCESS_REDIRECT" envDefault:"/"`
	ErrorRedirect   string        `env:"SOCIAL_ERROR_REDIRECT" envDefault:"/login"`
	FailFast        bool          `env:"SOCIAL_FAIL_FAST"`
	InsecureCookies bool          `env:"SOCIAL_INSECURE_COOKIES"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

type config struct {
	Addr        string `env:"HTTP_ADDR" envDefault:":8080"`
	Env         string `env:"APP_ENV" envDefault:"dev"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:blogauth.db?cache=shared"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	Auth   auth.Options
	Social socialConfig
}

func loadConfig() (*config, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to parse environment")
	}
	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.validateSocial(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c config) socialEnabled() bool {
	return c.Social.GitHubClientID != "" || c.Social.GoogleClientID != ""
}

func (c config) validateSocial() error {
	if !c.socialEnabled() {
		return nil
	}
	s := c.Social
	err := validation.ValidateStruct(&s,
		validation.Field(&s.StateKey, validation.Required, validation.Length(32, 32)),
		validation.Field(&s.StateHMACKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&s.BaseURL, validation.Required),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid social login options")
	}
	return nil
}

// redacted is safe to print at startup.
func (c config) redacted() map[string]any {
	return map[string]any{
		"addr":         c.Addr,
		"env":          c.Env,
		"database":     redactURL(c.DatabaseURL),
		"redis":        redactURL(c.RedisURL),
		"issuer":       c.Auth.Issuer,
		"audience":     c.Auth.Audience,
		"key_id":       c.Auth.SigningKeyID,
		"access_ttl":   c.Auth.AccessTokenTTL.String(),
		"refresh_ttl":  c.Auth.RefreshTokenTTL.String(),
		"cookie_flag":  c.Auth.SetCookieHeader,
		"social":       c.socialEnabled(),
		"social_base":  c.Social.BaseURL,
		"social_fast":  c.Social.FailFast,
		"retired_keys": len(c.Auth.RetiredSigningKeys),
	}
}
