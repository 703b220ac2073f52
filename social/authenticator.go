package social

import (
	"context"
	"sort"
	"time"

	"github.com/goliatone/go-errors"

	"github.com/inkwell-blog/go-auth"
)

// Authenticator performs the provider round trip: it builds the redirect
// with an encrypted state and PKCE challenge, and turns the callback into
// an ExternalPrincipal.
type Authenticator struct {
	providers map[string]SocialProvider
	states    StateManager
	stateTTL  time.Duration
	now       func() time.Time
	logger    auth.Logger
}

// AuthenticatorOption configures the authenticator.
type AuthenticatorOption func(*Authenticator)

// WithProvider registers a social provider.
func WithProvider(provider SocialProvider) AuthenticatorOption {
	return func(a *Authenticator) {
		if provider != nil {
			a.providers[provider.Name()] = provider
		}
	}
}

// WithStateTTL sets the lifetime of the state parameter.
func WithStateTTL(ttl time.Duration) AuthenticatorOption {
	return func(a *Authenticator) {
		if ttl > 0 {
			a.stateTTL = ttl
		}
	}
}

// WithAuthenticatorClock overrides the time source.
func WithAuthenticatorClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAuthenticatorLogger sets the logger.
func WithAuthenticatorLogger(logger auth.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = auth.ResolveLogger("social.authenticator", logger)
	}
}

// NewAuthenticator creates an Authenticator using states to protect the
// round trip.
func NewAuthenticator(states StateManager, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		providers: map[string]SocialProvider{},
		states:    states,
		stateTTL:  10 * time.Minute,
		now:       time.Now,
		logger:    auth.ResolveLogger("social.authenticator", nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// Completion is the outcome of a successful callback.
type Completion struct {
	Principal   ExternalPrincipal
	Mode        Mode
	RedirectURL string
}

// Providers returns the registered provider names, sorted.
func (a *Authenticator) Providers() []string {
	names := make([]string, 0, len(a.providers))
	for name := range a.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BeginAuth starts the OAuth flow for a provider.
func (a *Authenticator) BeginAuth(ctx context.Context, providerName string, mode Mode, redirectURL string) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound.Clone().WithMetadata(map[string]any{"provider": providerName})
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to generate code verifier")
	}

	now := a.now()
	state := &OAuthState{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
		Mode:         mode,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(a.stateTTL).Unix(),
	}

	stateToken, err := a.states.Encode(state)
	if err != nil {
		return nil, err
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken, WithPKCE(computeCodeChallenge(codeVerifier), "S256")),
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// Complete verifies the state, exchanges the code and fetches the profile.
func (a *Authenticator) Complete(ctx context.Context, providerName, code, stateToken string) (*Completion, error) {
	state, err := a.states.Decode(stateToken)
	if err != nil {
		return nil, err
	}

	if state.Provider != providerName {
		return nil, ErrInvalidState.Clone().WithMetadata(map[string]any{
			"reason":   "provider mismatch",
			"provider": providerName,
		})
	}

	provider, ok := a.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound.Clone().WithMetadata(map[string]any{"provider": providerName})
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		a.logger.Warn("provider exchange failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		a.logger.Warn("provider user info failed", "provider", providerName, "error", err)
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	return &Completion{
		Principal:   NewPrincipal(provider.Name(), profile),
		Mode:        state.Mode,
		RedirectURL: state.RedirectURL,
	}, nil
}
