package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Auther runs the login flows and hands out cached sessions.
type Auther struct {
	store     IdentityStore
	users     *UserProvider
	assembler *ClaimsAssembler
	issuer    *TokenIssuer
	cache     SessionCache
	rules     SignUpRules
	activity  ActivitySink
	logger    Logger
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(store IdentityStore, assembler *ClaimsAssembler, issuer *TokenIssuer, cache SessionCache) *Auther {
	return &Auther{
		store:     store,
		users:     NewUserProvider(store),
		assembler: assembler,
		issuer:    issuer,
		cache:     cache,
		rules:     DefaultSignUpRules(),
		activity:  noopActivitySink{},
		logger:    ResolveLogger("auth.authenticator", nil),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = ResolveLogger("auth.authenticator", logger)
	s.users.WithLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

// WithSignUpRules overrides DefaultSignUpRules
func (s *Auther) WithSignUpRules(rules SignUpRules) *Auther {
	s.rules = rules
	return s
}

// WithUserProvider replaces the password verifier
func (s *Auther) WithUserProvider(users *UserProvider) *Auther {
	if users != nil {
		s.users = users
	}
	return s
}

// SignUpRules returns the rules the authenticator validates against.
func (s *Auther) SignUpRules() SignUpRules {
	return s.rules
}

// Login verifies local credentials and starts a session.
func (s *Auther) Login(ctx context.Context, login, password string) (AuthorizeToken, error) {
	user, err := s.users.VerifyIdentity(ctx, login, password)
	if err != nil {
		s.logger.Info("login rejected", "login", login, "error", err)
		s.emit(ctx, ActivityEventLoginFailure, 0, map[string]any{"login": login})
		return AuthorizeToken{}, err
	}

	identity, err := s.assembler.FromRecord(ctx, user, PasswordSource())
	if err != nil {
		return AuthorizeToken{}, err
	}

	token, err := s.StartSession(ctx, identity)
	if err != nil {
		return AuthorizeToken{}, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID, nil)
	return token, nil
}

// SignUp registers a local account and starts a session for it.
func (s *Auther) SignUp(ctx context.Context, req SignUpRequest) (AuthorizeToken, error) {
	if err := req.Validate(s.rules); err != nil {
		return AuthorizeToken{}, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return AuthorizeToken{}, err
	}

	user, err := s.store.Register(ctx, &User{
		Login:        strings.TrimSpace(req.Login),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
	}, DefaultSignUpRole)
	if err != nil {
		return AuthorizeToken{}, err
	}

	identity, err := s.assembler.FromRecord(ctx, user, PasswordSource())
	if err != nil {
		return AuthorizeToken{}, err
	}

	token, err := s.StartSession(ctx, identity)
	if err != nil {
		return AuthorizeToken{}, err
	}

	s.emit(ctx, ActivityEventSignUp, user.ID, nil)
	return token, nil
}

// LoginExternal starts a session for the local account linked to the
// provider identity.
func (s *Auther) LoginExternal(ctx context.Context, provider, providerKey string) (AuthorizeToken, error) {
	identity, err := s.assembler.FromExternalLogin(ctx, provider, providerKey)
	if err != nil {
		return AuthorizeToken{}, err
	}

	token, err := s.StartSession(ctx, identity)
	if err != nil {
		return AuthorizeToken{}, err
	}

	s.emit(ctx, ActivityEventSocialLogin, identity.SubjectID, map[string]any{"provider": provider})
	return token, nil
}

// ExternalSignUp carries what a provider callback knows about a new account.
type ExternalSignUp struct {
	Provider    string
	ProviderKey string
	DisplayName string
	Email       string
}

// SignUpExternal creates a local account linked to the provider
// identity and starts a session for it.
func (s *Auther) SignUpExternal(ctx context.Context, in ExternalSignUp) (AuthorizeToken, error) {
	if err := ValidateDisplayName(in.DisplayName, s.rules); err != nil {
		return AuthorizeToken{}, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	user, err := s.store.RegisterExternal(ctx, &User{
		Login:       externalLogin(in.Provider, in.ProviderKey),
		DisplayName: strings.TrimSpace(in.DisplayName),
		Email:       email,
	}, &ExternalLogin{
		Provider:    in.Provider,
		ProviderKey: in.ProviderKey,
	}, DefaultSignUpRole)
	if err != nil {
		return AuthorizeToken{}, err
	}

	identity, err := s.assembler.FromRecord(ctx, user, OAuthSource(in.Provider))
	if err != nil {
		return AuthorizeToken{}, err
	}

	token, err := s.StartSession(ctx, identity)
	if err != nil {
		return AuthorizeToken{}, err
	}

	s.emit(ctx, ActivityEventSocialSignUp, user.ID, map[string]any{"provider": in.Provider})
	return token, nil
}

// StartSession issues a pair for identity and caches it.
func (s *Auther) StartSession(ctx context.Context, identity ClaimsIdentity) (AuthorizeToken, error) {
	if identity.SubjectID == 0 {
		return AuthorizeToken{}, errors.New("cannot start a session without a subject", errors.CategoryInternal)
	}

	token, err := s.issuer.IssueToken(identity)
	if err != nil {
		return AuthorizeToken{}, err
	}

	if err := s.cache.Cache(ctx, token); err != nil {
		return AuthorizeToken{}, err
	}
	return token, nil
}

func (s *Auther) emit(ctx context.Context, kind ActivityEventType, userID int64, meta map[string]any) {
	err := s.activity.Record(ctx, ActivityEvent{
		EventType:  kind,
		UserID:     userID,
		Metadata:   meta,
		OccurredAt: time.Now(),
	})
	if err != nil {
		s.logger.Warn("activity sink failed", "event", string(kind), "error", err)
	}
}

// externalLogin derives a unique local login for provider created accounts.
func externalLogin(provider, key string) string {
	return strings.ToLower(provider) + ":" + key
}
