package social

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	"github.com/inkwell-blog/go-auth"
)

// Mode selects what the callback does with the external identity.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignUp Mode = "signup"
)

// ParseMode maps a query value to a Mode, empty means login.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeLogin:
		return ModeLogin, nil
	case ModeSignUp:
		return ModeSignUp, nil
	}
	return "", ErrUnknownMode.Clone().WithMetadata(map[string]any{"mode": raw})
}

// ExternalLoginInfo identifies an account at a provider.
type ExternalLoginInfo struct {
	Provider    string
	ProviderKey string
}

// ExternalSignUpInfo is everything needed to create a linked local account.
type ExternalSignUpInfo struct {
	ExternalLoginInfo
	DisplayName string
	Email       string
}

// SignUp converts the binding into the authenticator input.
func (i ExternalSignUpInfo) SignUp() auth.ExternalSignUp {
	return auth.ExternalSignUp{
		Provider:    i.Provider,
		ProviderKey: i.ProviderKey,
		DisplayName: i.DisplayName,
		Email:       i.Email,
	}
}

// LinkFlow runs the challenge and binds callback principals.
type LinkFlow struct {
	pending    PendingCookie
	rules      auth.SignUpRules
	pathPrefix string
	failFast   bool
	logger     auth.Logger
}

// LinkFlowOption configures a LinkFlow.
type LinkFlowOption func(*LinkFlow)

// WithPendingCookie overrides DefaultPendingCookie.
func WithPendingCookie(p PendingCookie) LinkFlowOption {
	return func(f *LinkFlow) {
		f.pending = p
	}
}

// WithPathPrefix sets the mount point of the challenge and callback routes.
func WithPathPrefix(prefix string) LinkFlowOption {
	return func(f *LinkFlow) {
		f.pathPrefix = strings.TrimRight(prefix, "/")
	}
}

// WithFailFast makes contract violations panic instead of returning.
func WithFailFast(enabled bool) LinkFlowOption {
	return func(f *LinkFlow) {
		f.failFast = enabled
	}
}

// WithLinkFlowLogger sets the logger.
func WithLinkFlowLogger(logger auth.Logger) LinkFlowOption {
	return func(f *LinkFlow) {
		f.logger = auth.ResolveLogger("social.linkflow", logger)
	}
}

// NewLinkFlow creates a LinkFlow validating display names against rules.
func NewLinkFlow(rules auth.SignUpRules, opts ...LinkFlowOption) *LinkFlow {
	f := &LinkFlow{
		pending:    DefaultPendingCookie(),
		rules:      rules,
		pathPrefix: DefaultPathPrefix,
		logger:     auth.ResolveLogger("social.linkflow", nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// CallbackPath is the path the provider redirects back to.
func (f *LinkFlow) CallbackPath(provider string) string {
	return f.pathPrefix + "/" + provider + "/callback"
}

// Challenge redirects to the provider. For sign ups it first validates the
// display name and stores it in the pending cookie.
func (f *LinkFlow) Challenge(c *fiber.Ctx, provider string, mode Mode, displayName, authURL string) error {
	if mode == ModeSignUp {
		displayName = strings.TrimSpace(displayName)
		if err := auth.ValidateDisplayName(displayName, f.rules); err != nil {
			return err
		}
		f.pending.Write(c, f.CallbackPath(provider), displayName)
	}
	return c.Redirect(authURL, http.StatusFound)
}

// BindLogin extracts the provider and subject of principal.
func (f *LinkFlow) BindLogin(principal ExternalPrincipal) (ExternalLoginInfo, error) {
	provider := strings.TrimSpace(principal.Scheme)
	if provider == "" {
		return ExternalLoginInfo{}, f.violation(principal, "scheme")
	}

	key, ok := principal.Claim(ClaimNameIdentifier)
	if !ok {
		return ExternalLoginInfo{}, f.violation(principal, ClaimNameIdentifier)
	}

	return ExternalLoginInfo{Provider: provider, ProviderKey: key}, nil
}

// BindSignUp binds the login part, consumes the pending display name and
// requires an email claim.
func (f *LinkFlow) BindSignUp(c *fiber.Ctx, principal ExternalPrincipal) (ExternalSignUpInfo, error) {
	login, err := f.BindLogin(principal)
	if err != nil {
		return ExternalSignUpInfo{}, err
	}

	name, ok := f.pending.Consume(c, f.CallbackPath(login.Provider))
	if !ok {
		return ExternalSignUpInfo{}, ErrMissingPendingName.Clone().
			WithMetadata(map[string]any{"provider": login.Provider})
	}
	if err := auth.ValidateDisplayName(name, f.rules); err != nil {
		return ExternalSignUpInfo{}, err
	}

	email, ok := principal.Claim(ClaimEmail)
	if !ok {
		return ExternalSignUpInfo{}, f.violation(principal, ClaimEmail)
	}

	return ExternalSignUpInfo{
		ExternalLoginInfo: login,
		DisplayName:       name,
		Email:             email,
	}, nil
}

func (f *LinkFlow) violation(principal ExternalPrincipal, claim string) error {
	err := &ContractViolationError{Scheme: principal.Scheme, Claim: claim}
	if f.failFast {
		panic(err)
	}
	f.logger.Error("external principal contract violated", "scheme", principal.Scheme, "claim", claim)
	return err
}

// renderFlowError keeps contract violations opaque.
func renderFlowError(c *fiber.Ctx, err error) error {
	if IsContractViolation(err) {
		return auth.RenderError(c, errors.Wrap(err, errors.CategoryInternal, "external login failed"))
	}
	return auth.RenderError(c, err)
}
