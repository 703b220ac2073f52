package social

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/inkwell-blog/go-auth"
)

// DefaultPathPrefix is where the external login routes are mounted.
const DefaultPathPrefix = "/auth/external"

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// SuccessRedirect is the default redirect after successful auth
	SuccessRedirect string

	// ErrorRedirect receives provider side failures (?oauth_error=)
	ErrorRedirect string
}

// HTTPController handles the external login challenge and callback.
type HTTPController struct {
	authenticator *Authenticator
	flow          *LinkFlow
	auther        *auth.Auther
	channel       *auth.Channel
	config        HTTPConfig
	logger        auth.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(authenticator *Authenticator, flow *LinkFlow, auther *auth.Auther, channel *auth.Channel, cfg HTTPConfig) *HTTPController {
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/login"
	}

	return &HTTPController{
		authenticator: authenticator,
		flow:          flow,
		auther:        auther,
		channel:       channel,
		config:        cfg,
		logger:        auth.ResolveLogger("social.http_controller", nil),
	}
}

func (h *HTTPController) WithLogger(logger auth.Logger) *HTTPController {
	h.logger = auth.ResolveLogger("social.http_controller", logger)
	return h
}

// RegisterRoutes registers the routes on a router mounted at the flow prefix.
func (h *HTTPController) RegisterRoutes(r fiber.Router) {
	r.Get("/:provider/callback", h.Callback)
	r.Get("/:provider", h.Challenge)
}

// Challenge starts the flow: ?mode=signup&displayName=... for new accounts.
func (h *HTTPController) Challenge(c *fiber.Ctx) error {
	provider := c.Params("provider")

	mode, err := ParseMode(c.Query("mode"))
	if err != nil {
		return renderFlowError(c, err)
	}

	redirectURL := c.Query("redirect_url", h.config.SuccessRedirect)
	if !isLocalRedirect(redirectURL) {
		redirectURL = h.config.SuccessRedirect
	}

	redirect, err := h.authenticator.BeginAuth(c.UserContext(), provider, mode, redirectURL)
	if err != nil {
		return renderFlowError(c, err)
	}

	if err := h.flow.Challenge(c, provider, mode, c.Query("displayName"), redirect.URL); err != nil {
		return renderFlowError(c, err)
	}
	return nil
}

// Callback completes the provider round trip, binds the principal and
// delivers the session through the cookie channel.
func (h *HTTPController) Callback(c *fiber.Ctx) error {
	provider := c.Params("provider")

	if errCode := c.Query("error"); errCode != "" {
		return c.Redirect(appendQueryParam(h.config.ErrorRedirect, "oauth_error", errCode), http.StatusFound)
	}

	code, state := c.Query("code"), c.Query("state")
	if code == "" || state == "" {
		return renderFlowError(c, ErrInvalidState.Clone().WithMetadata(map[string]any{"reason": "missing code or state"}))
	}

	done, err := h.authenticator.Complete(c.UserContext(), provider, code, state)
	if err != nil {
		return renderFlowError(c, err)
	}

	var token auth.AuthorizeToken
	switch done.Mode {
	case ModeSignUp:
		info, err := h.flow.BindSignUp(c, done.Principal)
		if err != nil {
			return renderFlowError(c, err)
		}
		token, err = h.auther.SignUpExternal(c.UserContext(), info.SignUp())
		if err != nil {
			return renderFlowError(c, err)
		}
	default:
		info, err := h.flow.BindLogin(done.Principal)
		if err != nil {
			return renderFlowError(c, err)
		}
		token, err = h.auther.LoginExternal(c.UserContext(), info.Provider, info.ProviderKey)
		if err != nil {
			return renderFlowError(c, err)
		}
	}

	h.channel.WriteCookie(c, token)

	redirectURL := done.RedirectURL
	if redirectURL == "" {
		redirectURL = h.config.SuccessRedirect
	}
	return c.Redirect(redirectURL, http.StatusFound)
}

// isLocalRedirect rejects absolute and protocol relative targets.
func isLocalRedirect(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//")
}

func appendQueryParam(rawURL, key, value string) string {
	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
