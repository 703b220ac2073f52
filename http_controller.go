package auth

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// AuthControllerRoutes are the paths the controller mounts.
type AuthControllerRoutes struct {
	Login   string
	SignUp  string
	Refresh string
	Logout  string
	Me      string
}

// DefaultAuthRoutes returns the default /auth routes
func DefaultAuthRoutes() AuthControllerRoutes {
	return AuthControllerRoutes{
		Login:   "/login",
		SignUp:  "/signup",
		Refresh: "/refresh",
		Logout:  "/logout",
		Me:      "/me",
	}
}

// AuthController exposes login, sign up, refresh, logout and identity endpoints.
type AuthController struct {
	Routes  AuthControllerRoutes
	auther  *Auther
	guard   *RotationGuard
	channel *Channel
	protect fiber.Handler
	banGate *BanGate
	logger  Logger
}

// NewAuthController wires the controller. protect must be the primary
// scheme middleware, banGate runs right after it on protected routes.
func NewAuthController(auther *Auther, guard *RotationGuard, channel *Channel, protect fiber.Handler, banGate *BanGate) *AuthController {
	return &AuthController{
		Routes:  DefaultAuthRoutes(),
		auther:  auther,
		guard:   guard,
		channel: channel,
		protect: protect,
		banGate: banGate,
		logger:  ResolveLogger("auth.http_controller", nil),
	}
}

func (a *AuthController) WithLogger(l Logger) *AuthController {
	a.logger = ResolveLogger("auth.http_controller", l)
	return a
}

// RegisterRoutes mounts the endpoints on r.
func (a *AuthController) RegisterRoutes(r fiber.Router) {
	r.Post(a.Routes.Login, a.LoginPost)
	r.Post(a.Routes.SignUp, a.SignUpPost)
	r.Post(a.Routes.Refresh, a.RefreshPost)
	r.Post(a.Routes.Logout, a.LogoutPost)
	r.Get(a.Routes.Me, a.protect, a.banGate.Middleware(), a.MeGet)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := new(LoginRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.renderError(c, withSource(ErrInvalidPayload, err, nil))
	}
	if err := payload.Validate(); err != nil {
		return a.renderError(c, err)
	}

	token, err := a.auther.Login(c.UserContext(), payload.Login, payload.Password)
	if err != nil {
		return a.renderError(c, err)
	}

	return a.channel.Write(c, a.channel.ChannelFromRequest(c), token, http.StatusOK)
}

func (a *AuthController) SignUpPost(c *fiber.Ctx) error {
	payload := new(SignUpRequest)
	if err := c.BodyParser(payload); err != nil {
		return a.renderError(c, withSource(ErrInvalidPayload, err, nil))
	}

	token, err := a.auther.SignUp(c.UserContext(), *payload)
	if err != nil {
		return a.renderError(c, err)
	}

	return a.channel.Write(c, a.channel.ChannelFromRequest(c), token, http.StatusCreated)
}

// RefreshPost rotates the presented pair. The new pair goes out through
// the channel the caller asks for on this call.
func (a *AuthController) RefreshPost(c *fiber.Ctx) error {
	presented, _, ok, err := a.channel.ReadToken(c)
	if err != nil {
		return a.renderError(c, err)
	}
	if !ok {
		return a.renderError(c, ErrSessionNotFound)
	}

	rotated, err := a.guard.Rotate(c.UserContext(), presented)
	if err != nil {
		if HasTextCode(err, TextCodeUserRecordMissing) {
			a.channel.ClearCookies(c)
		}
		return a.renderError(c, err)
	}

	return a.channel.Write(c, a.channel.ChannelFromRequest(c), rotated, http.StatusOK)
}

// LogoutPost clears cookies and evicts the session. It answers 200 when
// there was something to remove and 204 otherwise. An unreadable body
// falls back to the cookie pair.
func (a *AuthController) LogoutPost(c *fiber.Ctx) error {
	presented, _, ok, err := a.channel.ReadToken(c)
	if err != nil {
		a.logger.Debug("logout body unreadable, using cookies", "error", err)
		presented, ok = a.channel.ReadCookie(c)
	}

	found := a.channel.ClearCookies(c)
	var subjectID int64
	if ok {
		evicted, err := a.guard.Revoke(c.UserContext(), presented.RefreshToken)
		if err != nil {
			return a.renderError(c, err)
		}
		found = found || evicted
		subjectID = a.guard.subjectOf(presented.AccessToken)
	}

	if !found {
		return c.SendStatus(http.StatusNoContent)
	}

	a.auther.emit(c.UserContext(), ActivityEventLogout, subjectID, nil)
	return c.SendStatus(http.StatusOK)
}

// MeResponse echoes the verified identity
type MeResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	Roles       []string  `json:"roles"`
	Source      string    `json:"source"`
	Provider    string    `json:"provider,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (a *AuthController) MeGet(c *fiber.Ctx) error {
	claims, ok := ClaimsFromLocals(c, a.banGate.contextKey)
	if !ok {
		return a.renderError(c, ErrUnauthenticated)
	}
	src := claims.Source()
	return c.JSON(MeResponse{
		ID:          claims.SubjectID(),
		DisplayName: claims.DisplayName(),
		Roles:       claims.Roles(),
		Source:      string(src.Kind),
		Provider:    src.Provider,
		ExpiresAt:   claims.Expires(),
	})
}

func (a *AuthController) renderError(c *fiber.Ctx, err error) error {
	payload := ErrorPayloadFor(err)
	if payload.Status >= http.StatusInternalServerError {
		a.logger.Error("auth request failed", "path", c.Path(), "error", err)
	}
	return c.Status(payload.Status).JSON(payload)
}
