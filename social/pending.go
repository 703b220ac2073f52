package social

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultPendingCookieName = "blog_pending_signup"
	DefaultPendingCookieTTL  = 10 * time.Minute
)

// PendingCookie carries the display name of a new account from the
// sign up challenge to the provider callback.
type PendingCookie struct {
	Name string
	TTL  time.Duration
	// Insecure drops the Secure attribute, for plain http development servers.
	Insecure bool
}

// DefaultPendingCookie returns the cookie settings used by NewLinkFlow.
func DefaultPendingCookie() PendingCookie {
	return PendingCookie{Name: DefaultPendingCookieName, TTL: DefaultPendingCookieTTL}
}

// Write stores displayName in a cookie scoped to path.
func (p PendingCookie) Write(c *fiber.Ctx, path, displayName string) {
	c.Cookie(&fiber.Cookie{
		Name:     p.Name,
		Value:    url.QueryEscape(displayName),
		Path:     path,
		MaxAge:   int(p.TTL.Seconds()),
		Expires:  time.Now().Add(p.TTL),
		Secure:   !p.Insecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// Consume reads the pending display name and deletes the cookie. A second
// call within the same request reports nothing.
func (p PendingCookie) Consume(c *fiber.Ctx, path string) (string, bool) {
	raw := c.Cookies(p.Name)
	if raw == "" || c.Locals(p.consumedKey()) != nil {
		return "", false
	}
	c.Locals(p.consumedKey(), true)

	c.Cookie(&fiber.Cookie{
		Name:     p.Name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   !p.Insecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	name, err := url.QueryUnescape(raw)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

func (p PendingCookie) consumedKey() string {
	return "social.pending." + p.Name
}
