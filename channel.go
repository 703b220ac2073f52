package auth

import (
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

// DeliveryChannel is the transport carrying a token pair.
type DeliveryChannel int

const (
	ChannelBody DeliveryChannel = iota
	ChannelCookie
)

func (d DeliveryChannel) String() string {
	if d == ChannelCookie {
		return "cookie"
	}
	return "body"
}

const (
	DefaultAccessCookieName  = "blog_access"
	DefaultRefreshCookieName = "blog_refresh"
	DefaultSetCookieHeader   = "X-Set-Cookie"
)

// Channel reads and writes token pairs through cookies or JSON bodies.
type Channel struct {
	AccessCookie  string
	RefreshCookie string
	Domain        string
	FlagHeader    string
	SameSite      string
}

// NewChannel builds a Channel from config, falling back to defaults.
func NewChannel(cfg Config) *Channel {
	ch := &Channel{
		AccessCookie:  DefaultAccessCookieName,
		RefreshCookie: DefaultRefreshCookieName,
		FlagHeader:    DefaultSetCookieHeader,
		SameSite:      fiber.CookieSameSiteLaxMode,
	}
	if cfg == nil {
		return ch
	}
	if v := cfg.GetAccessCookieName(); v != "" {
		ch.AccessCookie = v
	}
	if v := cfg.GetRefreshCookieName(); v != "" {
		ch.RefreshCookie = v
	}
	if v := cfg.GetSetCookieHeader(); v != "" {
		ch.FlagHeader = v
	}
	ch.Domain = cfg.GetCookieDomain()
	return ch
}

// ChannelFromRequest reads the set-cookie flag header. Anything that is
// not a true boolean selects the body channel.
func (ch *Channel) ChannelFromRequest(c *fiber.Ctx) DeliveryChannel {
	raw := strings.TrimSpace(c.Get(ch.FlagHeader))
	if raw == "" {
		return ChannelBody
	}
	on, err := strconv.ParseBool(raw)
	if err != nil || !on {
		return ChannelBody
	}
	return ChannelCookie
}

// Write sends token through channel with the given status.
func (ch *Channel) Write(c *fiber.Ctx, channel DeliveryChannel, token AuthorizeToken, status int) error {
	if channel == ChannelCookie {
		ch.WriteCookie(c, token)
		return c.SendStatus(status)
	}
	return ch.WriteBody(c, token, status)
}

// WriteCookie sets the access and refresh cookies, each expiring with its token.
func (ch *Channel) WriteCookie(c *fiber.Ctx, token AuthorizeToken) {
	c.Cookie(ch.cookie(ch.AccessCookie, token.AccessToken, token.AccessExpiresAt))
	c.Cookie(ch.cookie(ch.RefreshCookie, token.RefreshToken, token.RefreshExpiresAt))
}

// WriteBody serializes the pair as the response payload.
func (ch *Channel) WriteBody(c *fiber.Ctx, token AuthorizeToken, status int) error {
	return c.Status(status).JSON(token)
}

// ReadCookie returns the pair when both cookies are present.
func (ch *Channel) ReadCookie(c *fiber.Ctx) (AuthorizeToken, bool) {
	token := AuthorizeToken{
		AccessToken:  c.Cookies(ch.AccessCookie),
		RefreshToken: c.Cookies(ch.RefreshCookie),
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return AuthorizeToken{}, false
	}
	return token, true
}

// ReadBody decodes a JSON pair. An empty body is absent; a body that
// does not carry both fields is ErrTokenPairMalformed.
func (ch *Channel) ReadBody(c *fiber.Ctx) (AuthorizeToken, bool, error) {
	body := c.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return AuthorizeToken{}, false, nil
	}

	var token AuthorizeToken
	if err := c.App().Config().JSONDecoder(body, &token); err != nil {
		return AuthorizeToken{}, false, withSource(ErrTokenPairMalformed, err, nil)
	}

	if err := validation.ValidateStruct(&token,
		validation.Field(&token.AccessToken, validation.Required),
		validation.Field(&token.RefreshToken, validation.Required),
	); err != nil {
		return AuthorizeToken{}, false, withSource(ErrTokenPairMalformed, err, map[string]any{
			"fields": err.Error(),
		})
	}

	return token, true, nil
}

// ReadToken prefers the body channel and falls back to cookies.
func (ch *Channel) ReadToken(c *fiber.Ctx) (AuthorizeToken, DeliveryChannel, bool, error) {
	token, ok, err := ch.ReadBody(c)
	if err != nil {
		return AuthorizeToken{}, ChannelBody, false, err
	}
	if ok {
		return token, ChannelBody, true, nil
	}

	if token, ok := ch.ReadCookie(c); ok {
		return token, ChannelCookie, true, nil
	}
	return AuthorizeToken{}, ChannelBody, false, nil
}

// ClearCookies expires any token cookie the request carried and reports
// whether there was one.
func (ch *Channel) ClearCookies(c *fiber.Ctx) bool {
	found := false
	for _, name := range []string{ch.AccessCookie, ch.RefreshCookie} {
		if c.Cookies(name) == "" {
			continue
		}
		found = true
		c.Cookie(ch.cookie(name, "", time.Now().Add(-24*time.Hour)))
	}
	return found
}

func (ch *Channel) cookie(name, value string, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   ch.Domain,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: ch.SameSite,
	}
}
