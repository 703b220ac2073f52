package auth_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/go-auth"
)

func TestNewChannelDefaults(t *testing.T) {
	ch := auth.NewChannel(nil)
	assert.Equal(t, auth.DefaultAccessCookieName, ch.AccessCookie)
	assert.Equal(t, auth.DefaultRefreshCookieName, ch.RefreshCookie)
	assert.Equal(t, auth.DefaultSetCookieHeader, ch.FlagHeader)

	opts := testOptions()
	opts.AccessCookieName = "a"
	opts.RefreshCookieName = "r"
	opts.CookieDomain = " blog.example "
	ch = auth.NewChannel(opts)
	assert.Equal(t, "a", ch.AccessCookie)
	assert.Equal(t, "r", ch.RefreshCookie)
	assert.Equal(t, "blog.example", ch.Domain)
}

func TestChannelFromRequest(t *testing.T) {
	ch := auth.NewChannel(nil)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(ch.ChannelFromRequest(c).String())
	})

	cases := map[string]string{
		"":      "body",
		"true":  "cookie",
		"1":     "cookie",
		"TRUE":  "cookie",
		"false": "body",
		"0":     "body",
		"yes":   "body",
	}
	for header, want := range cases {
		t.Run("header="+header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set(auth.DefaultSetCookieHeader, header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			body := make([]byte, 16)
			n, _ := resp.Body.Read(body)
			assert.Equal(t, want, string(body[:n]))
		})
	}
}

func TestChannelWriteCookie(t *testing.T) {
	ch := auth.NewChannel(nil)
	accessExp := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	refreshExp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	pair := auth.AuthorizeToken{
		AccessToken:      "access-1",
		RefreshToken:     "refresh-1",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return ch.Write(c, auth.ChannelCookie, pair, http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	access := cookieNamed(resp, auth.DefaultAccessCookieName)
	require.NotNil(t, access)
	assert.Equal(t, "access-1", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.True(t, access.Expires.Equal(accessExp))

	refresh := cookieNamed(resp, auth.DefaultRefreshCookieName)
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-1", refresh.Value)
	assert.True(t, refresh.Expires.Equal(refreshExp))
}

func TestChannelWriteBody(t *testing.T) {
	ch := auth.NewChannel(nil)
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return ch.Write(c, auth.ChannelBody, auth.AuthorizeToken{AccessToken: "a", RefreshToken: "r"}, http.StatusCreated)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	got := decodeJSON[map[string]string](t, resp)
	assert.Equal(t, map[string]string{"accessToken": "a", "refreshToken": "r"}, got)
}

type readResult struct {
	Token   auth.AuthorizeToken `json:"token"`
	Channel string              `json:"channel"`
	Found   bool                `json:"found"`
}

func TestChannelReadToken(t *testing.T) {
	ch := auth.NewChannel(nil)
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		token, channel, ok, err := ch.ReadToken(c)
		if err != nil {
			return auth.RenderError(c, err)
		}
		return c.JSON(readResult{Token: token, Channel: channel.String(), Found: ok})
	})

	send := func(t *testing.T, body string, cookies map[string]string) *http.Response {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		for k, v := range cookies {
			req.AddCookie(&http.Cookie{Name: k, Value: v})
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("body pair", func(t *testing.T) {
		resp := send(t, `{"accessToken":"a","refreshToken":"r"}`, nil)
		got := decodeJSON[readResult](t, resp)
		assert.True(t, got.Found)
		assert.Equal(t, "body", got.Channel)
		assert.Equal(t, "a", got.Token.AccessToken)
		assert.Equal(t, "r", got.Token.RefreshToken)
	})

	t.Run("body wins over cookies", func(t *testing.T) {
		resp := send(t, `{"accessToken":"a","refreshToken":"r"}`, map[string]string{
			auth.DefaultAccessCookieName:  "ca",
			auth.DefaultRefreshCookieName: "cr",
		})
		got := decodeJSON[readResult](t, resp)
		assert.Equal(t, "a", got.Token.AccessToken)
	})

	t.Run("cookie pair", func(t *testing.T) {
		resp := send(t, "", map[string]string{
			auth.DefaultAccessCookieName:  "ca",
			auth.DefaultRefreshCookieName: "cr",
		})
		got := decodeJSON[readResult](t, resp)
		assert.True(t, got.Found)
		assert.Equal(t, "cookie", got.Channel)
		assert.Equal(t, "cr", got.Token.RefreshToken)
	})

	t.Run("single cookie is absent", func(t *testing.T) {
		resp := send(t, "", map[string]string{auth.DefaultRefreshCookieName: "cr"})
		got := decodeJSON[readResult](t, resp)
		assert.False(t, got.Found)
	})

	t.Run("nothing", func(t *testing.T) {
		resp := send(t, "  ", nil)
		got := decodeJSON[readResult](t, resp)
		assert.False(t, got.Found)
	})

	t.Run("partial body", func(t *testing.T) {
		resp := send(t, `{"refreshToken":"r"}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeJSON[auth.ErrorPayload](t, resp)
		assert.Equal(t, auth.TextCodeTokenPairMalformed, payload.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		resp := send(t, `{"accessToken":`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		payload := decodeJSON[auth.ErrorPayload](t, resp)
		assert.Equal(t, auth.TextCodeTokenPairMalformed, payload.Code)
	})
}

func TestChannelClearCookies(t *testing.T) {
	ch := auth.NewChannel(nil)
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		if ch.ClearCookies(c) {
			return c.SendStatus(http.StatusOK)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultAccessCookieName, Value: "a"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ck := cookieNamed(resp, auth.DefaultAccessCookieName)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.True(t, ck.Expires.Before(time.Now()))
	assert.Nil(t, cookieNamed(resp, auth.DefaultRefreshCookieName))

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
