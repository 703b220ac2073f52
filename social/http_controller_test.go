package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/go-auth"
	"github.com/inkwell-blog/go-auth/repository"
)

type stubProvider struct {
	name         string
	profile      *SocialProfile
	exchangeErr  error
	lastVerifier string
}

func (p *stubProvider) Name() string {
	return p.name
}

func (p *stubProvider) AuthCodeURL(state string, opts ...AuthCodeOption) string {
	cfg := ApplyAuthCodeOptions(nil, opts...)
	return "https://provider.example/authorize?state=" + url.QueryEscape(state) +
		"&code_challenge=" + url.QueryEscape(cfg.CodeChallenge)
}

func (p *stubProvider) Exchange(ctx context.Context, code string, opts ...ExchangeOption) (*Token, error) {
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	p.lastVerifier = ApplyExchangeOptions(opts...).CodeVerifier
	return &Token{AccessToken: "provider-token-" + code, TokenType: "bearer"}, nil
}

func (p *stubProvider) UserInfo(ctx context.Context, token *Token) (*SocialProfile, error) {
	return p.profile, nil
}

type controllerHarness struct {
	app      *fiber.App
	store    *repository.IdentityStore
	provider *stubProvider
}

func newControllerHarness(t *testing.T) *controllerHarness {
	t.Helper()
	ctx := context.Background()

	db, err := repository.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mgr := repository.NewManager(db)
	require.NoError(t, mgr.CreateSchema(ctx))
	store := mgr.Identities()

	codec, err := auth.NewTokenCodec(auth.KeySet{
		Active: auth.SigningKey{ID: "k1", Secret: []byte(strings.Repeat("s", 32))},
	}, "test", []string{"test"})
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(codec, time.Minute, time.Hour)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := auth.NewRedisSessionCache(client, time.Hour)

	auther := auth.NewAuthenticator(store, auth.NewClaimsAssembler(store, nil), issuer, cache)

	provider := &stubProvider{
		name: "github",
		profile: &SocialProfile{
			ProviderUserID: "9001",
			Provider:       "github",
			Name:           "Octo Cat",
			Username:       "octo",
			Email:          "octo@example.com",
			EmailVerified:  true,
		},
	}

	authenticator := NewAuthenticator(
		NewEncryptedStateManager(testStateKey, testStateHMAC, time.Minute),
		WithProvider(provider),
	)
	flow := NewLinkFlow(auth.DefaultSignUpRules())
	controller := NewHTTPController(authenticator, flow, auther, auth.NewChannel(nil), HTTPConfig{
		SuccessRedirect: "/home",
	})

	app := fiber.New()
	controller.RegisterRoutes(app.Group(DefaultPathPrefix))

	return &controllerHarness{app: app, store: store, provider: provider}
}

func (h *controllerHarness) challenge(t *testing.T, query string) (*http.Response, string) {
	t.Helper()
	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, DefaultPathPrefix+"/github?"+query, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	assert.NotEmpty(t, location.Query().Get("code_challenge"))
	return resp, state
}

func (h *controllerHarness) callback(t *testing.T, state string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	target := DefaultPathPrefix + "/github/callback?code=abc&state=" + url.QueryEscape(state)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, ck := range cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	return resp
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == name && ck.Value != "" {
			return ck
		}
	}
	return nil
}

func TestHTTPController_SignUpThenLogin(t *testing.T) {
	h := newControllerHarness(t)

	resp, state := h.challenge(t, "mode=signup&displayName="+url.QueryEscape("Octo Cat"))
	pending := cookieNamed(resp, DefaultPendingCookieName)
	require.NotNil(t, pending)

	resp = h.callback(t, state, pending)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/home", resp.Header.Get("Location"))
	assert.NotEmpty(t, h.provider.lastVerifier)
	require.NotNil(t, cookieNamed(resp, auth.DefaultAccessCookieName))
	require.NotNil(t, cookieNamed(resp, auth.DefaultRefreshCookieName))

	user, err := h.store.GetByExternalLogin(context.Background(), "github", "9001")
	require.NoError(t, err)
	assert.Equal(t, "Octo Cat", user.DisplayName)
	assert.Equal(t, "octo@example.com", user.Email)

	roles, err := h.store.RolesForUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleReader}, roles)

	_, state = h.challenge(t, "redirect_url=/posts")
	resp = h.callback(t, state)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/posts", resp.Header.Get("Location"))
	assert.NotNil(t, cookieNamed(resp, auth.DefaultAccessCookieName))
}

func TestHTTPController_SignUpCallbackWithoutPendingName(t *testing.T) {
	h := newControllerHarness(t)

	_, state := h.challenge(t, "mode=signup&displayName=Octo")
	resp := h.callback(t, state)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, cookieNamed(resp, auth.DefaultAccessCookieName))
}

func TestHTTPController_LoginWithoutLinkedAccount(t *testing.T) {
	h := newControllerHarness(t)

	_, state := h.challenge(t, "")
	resp := h.callback(t, state)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPController_ChallengeErrors(t *testing.T) {
	h := newControllerHarness(t)

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, DefaultPathPrefix+"/gitlab", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = h.app.Test(httptest.NewRequest(http.MethodGet, DefaultPathPrefix+"/github?mode=link", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = h.app.Test(httptest.NewRequest(http.MethodGet, DefaultPathPrefix+"/github?mode=signup&displayName=x", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPController_CallbackErrors(t *testing.T) {
	h := newControllerHarness(t)

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, DefaultPathPrefix+"/github/callback?error=access_denied", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?oauth_error=access_denied", resp.Header.Get("Location"))

	resp, err = h.app.Test(httptest.NewRequest(http.MethodGet, DefaultPathPrefix+"/github/callback?code=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.callback(t, "forged-state")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPController_RejectsOffSiteRedirect(t *testing.T) {
	h := newControllerHarness(t)

	h.provider.profile.ProviderUserID = "42"
	_, err := h.store.Register(context.Background(), &auth.User{
		Login: "linked", DisplayName: "Linked", Email: "linked@example.com",
	}, auth.RoleReader)
	require.NoError(t, err)
	user, err := h.store.GetByIdentifier(context.Background(), "linked")
	require.NoError(t, err)
	require.NoError(t, h.store.Link(context.Background(), user.ID, &auth.ExternalLogin{Provider: "github", ProviderKey: "42"}))

	_, state := h.challenge(t, "redirect_url="+url.QueryEscape("//evil.example"))
	resp := h.callback(t, state)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/home", resp.Header.Get("Location"))
}
