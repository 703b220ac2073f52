package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/go-auth"
	"github.com/inkwell-blog/go-auth/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef"

const testPassword = "correct horse battery"

func testOptions() auth.Options {
	return auth.Options{
		SigningKey:        testSecret,
		SigningKeyID:      "k1",
		Issuer:            "inkwell-test",
		Audience:          []string{"inkwell-test"},
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
		ContextKey:        auth.DefaultContextKey,
		TokenLookup:       "header:Authorization,cookie:blog_access",
		AuthScheme:        "Bearer",
		AccessCookieName:  auth.DefaultAccessCookieName,
		RefreshCookieName: auth.DefaultRefreshCookieName,
		SetCookieHeader:   auth.DefaultSetCookieHeader,
		RequestTimeout:    5 * time.Second,
	}
}

func newTestCodec(t *testing.T, opts ...auth.CodecOption) *auth.TokenCodec {
	t.Helper()
	cfg := testOptions()
	codec, err := auth.NewTokenCodec(auth.KeySetFromConfig(cfg), cfg.Issuer, cfg.Audience, opts...)
	require.NoError(t, err)
	return codec
}

type eventRecorder struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *eventRecorder) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) kinds() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *eventRecorder) last(kind auth.ActivityEventType) (auth.ActivityEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType == kind {
			return r.events[i], true
		}
	}
	return auth.ActivityEvent{}, false
}

type harness struct {
	opts      auth.Options
	app       *fiber.App
	store     *repository.IdentityStore
	codec     *auth.TokenCodec
	issuer    *auth.TokenIssuer
	assembler *auth.ClaimsAssembler
	redis     *miniredis.Miniredis
	cache     *auth.RedisSessionCache
	auther    *auth.Auther
	guard     *auth.RotationGuard
	channel   *auth.Channel
	events    *eventRecorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	opts := testOptions()

	db, err := repository.Open("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	mgr := repository.NewManager(db)
	require.NoError(t, mgr.CreateSchema(ctx))
	store := mgr.Identities()

	codec := newTestCodec(t)
	issuer, err := auth.NewTokenIssuer(codec, opts.AccessTokenTTL, opts.RefreshTokenTTL)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := auth.NewRedisSessionCache(client, issuer.RefreshTTL())

	events := &eventRecorder{}
	assembler := auth.NewClaimsAssembler(store, nil)
	auther := auth.NewAuthenticator(store, assembler, issuer, cache).WithActivitySink(events)
	guard := auth.NewRotationGuard(cache, codec, assembler, issuer, auth.WithRotationActivitySink(events))
	channel := auth.NewChannel(opts)
	banGate := auth.NewBanGate(store,
		auth.WithBanContextKey(opts.GetContextKey()),
		auth.WithBanActivitySink(events),
	)

	controller := auth.NewAuthController(auther, guard, channel, auth.ProtectedRoute(opts, codec), banGate)

	app := fiber.New(fiber.Config{ErrorHandler: auth.FiberErrorHandler(nil)})
	app.Use(auth.RequestTimeout(opts.GetRequestTimeout()))
	controller.RegisterRoutes(app.Group("/auth"))

	return &harness{
		opts:      opts,
		app:       app,
		store:     store,
		codec:     codec,
		issuer:    issuer,
		assembler: assembler,
		redis:     mr,
		cache:     cache,
		auther:    auther,
		guard:     guard,
		channel:   channel,
		events:    events,
	}
}

// signUp registers a local account and returns its first token pair.
func (h *harness) signUp(t *testing.T, login string) (int64, auth.AuthorizeToken) {
	t.Helper()
	token, err := h.auther.SignUp(context.Background(), auth.SignUpRequest{
		Login:       login,
		DisplayName: "User " + login,
		Email:       login + "@example.com",
		Password:    testPassword,
	})
	require.NoError(t, err)

	claims, err := h.codec.Decode(token.AccessToken)
	require.NoError(t, err)
	return claims.SubjectID(), token
}

type request struct {
	method  string
	path    string
	body    any
	raw     string
	headers map[string]string
	cookies []*http.Cookie
}

func (h *harness) do(t *testing.T, r request) *http.Response {
	t.Helper()

	var body io.Reader
	switch {
	case r.raw != "":
		body = bytes.NewBufferString(r.raw)
	case r.body != nil:
		b, err := json.Marshal(r.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req := httptest.NewRequest(r.method, r.path, body)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, ck := range r.cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}
