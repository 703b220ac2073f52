package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inkwell-blog/go-auth"
	"github.com/inkwell-blog/go-auth/activitymap"
	"github.com/inkwell-blog/go-auth/repository"
	"github.com/inkwell-blog/go-auth/social"
	"github.com/inkwell-blog/go-auth/social/providers/github"
	"github.com/inkwell-blog/go-auth/social/providers/google"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	base := auth.NewSlog(auth.LoggerConfig{
		Service: "blogauthd",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	slog.SetDefault(base)
	logger := auth.NewSlogLogger(base)
	logger.Info("starting", "config", print.MaybePrettyJSON(cfg.redacted()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	repos := repository.NewManager(db)
	repos.MustValidate()
	if err := repos.CreateSchema(ctx); err != nil {
		return err
	}
	store := repos.Identities()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unavailable: %w", err)
	}

	codec, err := auth.NewTokenCodec(auth.KeySetFromConfig(cfg.Auth), cfg.Auth.GetIssuer(), cfg.Auth.GetAudience(),
		auth.WithCodecLogger(logger))
	if err != nil {
		return err
	}
	issuer, err := auth.NewTokenIssuer(codec, cfg.Auth.GetAccessTokenTTL(), cfg.Auth.GetRefreshTokenTTL())
	if err != nil {
		return err
	}

	activity := activitySink()
	cache := auth.NewRedisSessionCache(rdb, issuer.RefreshTTL(), auth.WithSessionCacheLogger(logger))
	assembler := auth.NewClaimsAssembler(store, logger)
	auther := auth.NewAuthenticator(store, assembler, issuer, cache).
		WithLogger(logger).
		WithActivitySink(activity)
	guard := auth.NewRotationGuard(cache, codec, assembler, issuer,
		auth.WithRotationActivitySink(activity),
		auth.WithRotationLogger(logger))
	banGate := auth.NewBanGate(store,
		auth.WithBanContextKey(cfg.Auth.GetContextKey()),
		auth.WithBanActivitySink(activity),
		auth.WithBanLogger(logger))
	channel := auth.NewChannel(cfg.Auth)
	protect := auth.ProtectedRoute(cfg.Auth, codec)

	app := fiber.New(fiber.Config{
		AppName:      "blogauthd",
		ErrorHandler: auth.FiberErrorHandler(logger),
	})
	app.Use(requestLogger(base))
	app.Use(auth.RequestTimeout(cfg.Auth.GetRequestTimeout()))

	group := app.Group("/auth")
	auth.NewAuthController(auther, guard, channel, protect, banGate).
		WithLogger(logger).
		RegisterRoutes(group)

	if cfg.socialEnabled() {
		mountSocial(app, cfg, auther, channel, logger)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Addr)
	return app.Listen(cfg.Addr)
}

func mountSocial(app *fiber.App, cfg *config, auther *auth.Auther, channel *auth.Channel, logger auth.Logger) {
	callback := func(provider string) string {
		u, err := url.JoinPath(cfg.Social.BaseURL, social.DefaultPathPrefix, provider, "callback")
		if err != nil {
			return cfg.Social.BaseURL + social.DefaultPathPrefix + "/" + provider + "/callback"
		}
		return u
	}

	opts := []social.AuthenticatorOption{
		social.WithStateTTL(cfg.Social.StateTTL),
		social.WithAuthenticatorLogger(logger),
	}
	if cfg.Social.GitHubClientID != "" {
		opts = append(opts, social.WithProvider(github.New(github.Config{
			ClientID:     cfg.Social.GitHubClientID,
			ClientSecret: cfg.Social.GitHubClientSecret,
			CallbackURL:  callback("github"),
		})))
	}
	if cfg.Social.GoogleClientID != "" {
		opts = append(opts, social.WithProvider(google.New(google.Config{
			ClientID:     cfg.Social.GoogleClientID,
			ClientSecret: cfg.Social.GoogleClientSecret,
			CallbackURL:  callback("google"),
		})))
	}

	states := social.NewEncryptedStateManager([]byte(cfg.Social.StateKey), []byte(cfg.Social.StateHMACKey), cfg.Social.StateTTL)
	authenticator := social.NewAuthenticator(states, opts...)

	pending := social.DefaultPendingCookie()
	pending.Insecure = cfg.Social.InsecureCookies
	flow := social.NewLinkFlow(auther.SignUpRules(),
		social.WithPendingCookie(pending),
		social.WithFailFast(cfg.Social.FailFast),
		social.WithLinkFlowLogger(logger))

	social.NewHTTPController(authenticator, flow, auther, channel, social.HTTPConfig{
		SuccessRedirect: cfg.Social.SuccessRedirect,
		ErrorRedirect:   cfg.Social.ErrorRedirect,
	}).WithLogger(logger).RegisterRoutes(app.Group(social.DefaultPathPrefix))

	logger.Info("social login enabled", "providers", authenticator.Providers())
}

// activitySink logs normalized activity records through the request logger.
func activitySink() auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		record := activitymap.Normalize(event, activitymap.WithDefaultChannel("blogauthd"))
		auth.LoggerFromContext(ctx).InfoContext(ctx, "activity",
			"actor_id", record.ActorID,
			"verb", record.Verb,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"metadata", record.Metadata,
		)
		return nil
	})
}

// requestLogger tags every request with a ULID and a request scoped logger.
func requestLogger(base *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = ulid.Make().String()
		}
		c.Set(fiber.HeaderXRequestID, id)

		reqLogger := base.With("request_id", id, "method", c.Method(), "path", c.Path())
		c.SetUserContext(auth.WithLoggerContext(c.UserContext(), reqLogger))

		start := time.Now()
		err := c.Next()
		reqLogger.Info("request",
			"status", c.Response().StatusCode(),
			"duration", time.Since(start).String(),
		)
		return err
	}
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
