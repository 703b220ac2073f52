package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"

	"github.com/inkwell-blog/go-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores verified claims in the request user context.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// ProtectedRoute authenticates requests with the access token scheme.
// Missing, invalid and expired tokens all render the same 401.
func ProtectedRoute(cfg Config, validator jwtware.TokenValidator, listeners ...ValidationListener) fiber.Handler {
	return jwtware.New(jwtware.Config{
		TokenValidator:      validator,
		ContextKey:          cfg.GetContextKey(),
		TokenLookup:         cfg.GetTokenLookup(),
		AuthScheme:          cfg.GetAuthScheme(),
		ContextEnricher:     ContextEnricherAdapter,
		ValidationListeners: listeners,
		ErrorHandler:        middlewareErrorHandler,
	})
}

func middlewareErrorHandler(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrAccessDenied) {
		return RenderError(c, withSource(ErrForbidden, err, nil))
	}
	return RenderError(c, withSource(ErrUnauthenticated, err, nil))
}
