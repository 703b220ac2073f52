package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorPayload is the structured error body every endpoint renders.
type ErrorPayload struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

// RenderError writes err as an ErrorPayload. Token verification failures
// collapse into a single unauthenticated response and anything that is
// not a rich error becomes an opaque 500.
func RenderError(c *fiber.Ctx, err error) error {
	payload := ErrorPayloadFor(err)
	return c.Status(payload.Status).JSON(payload)
}

// ErrorPayloadFor maps err to its status and payload.
func ErrorPayloadFor(err error) ErrorPayload {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return ErrorPayload{Status: fe.Code, Title: http.StatusText(fe.Code), Detail: fe.Message}
		}
		return internalPayload()
	}

	if IsUnauthenticated(richErr) {
		richErr = ErrUnauthenticated
	}

	status := statusFor(richErr)
	if status >= http.StatusInternalServerError {
		return internalPayload()
	}

	return ErrorPayload{
		Status: status,
		Title:  http.StatusText(status),
		Detail: richErr.Message,
		Code:   richErr.TextCode,
	}
}

func internalPayload() ErrorPayload {
	return ErrorPayload{
		Status: http.StatusInternalServerError,
		Title:  http.StatusText(http.StatusInternalServerError),
		Detail: "an unexpected server error occurred",
	}
}

func statusFor(e *errors.Error) int {
	if e.Code >= 400 && e.Code < 600 {
		return e.Code
	}
	switch e.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// FiberErrorHandler logs and renders errors returned by handlers.
func FiberErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = ResolveLogger("auth.http", logger)
	return func(c *fiber.Ctx, err error) error {
		payload := ErrorPayloadFor(err)
		if payload.Status >= http.StatusInternalServerError {
			var richErr *errors.Error
			var meta any
			if errors.As(err, &richErr) {
				meta = richErr.Metadata
			}
			logger.Error("request failed",
				"error", err,
				"path", c.Path(),
				"details", print.MaybePrettyJSON(meta),
			)
		} else {
			logger.Debug("request rejected", "status", payload.Status, "code", payload.Code, "path", c.Path())
		}
		return c.Status(payload.Status).JSON(payload)
	}
}

// RequestTimeout bounds the user context of each request so store
// lookups are abandoned when the budget runs out.
func RequestTimeout(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if timeout <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
