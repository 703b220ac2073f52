package social

import (
	"fmt"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeProviderNotFound   = "social_provider_not_found"
	TextCodeInvalidState       = "social_invalid_state"
	TextCodeStateExpired       = "social_state_expired"
	TextCodeTokenExchangeFail  = "social_token_exchange_failed"
	TextCodeUserInfoFail       = "social_user_info_failed"
	TextCodeMissingPendingName = "social_missing_pending_name"
	TextCodeUnknownMode        = "social_unknown_mode"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching user info fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrMissingPendingName is returned when a sign up callback arrives without
// the display name written at challenge time. The client can recover by
// starting the sign up again.
var ErrMissingPendingName = errors.New("display name is missing, restart the sign up", errors.CategoryValidation).
	WithTextCode(TextCodeMissingPendingName).
	WithCode(errors.CodeBadRequest)

// ErrUnknownMode is returned for a challenge mode other than login or signup.
var ErrUnknownMode = errors.New("unknown external login mode", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownMode).
	WithCode(errors.CodeBadRequest)

// ContractViolationError reports a principal that breaks the guarantees of
// the external authentication step, such as a missing provider or subject
// claim. It is not user recoverable.
type ContractViolationError struct {
	Scheme string
	Claim  string
}

func (e *ContractViolationError) Error() string {
	if e.Scheme == "" {
		return fmt.Sprintf("external principal contract violated: missing %s", e.Claim)
	}
	return fmt.Sprintf("external principal contract violated: %s principal missing %s", e.Scheme, e.Claim)
}

// IsContractViolation reports whether err is a ContractViolationError.
func IsContractViolation(err error) bool {
	var cv *ContractViolationError
	return errors.As(err, &cv)
}
