package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
)

// SignUpRules are the account constraints. Validators receive them as
// arguments, never from request state.
type SignUpRules struct {
	MinNameLength     int
	MaxNameLength     int
	MinLoginLength    int
	MaxLoginLength    int
	MinPasswordLength int
}

// DefaultSignUpRules returns the rules used when none are configured.
func DefaultSignUpRules() SignUpRules {
	return SignUpRules{
		MinNameLength:     2,
		MaxNameLength:     64,
		MinLoginLength:    3,
		MaxLoginLength:    32,
		MinPasswordLength: 10,
	}
}

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// DisplayNameRules returns the ozzo rules for a display name.
func DisplayNameRules(rules SignUpRules) []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(rules.MinNameLength, rules.MaxNameLength),
	}
}

// ValidateDisplayName checks name against rules.
func ValidateDisplayName(name string, rules SignUpRules) error {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, DisplayNameRules(rules)...); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid display name").
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeInvalidPayload).
			WithMetadata(map[string]any{"displayName": err.Error()})
	}
	return nil
}

// LoginRequest is the password login payload
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validatePayload(validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

// SignUpRequest is the local account registration payload
type SignUpRequest struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (r SignUpRequest) Validate(rules SignUpRules) error {
	return validatePayload(validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required,
			validation.Length(rules.MinLoginLength, rules.MaxLoginLength),
			validation.Match(loginPattern)),
		validation.Field(&r.DisplayName, DisplayNameRules(rules)...),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(rules.MinPasswordLength, 128)),
	))
}

func validatePayload(err error) error {
	if err == nil {
		return nil
	}
	meta := map[string]any{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			meta[field] = ferr.Error()
		}
	}
	return withSource(ErrInvalidPayload, err, meta)
}
