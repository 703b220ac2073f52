package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SourceKind tells which identity source produced a claims set.
type SourceKind string

const (
	SourcePassword SourceKind = "password"
	SourceOAuth    SourceKind = "oauth"
)

// IdentitySource is the login method behind a claims set.
type IdentitySource struct {
	Kind     SourceKind
	Provider string // only set for SourceOAuth
}

// PasswordSource is the source of local account logins.
func PasswordSource() IdentitySource {
	return IdentitySource{Kind: SourcePassword}
}

// OAuthSource is the source of logins through provider.
func OAuthSource(provider string) IdentitySource {
	return IdentitySource{Kind: SourceOAuth, Provider: provider}
}

// ClaimsIdentity is the uniform identity embedded into access tokens,
// regardless of the login source.
type ClaimsIdentity struct {
	SubjectID   int64
	DisplayName string
	Roles       RoleSet
	Source      IdentitySource
}

// AuthClaims represents verified access token claims
type AuthClaims interface {
	Subject() string
	SubjectID() int64
	DisplayName() string
	Roles() RoleSet
	Source() IdentitySource
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID       int64    `json:"uid"`
	Name      string   `json:"name,omitempty"`
	UserRoles []string `json:"roles,omitempty"`
	Src       string   `json:"src"`
	IdP       string   `json:"idp,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

func newJWTClaims(identity ClaimsIdentity) *JWTClaims {
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatInt(identity.SubjectID, 10),
		},
		UID:       identity.SubjectID,
		Name:      identity.DisplayName,
		UserRoles: []string(NewRoleSet(identity.Roles...)),
		Src:       string(identity.Source.Kind),
		IdP:       identity.Source.Provider,
	}
}

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// SubjectID returns the numeric user id
func (c *JWTClaims) SubjectID() int64 {
	if c.UID != 0 {
		return c.UID
	}
	id, _ := strconv.ParseInt(c.RegisteredClaims.Subject, 10, 64)
	return id
}

func (c *JWTClaims) DisplayName() string {
	return c.Name
}

func (c *JWTClaims) Roles() RoleSet {
	return NewRoleSet(c.UserRoles...)
}

func (c *JWTClaims) Source() IdentitySource {
	return IdentitySource{Kind: SourceKind(c.Src), Provider: c.IdP}
}

func (c *JWTClaims) HasRole(role string) bool {
	return c.Roles().Has(role)
}

func (c *JWTClaims) IsAtLeast(minRole string) bool {
	return c.Roles().IsAtLeast(minRole)
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// Identity rebuilds the ClaimsIdentity carried by the token.
func (c *JWTClaims) Identity() ClaimsIdentity {
	return ClaimsIdentity{
		SubjectID:   c.SubjectID(),
		DisplayName: c.Name,
		Roles:       c.Roles(),
		Source:      c.Source(),
	}
}
