package social

import "strings"

// Claim names carried by an ExternalPrincipal.
const (
	ClaimNameIdentifier = "nameidentifier"
	ClaimEmail          = "email"
	ClaimName           = "name"
	ClaimUsername       = "username"
)

// ExternalPrincipal is the verified result of the provider round trip.
// Scheme is the provider that authenticated it.
type ExternalPrincipal struct {
	Scheme string
	Claims map[string]string
}

// NewPrincipal builds a principal from a provider profile. Empty profile
// fields produce no claim.
func NewPrincipal(scheme string, profile *SocialProfile) ExternalPrincipal {
	p := ExternalPrincipal{Scheme: scheme, Claims: map[string]string{}}
	if profile == nil {
		return p
	}
	p.set(ClaimNameIdentifier, profile.ProviderUserID)
	p.set(ClaimName, profile.DisplayName())
	p.set(ClaimUsername, profile.Username)
	p.set(ClaimEmail, profile.Email)
	return p
}

// Claim returns the value of a claim, ok is false when absent or blank.
func (p ExternalPrincipal) Claim(name string) (string, bool) {
	v, ok := p.Claims[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (p *ExternalPrincipal) set(name, value string) {
	if value = strings.TrimSpace(value); value != "" {
		p.Claims[name] = value
	}
}
