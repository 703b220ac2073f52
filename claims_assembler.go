package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// ClaimsAssembler builds claims sets from the durable identity store.
// Roles are always read fresh so role changes apply on the next issuance.
type ClaimsAssembler struct {
	store  IdentityReader
	logger Logger
}

// NewClaimsAssembler returns an assembler reading from store
func NewClaimsAssembler(store IdentityReader, logger Logger) *ClaimsAssembler {
	return &ClaimsAssembler{
		store:  store,
		logger: ResolveLogger("auth.claims_assembler", logger),
	}
}

// FromUser loads the user by id and assembles its claims.
// A missing user yields ErrUserRecordMissing.
func (a *ClaimsAssembler) FromUser(ctx context.Context, userID int64, source IdentitySource) (ClaimsIdentity, error) {
	user, err := a.store.GetByID(ctx, userID)
	if err != nil {
		if errors.IsNotFound(err) || HasTextCode(err, TextCodeIdentityNotFound) {
			return ClaimsIdentity{}, withSource(ErrUserRecordMissing, err, map[string]any{"user_id": userID})
		}
		return ClaimsIdentity{}, errors.Wrap(err, errors.CategoryInternal, "failed to load user for claims")
	}
	return a.FromRecord(ctx, user, source)
}

// FromRecord assembles claims for an already resolved user record.
func (a *ClaimsAssembler) FromRecord(ctx context.Context, user *User, source IdentitySource) (ClaimsIdentity, error) {
	if user == nil {
		return ClaimsIdentity{}, ErrUserRecordMissing
	}

	roles, err := a.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return ClaimsIdentity{}, errors.Wrap(err, errors.CategoryInternal, "failed to load user roles")
	}

	name := user.DisplayName
	if strings.TrimSpace(name) == "" {
		name = user.Login
	}

	return ClaimsIdentity{
		SubjectID:   user.ID,
		DisplayName: name,
		Roles:       NewRoleSet(roles...),
		Source:      source,
	}, nil
}

// FromExternalLogin resolves the local account linked to the provider
// identity. The provider key is only used for that lookup and never
// ends up in the claims.
func (a *ClaimsAssembler) FromExternalLogin(ctx context.Context, provider, providerKey string) (ClaimsIdentity, error) {
	user, err := a.store.GetByExternalLogin(ctx, provider, providerKey)
	if err != nil {
		if errors.IsNotFound(err) || HasTextCode(err, TextCodeIdentityNotFound) {
			return ClaimsIdentity{}, withSource(ErrExternalLoginNotLinked, err, map[string]any{"provider": provider})
		}
		return ClaimsIdentity{}, errors.Wrap(err, errors.CategoryInternal, "failed to resolve external login")
	}
	return a.FromRecord(ctx, user, OAuthSource(provider))
}
