package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/inkwell-blog/go-auth"
)

// IdentityStore implements auth.IdentityStore using Bun.
type IdentityStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ auth.IdentityStore = (*IdentityStore)(nil)

// NewIdentityStore creates a new store.
func NewIdentityStore(db *bun.DB) *IdentityStore {
	return &IdentityStore{db: db, now: time.Now}
}

// WithClock overrides the time source used for bookkeeping columns.
func (s *IdentityStore) WithClock(now func() time.Time) *IdentityStore {
	if now != nil {
		s.now = now
	}
	return s
}

// GetByIdentifier finds a user by email when identifier looks like one,
// by login otherwise.
func (s *IdentityStore) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	identifier = strings.TrimSpace(identifier)
	column := "login"
	if strings.Contains(identifier, "@") {
		column = "email"
		identifier = strings.ToLower(identifier)
	}

	user := new(auth.User)
	err := s.db.NewSelect().
		Model(user).
		Where("?TableAlias.? = ?", bun.Ident(column), identifier).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, map[string]any{"identifier": identifier})
	}
	return user, nil
}

// GetByID implements auth.IdentityReader. Soft deleted users are not found.
func (s *IdentityStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	user := new(auth.User)
	err := s.db.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, map[string]any{"user_id": id})
	}
	return user, nil
}

// RolesForUser implements auth.IdentityReader.
func (s *IdentityStore) RolesForUser(ctx context.Context, id int64) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*auth.Role)(nil)).
		Column("rol.name").
		Join("JOIN user_roles AS urol ON urol.role_id = rol.id").
		Where("urol.user_id = ?", id).
		OrderExpr("rol.name ASC").
		Scan(ctx, &names)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user roles")
	}
	return names, nil
}

// GetByExternalLogin implements auth.IdentityReader.
func (s *IdentityStore) GetByExternalLogin(ctx context.Context, provider, providerKey string) (*auth.User, error) {
	user := new(auth.User)
	err := s.db.NewSelect().
		Model(user).
		Join("JOIN external_logins AS extl ON extl.user_id = usr.id").
		Where("extl.provider = ?", provider).
		Where("extl.provider_key = ?", providerKey).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, map[string]any{"provider": provider})
	}
	return user, nil
}

// BanExpiry implements auth.BanStateProvider. Unknown users are not banned.
func (s *IdentityStore) BanExpiry(ctx context.Context, id int64) (*time.Time, error) {
	user := new(auth.User)
	err := s.db.NewSelect().
		Model(user).
		Column("id", "banned_until").
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load ban state")
	}
	return user.BannedUntil, nil
}

// Ban sets or clears (until == nil) the ban expiry of a user.
func (s *IdentityStore) Ban(ctx context.Context, id int64, until *time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("banned_until = ?", until).
		Set("updated_at = ?", s.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update ban state")
	}
	return expectAffected(res, map[string]any{"user_id": id})
}

// Delete soft deletes a user. Live sessions of the user fail their next rotation.
func (s *IdentityStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().
		Model((*auth.User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}
	return expectAffected(res, map[string]any{"user_id": id})
}

// Register implements auth.AccountRegisterer.
func (s *IdentityStore) Register(ctx context.Context, user *auth.User, roles ...string) (*auth.User, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.registerTx(ctx, tx, user, roles)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RegisterExternal implements auth.AccountRegisterer. The user and its
// external login are created in one transaction.
func (s *IdentityStore) RegisterExternal(ctx context.Context, user *auth.User, login *auth.ExternalLogin, roles ...string) (*auth.User, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.registerTx(ctx, tx, user, roles); err != nil {
			return err
		}
		return s.linkTx(ctx, tx, user.ID, login)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Link attaches an external login to an existing user.
func (s *IdentityStore) Link(ctx context.Context, userID int64, login *auth.ExternalLogin) error {
	return s.linkTx(ctx, s.db, userID, login)
}

func (s *IdentityStore) registerTx(ctx context.Context, tx bun.IDB, user *auth.User, roles []string) error {
	now := s.now()
	user.CreatedAt = &now
	user.UpdatedAt = &now

	if _, err := tx.NewInsert().Model(user).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(err, auth.ErrLoginTaken.Category, auth.ErrLoginTaken.Message).
				WithTextCode(auth.ErrLoginTaken.TextCode).
				WithCode(auth.ErrLoginTaken.Code)
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to create user")
	}

	return s.assignRolesTx(ctx, tx, user.ID, roles)
}

func (s *IdentityStore) linkTx(ctx context.Context, tx bun.IDB, userID int64, login *auth.ExternalLogin) error {
	now := s.now()
	login.UserID = userID
	login.CreatedAt = &now

	if _, err := tx.NewInsert().Model(login).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return errors.Wrap(err, auth.ErrLoginTaken.Category, "external login already linked").
				WithTextCode(auth.ErrLoginTaken.TextCode).
				WithCode(auth.ErrLoginTaken.Code)
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to link external login")
	}
	return nil
}

// AssignRoles grants roles to a user, creating missing roles.
func (s *IdentityStore) AssignRoles(ctx context.Context, userID int64, roles ...string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.assignRolesTx(ctx, tx, userID, roles)
	})
}

func (s *IdentityStore) assignRolesTx(ctx context.Context, tx bun.IDB, userID int64, roles []string) error {
	for _, name := range auth.NewRoleSet(roles...) {
		role := &auth.Role{Name: name}
		if _, err := tx.NewInsert().Model(role).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to ensure role")
		}
		if err := tx.NewSelect().Model(role).Where("name = ?", name).Scan(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to load role")
		}

		link := &auth.UserRoleAssignment{UserID: userID, RoleID: role.ID}
		if _, err := tx.NewInsert().Model(link).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to assign role")
		}
	}
	return nil
}

// RevokeRole removes a role from a user.
func (s *IdentityStore) RevokeRole(ctx context.Context, userID int64, role string) error {
	_, err := s.db.NewDelete().
		Model((*auth.UserRoleAssignment)(nil)).
		Where("user_id = ?", userID).
		Where("role_id IN (?)", s.db.NewSelect().Model((*auth.Role)(nil)).Column("id").Where("name = ?", role)).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke role")
	}
	return nil
}

// TrackAttemptedLogin implements auth.UserTracker.
func (s *IdentityStore) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("login_attempts = login_attempts + 1").
		Set("login_attempt_at = ?", now).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login attempt")
	}
	user.LoginAttempts++
	user.LoginAttemptAt = &now
	return nil
}

// TrackSuccessfulLogin implements auth.UserTracker.
func (s *IdentityStore) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	now := s.now()
	_, err := s.db.NewUpdate().
		Model((*auth.User)(nil)).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Set("loggedin_at = ?", now).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track successful login")
	}
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	user.LoggedInAt = &now
	return nil
}

func notFound(err error, meta map[string]any) error {
	if errors.Is(err, sql.ErrNoRows) {
		clone := auth.ErrIdentityNotFound.Clone()
		clone.Source = err
		return clone.WithMetadata(meta)
	}
	return errors.Wrap(err, errors.CategoryInternal, "identity store query failed")
}

func expectAffected(res sql.Result, meta map[string]any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read affected rows")
	}
	if n == 0 {
		return auth.ErrIdentityNotFound.Clone().WithMetadata(meta)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
