package repository

import (
	"context"
	"database/sql"
	"log"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/inkwell-blog/go-auth"
)

// Manager groups the stores that back the auth service.
type Manager struct {
	db         *bun.DB
	identities *IdentityStore
}

// NewManager creates a Manager over db.
func NewManager(db *bun.DB) *Manager {
	return &Manager{
		db:         db,
		identities: NewIdentityStore(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized", errors.CategoryInternal)
	}
	if m.identities == nil {
		return errors.New("repository identities should be initialized", errors.CategoryInternal)
	}
	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m *Manager) Identities() *IdentityStore {
	return m.identities
}

// CreateSchema creates the auth tables and seeds the known roles.
func (m *Manager) CreateSchema(ctx context.Context) error {
	models := []any{
		(*auth.User)(nil),
		(*auth.Role)(nil),
		(*auth.UserRoleAssignment)(nil),
		(*auth.ExternalLogin)(nil),
	}
	for _, model := range models {
		if _, err := m.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create auth table")
		}
	}

	for _, name := range auth.KnownRoles() {
		_, err := m.db.NewInsert().
			Model(&auth.Role{Name: name}).
			On("CONFLICT (name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to seed roles")
		}
	}
	return nil
}

// Open connects to dsn. postgres:// and postgresql:// URLs use pgdriver,
// anything else is handed to sqlite.
func Open(dsn string) (*bun.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
