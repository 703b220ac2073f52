package auth

import (
	"time"

	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	Login          string     `bun:"login,notnull,unique" json:"login"`
	DisplayName    string     `bun:"display_name,notnull" json:"display_name"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	BannedUntil    *time.Time `bun:"banned_until,nullzero" json:"banned_until,omitempty"`
	LoginAttempts  int        `bun:"login_attempts,notnull,default:0" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at,nullzero" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// IsBannedAt reports whether the user is banned at instant now.
func (u *User) IsBannedAt(now time.Time) bool {
	if u == nil || u.BannedUntil == nil {
		return false
	}
	return now.Before(*u.BannedUntil)
}

// Role is a named role
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            int64  `bun:"id,pk,autoincrement" json:"id"`
	Name          string `bun:"name,notnull,unique" json:"name"`
}

// UserRoleAssignment joins users and roles
type UserRoleAssignment struct {
	bun.BaseModel `bun:"table:user_roles,alias:urol"`
	UserID        int64 `bun:"user_id,pk" json:"user_id"`
	RoleID        int64 `bun:"role_id,pk" json:"role_id"`
	Role          *Role `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}

// ExternalLogin links a provider identity to a local user.
type ExternalLogin struct {
	bun.BaseModel `bun:"table:external_logins,alias:extl"`
	Provider      string     `bun:"provider,pk" json:"provider"`
	ProviderKey   string     `bun:"provider_key,pk" json:"provider_key"`
	UserID        int64      `bun:"user_id,notnull" json:"user_id"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
