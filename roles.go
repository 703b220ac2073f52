package auth

import (
	"slices"
	"strings"
)

// UserRole is a role name carried in claims.
type UserRole = string

const (
	// RoleReader can read and comment
	RoleReader UserRole = "reader"
	// RoleAuthor can publish posts
	RoleAuthor UserRole = "author"
	// RoleModerator can moderate comments and ban users
	RoleModerator UserRole = "moderator"
	// RoleAdmin can do everything
	RoleAdmin UserRole = "admin"
)

// DefaultSignUpRole is assigned to every newly registered account.
const DefaultSignUpRole = RoleReader

var roleRank = map[UserRole]int{
	RoleReader:    1,
	RoleAuthor:    2,
	RoleModerator: 3,
	RoleAdmin:     4,
}

// RoleSet is a sorted, de-duplicated list of role names.
type RoleSet []string

// NewRoleSet normalizes names into a RoleSet.
func NewRoleSet(names ...string) RoleSet {
	out := make(RoleSet, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Has reports whether role is in the set.
func (r RoleSet) Has(role string) bool {
	return slices.Contains(r, strings.ToLower(role))
}

// IsAtLeast checks the highest ranked role against minRole.
func (r RoleSet) IsAtLeast(minRole string) bool {
	want, ok := roleRank[strings.ToLower(minRole)]
	if !ok {
		return false
	}
	for _, role := range r {
		if roleRank[role] >= want {
			return true
		}
	}
	return false
}

// IsKnownRole reports whether role is one of the predefined roles
func IsKnownRole(role string) bool {
	_, ok := roleRank[strings.ToLower(role)]
	return ok
}

// KnownRoles returns the predefined roles, lowest rank first.
func KnownRoles() []string {
	return []string{RoleReader, RoleAuthor, RoleModerator, RoleAdmin}
}
