package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkwell-blog/go-auth"
)

func TestNewRoleSet(t *testing.T) {
	set := auth.NewRoleSet(" Admin", "reader", "", "admin", "READER")
	assert.Equal(t, auth.RoleSet{"admin", "reader"}, set)
	assert.True(t, set.Has("ADMIN"))
	assert.False(t, set.Has("author"))
	assert.Empty(t, auth.NewRoleSet())
}

func TestRoleSetIsAtLeast(t *testing.T) {
	cases := []struct {
		roles []string
		min   string
		want  bool
	}{
		{roles: []string{auth.RoleAdmin}, min: auth.RoleReader, want: true},
		{roles: []string{auth.RoleAuthor}, min: auth.RoleModerator, want: false},
		{roles: []string{auth.RoleReader, auth.RoleModerator}, min: auth.RoleModerator, want: true},
		{roles: []string{auth.RoleReader}, min: "superuser", want: false},
		{roles: []string{"custom"}, min: auth.RoleReader, want: false},
		{roles: nil, min: auth.RoleReader, want: false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, auth.NewRoleSet(tc.roles...).IsAtLeast(tc.min), "%v >= %s", tc.roles, tc.min)
	}
}

func TestKnownRoles(t *testing.T) {
	for _, role := range auth.KnownRoles() {
		assert.True(t, auth.IsKnownRole(role))
	}
	assert.False(t, auth.IsKnownRole("superuser"))
	assert.Equal(t, auth.RoleReader, auth.DefaultSignUpRole)
}

func TestUserIsBannedAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	var nilUser *auth.User
	assert.False(t, nilUser.IsBannedAt(now))
	assert.False(t, (&auth.User{}).IsBannedAt(now))
	assert.True(t, (&auth.User{BannedUntil: &later}).IsBannedAt(now))
	assert.False(t, (&auth.User{BannedUntil: &earlier}).IsBannedAt(now))
	assert.False(t, (&auth.User{BannedUntil: &now}).IsBannedAt(now))
}

func TestThresholdPeriod(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, auth.IsWithinThresholdPeriod(now.Add(-time.Minute), now, time.Hour))
	assert.False(t, auth.IsWithinThresholdPeriod(now.Add(-2*time.Hour), now, time.Hour))
	assert.True(t, auth.IsOutsideThresholdPeriod(now.Add(-2*time.Hour), now, time.Hour))
	assert.False(t, auth.IsOutsideThresholdPeriod(now, now, time.Hour))
}
