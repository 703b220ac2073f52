package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-blog/go-auth"
)

func TestAutherSignUpExternalThenLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	signup := auth.ExternalSignUp{
		Provider:    "github",
		ProviderKey: "9001",
		DisplayName: "Octo Cat",
		Email:       "Octo@Example.com",
	}
	token, err := h.auther.SignUpExternal(ctx, signup)
	require.NoError(t, err)

	claims, err := h.codec.Decode(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Octo Cat", claims.DisplayName())
	assert.Equal(t, auth.OAuthSource("github"), claims.Source())
	assert.Equal(t, auth.RoleSet{auth.RoleReader}, claims.Roles())

	user, err := h.store.GetByID(ctx, claims.SubjectID())
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", user.Email)
	assert.Equal(t, "github:9001", user.Login)
	assert.Empty(t, user.PasswordHash)

	again, err := h.auther.LoginExternal(ctx, "github", "9001")
	require.NoError(t, err)
	loginClaims, err := h.codec.Decode(again.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, claims.SubjectID(), loginClaims.SubjectID())

	t.Run("same identity cannot sign up twice", func(t *testing.T) {
		_, err := h.auther.SignUpExternal(ctx, signup)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeLoginTaken))
	})

	t.Run("provider accounts cannot use password login", func(t *testing.T) {
		_, err := h.auther.Login(ctx, "github:9001", "")
		assert.Error(t, err)
	})

	kinds := h.events.kinds()
	assert.Contains(t, kinds, auth.ActivityEventSocialSignUp)
	assert.Contains(t, kinds, auth.ActivityEventSocialLogin)
}

func TestAutherLoginExternalNotLinked(t *testing.T) {
	h := newHarness(t)

	_, err := h.auther.LoginExternal(context.Background(), "github", "404")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeExternalNotLinked))
	assert.Equal(t, 401, auth.ErrorPayloadFor(err).Status)
}

func TestAutherSignUpExternalValidatesDisplayName(t *testing.T) {
	h := newHarness(t)

	_, err := h.auther.SignUpExternal(context.Background(), auth.ExternalSignUp{
		Provider:    "github",
		ProviderKey: "9001",
		DisplayName: "x",
		Email:       "octo@example.com",
	})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload))
}

func TestAutherLoginAndSignUpSessionsAreCached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, pair := h.signUp(t, "ada")

	cached, ok, err := h.cache.Lookup(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, pair.AccessToken, cached)

	login, err := h.auther.Login(ctx, "ada", testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, login.RefreshToken)

	_, ok, err = h.cache.Lookup(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAutherStartSessionRequiresSubject(t *testing.T) {
	h := newHarness(t)
	_, err := h.auther.StartSession(context.Background(), auth.ClaimsIdentity{})
	assert.Error(t, err)
}

func TestAutherSignUpRules(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, auth.DefaultSignUpRules(), h.auther.SignUpRules())

	rules := auth.DefaultSignUpRules()
	rules.MinNameLength = 5
	h.auther.WithSignUpRules(rules)

	_, err := h.auther.SignUp(context.Background(), auth.SignUpRequest{
		Login:       "ada",
		DisplayName: "Ada",
		Email:       "ada@example.com",
		Password:    testPassword,
	})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload))
}

func TestValidateDisplayName(t *testing.T) {
	rules := auth.DefaultSignUpRules()

	assert.NoError(t, auth.ValidateDisplayName("Ada Lovelace", rules))
	assert.NoError(t, auth.ValidateDisplayName("  Ada  ", rules))
	assert.Error(t, auth.ValidateDisplayName("", rules))
	assert.Error(t, auth.ValidateDisplayName("   ", rules))
	assert.Error(t, auth.ValidateDisplayName("A", rules))

	rules.MaxNameLength = 4
	assert.Error(t, auth.ValidateDisplayName("Lovelace", rules))
}
