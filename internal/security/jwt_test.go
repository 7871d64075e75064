package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager, err := NewJWTManager("test-secret", time.Hour, "listing-sync")
	require.NoError(t, err)

	token, err := manager.Generate("user-1", 77, []string{"operator"}, []string{"sync:apply"})
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, int64(77), claims.ShopID)
	assert.Equal(t, "listing-sync", claims.Issuer)
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager, err := NewJWTManager("test-secret", -time.Minute, "listing-sync")
	require.NoError(t, err)

	token, err := manager.Generate("user-1", 77, nil, nil)
	require.NoError(t, err)

	_, err = manager.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	issuing, err := NewJWTManager("secret-a", time.Hour, "listing-sync")
	require.NoError(t, err)
	validating, err := NewJWTManager("secret-b", time.Hour, "listing-sync")
	require.NoError(t, err)

	token, err := issuing.Generate("user-1", 77, nil, nil)
	require.NoError(t, err)

	_, err = validating.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_EmptySecret(t *testing.T) {
	_, err := NewJWTManager("", time.Hour, "listing-sync")
	require.Error(t, err)
}

func TestJWTManager_RolesAndPermissions(t *testing.T) {
	manager, err := NewJWTManager("test-secret", time.Hour, "listing-sync")
	require.NoError(t, err)

	claims := &Claims{
		Roles:       []string{"operator"},
		Permissions: []string{"sync:apply"},
	}

	assert.True(t, manager.HasRole(claims, "operator"))
	assert.False(t, manager.HasRole(claims, "auditor"))
	assert.True(t, manager.HasPermission(claims, "sync:apply"))
	assert.False(t, manager.HasPermission(claims, "sync:delete"))

	admin := &Claims{Roles: []string{"admin"}, Permissions: []string{"*"}}
	assert.True(t, manager.HasRole(admin, "auditor"))
	assert.True(t, manager.HasPermission(admin, "anything"))
}
