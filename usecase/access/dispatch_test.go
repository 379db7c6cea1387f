package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/usecase"
)

func TestCollaboratorsFromDispatcher_Empty(t *testing.T) {
	c := CollaboratorsFromDispatcher(usecase.NewDispatcher())
	assert.Nil(t, c.RefreshToken)
	assert.Nil(t, c.Logout)
	assert.Nil(t, c.CheckSession)
	assert.Nil(t, c.CheckPermissions)
}

func TestCollaboratorsFromDispatcher_Routes(t *testing.T) {
	d := usecase.NewDispatcher()
	var gotQuery usecase.PermissionQuery
	logouts := 0
	d.RegisterCommand(usecase.CommandAuthRefresh, func(_ context.Context, payload interface{}) (interface{}, error) {
		return domain.TokenPair{AccessToken: "new-" + payload.(string)}, nil
	})
	d.RegisterCommand(usecase.CommandAuthLogout, func(context.Context, interface{}) (interface{}, error) {
		logouts++
		return nil, nil
	})
	d.RegisterQuery(usecase.QueryAuthSession, func(context.Context, interface{}) (interface{}, error) {
		return true, nil
	})
	d.RegisterQuery(usecase.QueryAuthPermissions, func(_ context.Context, params interface{}) (interface{}, error) {
		gotQuery = params.(usecase.PermissionQuery)
		return false, nil
	})

	c := CollaboratorsFromDispatcher(d)
	ctx := context.Background()

	pair, err := c.RefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "new-r1", pair.AccessToken)

	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, 1, logouts)

	ok, err := c.CheckSession(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	user := &domain.User{ID: "u1"}
	ok, err = c.CheckPermissions(ctx, user, Requirements{Roles: []string{"admin"}, Permissions: []string{"orders:read"}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, usecase.PermissionQuery{User: user, Roles: []string{"admin"}, Permissions: []string{"orders:read"}}, gotQuery)
}

func TestCollaboratorsFromDispatcher_UnexpectedResult(t *testing.T) {
	d := usecase.NewDispatcher()
	d.RegisterQuery(usecase.QueryAuthSession, func(context.Context, interface{}) (interface{}, error) {
		return "yes", nil
	})
	c := CollaboratorsFromDispatcher(d)

	_, err := c.CheckSession(context.Background())
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInternal))
}
