package access

import (
	"context"
	"fmt"

	"github.com/fastygo/storefront-guard/domain"
	"github.com/fastygo/storefront-guard/usecase"
)

// CollaboratorsFromDispatcher routes the gate's backend calls through d.
// Operations without a registered handler stay nil.
func CollaboratorsFromDispatcher(d *usecase.Dispatcher) Collaborators {
	var c Collaborators
	if d.HasCommand(usecase.CommandAuthRefresh) {
		c.RefreshToken = func(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
			out, err := d.ExecuteCommand(ctx, usecase.CommandAuthRefresh, refreshToken)
			if err != nil {
				return domain.TokenPair{}, err
			}
			pair, ok := out.(domain.TokenPair)
			if !ok {
				return domain.TokenPair{}, unexpected(usecase.CommandAuthRefresh, out)
			}
			return pair, nil
		}
	}
	if d.HasCommand(usecase.CommandAuthLogout) {
		c.Logout = func(ctx context.Context) error {
			_, err := d.ExecuteCommand(ctx, usecase.CommandAuthLogout, nil)
			return err
		}
	}
	if d.HasQuery(usecase.QueryAuthSession) {
		c.CheckSession = func(ctx context.Context) (bool, error) {
			return queryBool(ctx, d, usecase.QueryAuthSession, nil)
		}
	}
	if d.HasQuery(usecase.QueryAuthPermissions) {
		c.CheckPermissions = func(ctx context.Context, user *domain.User, req Requirements) (bool, error) {
			return queryBool(ctx, d, usecase.QueryAuthPermissions, usecase.PermissionQuery{
				User:        user,
				Roles:       req.Roles,
				Permissions: req.Permissions,
			})
		}
	}
	return c
}

func queryBool(ctx context.Context, d *usecase.Dispatcher, name string, params interface{}) (bool, error) {
	out, err := d.ExecuteQuery(ctx, name, params)
	if err != nil {
		return false, err
	}
	v, ok := out.(bool)
	if !ok {
		return false, unexpected(name, out)
	}
	return v, nil
}

func unexpected(name string, out interface{}) error {
	return domain.NewError(domain.ErrCodeInternal, fmt.Sprintf("%s returned %T", name, out))
}
