package authz

import (
	"context"
	"errors"
	"fmt"

	"parish-portal/internal/platform"
)

// ErrImpersonationLookup marks a failure to resolve an impersonated
// identity's roles. The middleware always resolves this to an empty role set
// — never the administrator's own roles.
var ErrImpersonationLookup = errors.New("impersonation role lookup failed")

// RoleSource resolves the full role memberships (group-derived and
// security-role-derived) of a platform user.
type RoleSource interface {
	RolesFor(ctx context.Context, contactID int) ([]string, error)
}

// PlatformRoleSource reads role memberships from the upstream platform
// through the procedure gateway.
type PlatformRoleSource struct {
	client *platform.Client
}

func NewPlatformRoleSource(client *platform.Client) *PlatformRoleSource {
	return &PlatformRoleSource{client: client}
}

const userRolesProcedure = "api_Portal_GetUserRoles"

func (s *PlatformRoleSource) RolesFor(ctx context.Context, contactID int) ([]string, error) {
	payload, err := s.client.CallAndUnwrap(ctx, userRolesProcedure, map[string]any{
		"@ContactID": contactID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImpersonationLookup, err)
	}

	roles, err := rolesFromPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImpersonationLookup, err)
	}
	return roles, nil
}

// rolesFromPayload accepts the shapes the procedure has been seen to return:
// a bare array of role-name strings, an array of rows with a Role_Name
// column, or an object wrapping either under "Roles".
func rolesFromPayload(payload any) ([]string, error) {
	if payload == nil {
		return []string{}, nil
	}
	if m, ok := payload.(map[string]any); ok {
		inner, ok := m["Roles"]
		if !ok {
			return nil, fmt.Errorf("payload has no Roles field")
		}
		payload = inner
	}

	items, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected roles payload shape %T", payload)
	}

	roles := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			roles = append(roles, v)
		case map[string]any:
			if name, ok := v["Role_Name"].(string); ok {
				roles = append(roles, name)
				continue
			}
			return nil, fmt.Errorf("role row missing Role_Name")
		default:
			return nil, fmt.Errorf("unexpected role entry %T", item)
		}
	}
	return roles, nil
}
