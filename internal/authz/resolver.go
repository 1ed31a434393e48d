package authz

import (
	"context"
	"strings"
)

// Application is one gated sub-app/route group within the portal (e.g.
// "budgets"), read from the system-of-record store.
type Application struct {
	Key          string
	Path         string
	RequiresAuth bool
	Active       bool
}

// Permission grants capabilities on one application to either a role or an
// email address. Multiple rows may apply to one identity; the most permissive
// wins per flag.
type Permission struct {
	AppKey    string
	Role      string
	Email     string
	CanView   bool
	CanEdit   bool
	CanDelete bool
}

// Effective is the derived capability set for one identity on one
// application. Never stored.
type Effective struct {
	HasAccess bool `json:"hasAccess"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// FullAccess grants everything.
var FullAccess = Effective{HasAccess: true, CanEdit: true, CanDelete: true}

// Store is the system-of-record for applications and permissions. The
// gateway only reads it. Application returns (nil, nil) for an unknown key.
type Store interface {
	Application(ctx context.Context, key string) (*Application, error)
	Applications(ctx context.Context) ([]Application, error)
	Permissions(ctx context.Context, appKey string) ([]Permission, error)
}

// Resolver computes what an identity may do with a named application.
type Resolver struct {
	store     Store
	adminRole string
}

// NewResolver creates a Resolver. adminRole is the role name that bypasses
// table-driven permissions.
func NewResolver(store Store, adminRole string) *Resolver {
	return &Resolver{store: store, adminRole: adminRole}
}

// Resolve computes the effective capability set, in this order:
//
//  1. unknown application key: full access (an unlisted or dynamic route is
//     not a gated application — deliberate fail-open, distinct from the
//     fail-closed handling of known applications);
//  2. application does not require auth: full access;
//  3. application inactive: deny everyone, administrators included;
//  4. administrator role: full access with no table lookup;
//  5. empty role set: deny;
//  6. otherwise OR the flags across every permission row matching any of the
//     identity's roles or its email.
//
// The inactive-before-admin ordering is a deliberate policy: switching an
// application off takes it away from everyone.
func (r *Resolver) Resolve(ctx context.Context, id Identity, appKey string) (Effective, error) {
	app, err := r.store.Application(ctx, appKey)
	if err != nil {
		return Effective{}, err
	}
	if app == nil {
		return FullAccess, nil
	}
	if !app.RequiresAuth {
		return FullAccess, nil
	}
	if !app.Active {
		return Effective{}, nil
	}
	if id.HasRole(r.adminRole) {
		return FullAccess, nil
	}
	if len(id.Roles) == 0 {
		return Effective{}, nil
	}

	perms, err := r.store.Permissions(ctx, app.Key)
	if err != nil {
		return Effective{}, err
	}

	var eff Effective
	for _, p := range perms {
		if !matches(p, id) {
			continue
		}
		eff.HasAccess = eff.HasAccess || p.CanView
		eff.CanEdit = eff.CanEdit || p.CanEdit
		eff.CanDelete = eff.CanDelete || p.CanDelete
	}
	return eff, nil
}

func matches(p Permission, id Identity) bool {
	if p.Role != "" && id.HasRole(p.Role) {
		return true
	}
	if p.Email != "" && strings.EqualFold(p.Email, id.Email) {
		return true
	}
	return false
}
