package authz

import (
	"context"
	"errors"
	"testing"
)

// memStore is an in-memory Store for resolver tests.
type memStore struct {
	apps  map[string]Application
	perms map[string][]Permission
	err   error
}

func (s *memStore) Application(_ context.Context, key string) (*Application, error) {
	if s.err != nil {
		return nil, s.err
	}
	if app, ok := s.apps[key]; ok {
		return &app, nil
	}
	return nil, nil
}

func (s *memStore) Applications(_ context.Context) ([]Application, error) {
	if s.err != nil {
		return nil, s.err
	}
	var apps []Application
	for _, app := range s.apps {
		apps = append(apps, app)
	}
	return apps, nil
}

func (s *memStore) Permissions(_ context.Context, appKey string) ([]Permission, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[appKey], nil
}

const adminRole = "Administrators"

func newTestResolver(apps map[string]Application, perms map[string][]Permission) *Resolver {
	return NewResolver(&memStore{apps: apps, perms: perms}, adminRole)
}

func TestResolve_UnknownApplicationFailsOpen(t *testing.T) {
	r := newTestResolver(map[string]Application{}, nil)

	eff, err := r.Resolve(context.Background(), Identity{Email: "anyone@example.org"}, "nonexistent-key")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if eff != FullAccess {
		t.Fatalf("expected fail-open full access for unknown key, got %+v", eff)
	}
}

func TestResolve_NoAuthRequired(t *testing.T) {
	r := newTestResolver(map[string]Application{
		"widgets": {Key: "widgets", Path: "/widgets", RequiresAuth: false, Active: true},
	}, nil)

	eff, err := r.Resolve(context.Background(), Identity{}, "widgets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if eff != FullAccess {
		t.Fatalf("expected full access for ungated app, got %+v", eff)
	}
}

func TestResolve_InactiveDeniesEveryoneIncludingAdmins(t *testing.T) {
	// The inactive check runs before the administrator bypass: switching an
	// application off takes it away from everyone. This ordering is policy,
	// pinned here on purpose.
	r := newTestResolver(map[string]Application{
		"budgets": {Key: "budgets", Path: "/budgets", RequiresAuth: true, Active: false},
	}, nil)

	admin := Identity{Email: "admin@example.org", Roles: []string{adminRole}}
	eff, err := r.Resolve(context.Background(), admin, "budgets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if eff.HasAccess || eff.CanEdit || eff.CanDelete {
		t.Fatalf("inactive app granted access to admin: %+v", eff)
	}
}

func TestResolve_AdminBypass(t *testing.T) {
	// Admins get full access with no permission rows at all.
	r := newTestResolver(map[string]Application{
		"budgets": {Key: "budgets", Path: "/budgets", RequiresAuth: true, Active: true},
	}, nil)

	admin := Identity{Email: "admin@example.org", Roles: []string{"Staff", adminRole}}
	eff, err := r.Resolve(context.Background(), admin, "budgets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if eff != FullAccess {
		t.Fatalf("expected admin bypass, got %+v", eff)
	}
}

func TestResolve_EmptyRolesDenied(t *testing.T) {
	r := newTestResolver(map[string]Application{
		"budgets": {Key: "budgets", Path: "/budgets", RequiresAuth: true, Active: true},
	}, nil)

	eff, err := r.Resolve(context.Background(), Identity{Email: "anon@example.org"}, "budgets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if eff.HasAccess {
		t.Fatalf("expected denial for empty role set, got %+v", eff)
	}
}

func TestResolve_MultiRoleORSemantics(t *testing.T) {
	r := newTestResolver(map[string]Application{
		"budgets": {Key: "budgets", Path: "/budgets", RequiresAuth: true, Active: true},
	}, map[string][]Permission{
		"budgets": {
			{AppKey: "budgets", Role: "A", CanView: true},
			{AppKey: "budgets", Role: "B", CanView: true, CanEdit: true},
		},
	})

	id := Identity{Email: "pat@example.org", Roles: []string{"A", "B"}}
	eff, err := r.Resolve(context.Background(), id, "budgets")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := Effective{HasAccess: true, CanEdit: true, CanDelete: false}
	if eff != want {
		t.Fatalf("got %+v, want %+v", eff, want)
	}
}

func TestResolve_EmailMatchedPermission(t *testing.T) {
	r := newTestResolver(map[string]Application{
		"prayer": {Key: "prayer", Path: "/prayer", RequiresAuth: true, Active: true},
	}, map[string][]Permission{
		"prayer": {
			{AppKey: "prayer", Email: "Pat@Example.org", CanView: true, CanDelete: true},
		},
	})

	id := Identity{Email: "pat@example.org", Roles: []string{"Member"}}
	eff, err := r.Resolve(context.Background(), id, "prayer")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !eff.HasAccess || !eff.CanDelete {
		t.Fatalf("email-matched record not applied: %+v", eff)
	}
}

func TestResolve_Monotonicity(t *testing.T) {
	apps := map[string]Application{
		"rsvp": {Key: "rsvp", Path: "/rsvp", RequiresAuth: true, Active: true},
	}
	base := []Permission{
		{AppKey: "rsvp", Role: "Greeter", CanView: true, CanDelete: true},
	}

	r := newTestResolver(apps, map[string][]Permission{"rsvp": base})
	id := Identity{Email: "pat@example.org", Roles: []string{"Greeter"}}

	before, err := r.Resolve(context.Background(), id, "rsvp")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Adding a record that grants CanEdit must not revoke anything already
	// granted by other records.
	extended := append(base, Permission{AppKey: "rsvp", Role: "Greeter", CanEdit: true})
	r = newTestResolver(apps, map[string][]Permission{"rsvp": extended})

	after, err := r.Resolve(context.Background(), id, "rsvp")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !after.CanEdit {
		t.Fatalf("new record failed to grant: %+v", after)
	}
	if (before.HasAccess && !after.HasAccess) || (before.CanDelete && !after.CanDelete) {
		t.Fatalf("adding a record revoked a capability: before %+v, after %+v", before, after)
	}
}

func TestResolve_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("store down")
	r := NewResolver(&memStore{err: storeErr}, adminRole)

	_, err := r.Resolve(context.Background(), Identity{}, "budgets")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
