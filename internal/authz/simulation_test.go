package authz

import (
	"reflect"
	"testing"
)

func TestOverride_RoundTrip(t *testing.T) {
	for name, o := range map[string]*Override{
		"literal roles": {Kind: OverrideRoles, Roles: []string{"Staff", "Greeter"}},
		"impersonate":   {Kind: OverrideImpersonate, TargetID: 4411},
	} {
		encoded, err := o.Encode()
		if err != nil {
			t.Fatalf("%s: encode: %v", name, err)
		}
		parsed, err := ParseOverride(encoded)
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if !reflect.DeepEqual(parsed, o) {
			t.Fatalf("%s: got %+v, want %+v", name, parsed, o)
		}
	}
}

func TestParseOverride_Invalid(t *testing.T) {
	for name, raw := range map[string]string{
		"not base64":     "%%%",
		"not json":       "bm90LWpzb24",
		"unknown kind":   mustEncode(t, &Override{Kind: "sudo"}),
		"missing target": mustEncode(t, &Override{Kind: OverrideImpersonate}),
	} {
		if _, err := ParseOverride(raw); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func mustEncode(t *testing.T, o *Override) string {
	t.Helper()
	s, err := o.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return s
}

func TestRolesFromPayload(t *testing.T) {
	for name, tc := range map[string]struct {
		payload any
		want    []string
	}{
		"bare string array": {
			payload: []any{"Staff", "Greeter"},
			want:    []string{"Staff", "Greeter"},
		},
		"row array": {
			payload: []any{map[string]any{"Role_Name": "Staff"}},
			want:    []string{"Staff"},
		},
		"wrapped": {
			payload: map[string]any{"Roles": []any{"Staff"}},
			want:    []string{"Staff"},
		},
		"nil payload": {
			payload: nil,
			want:    []string{},
		},
	} {
		got, err := rolesFromPayload(tc.payload)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: got %v, want %v", name, got, tc.want)
		}
	}
}

func TestRolesFromPayload_UnexpectedShapes(t *testing.T) {
	for name, payload := range map[string]any{
		"scalar":            "Staff",
		"row missing name":  []any{map[string]any{"Role_ID": float64(3)}},
		"object sans roles": map[string]any{"Contact_ID": float64(1)},
	} {
		if _, err := rolesFromPayload(payload); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
