package authz

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// OverrideCookie carries a role-simulation directive for the duration of one
// browsing session. The directive only takes effect for identities that hold
// the administrator role; for anyone else it is ignored.
const OverrideCookie = "role_simulation"

// Override kinds.
const (
	OverrideRoles       = "roles"
	OverrideImpersonate = "impersonate"
)

// Override replaces the identity's role set for one request. Two variants:
// a literal role list, or impersonation of another platform user whose roles
// are recomputed from the upstream.
type Override struct {
	Kind     string   `json:"kind"`
	Roles    []string `json:"roles,omitempty"`
	TargetID int      `json:"target_id,omitempty"`
}

// Encode serializes the override for cookie transport.
func (o *Override) Encode() (string, error) {
	buf, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("encode override: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ParseOverride decodes and validates an override cookie value.
func ParseOverride(raw string) (*Override, error) {
	buf, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode override: %w", err)
	}
	var o Override
	if err := json.Unmarshal(buf, &o); err != nil {
		return nil, fmt.Errorf("parse override: %w", err)
	}
	switch o.Kind {
	case OverrideRoles:
	case OverrideImpersonate:
		if o.TargetID <= 0 {
			return nil, fmt.Errorf("impersonate override missing target")
		}
	default:
		return nil, fmt.Errorf("unknown override kind %q", o.Kind)
	}
	return &o, nil
}
