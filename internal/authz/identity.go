package authz

import "strings"

// Identity is the authenticated principal for one request: the role names
// from the session plus the email address. Ephemeral; one per middleware
// invocation.
type Identity struct {
	Email  string
	Roles  []string
	UserID int
}

// HasRole checks role membership, case-insensitively (the upstream platform
// is inconsistent about role-name casing).
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}
