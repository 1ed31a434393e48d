package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// Query describes a read against a named upstream table. Select entries may
// use dotted navigation paths into related tables (e.g. "Contact.Email").
// Filter and OrderBy are opaque strings in the upstream's own predicate
// dialect and are passed through untranslated.
type Query struct {
	Select  []string
	Filter  string
	OrderBy string
	Top     int
	Skip    int
}

// WriteOptions tunes create/update/delete calls. UserID, when non-zero, is
// passed through so the upstream attributes the audit trail to that user
// instead of the service identity. Select limits the echoed columns of a
// write response (e.g. to read back generated IDs).
type WriteOptions struct {
	UserID int
	Select []string
}

// encodeQuery translates a Query into the upstream's query-string dialect.
// Absent fields are omitted, never defaulted. All string-building for the
// dialect lives here so it can be swapped or tested in isolation.
func encodeQuery(q Query) url.Values {
	v := url.Values{}
	if len(q.Select) > 0 {
		v.Set("$select", strings.Join(q.Select, ","))
	}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.OrderBy != "" {
		v.Set("$orderby", q.OrderBy)
	}
	if q.Top > 0 {
		v.Set("$top", fmt.Sprintf("%d", q.Top))
	}
	if q.Skip > 0 {
		v.Set("$skip", fmt.Sprintf("%d", q.Skip))
	}
	return v
}

// encodeWriteOptions translates WriteOptions into query parameters.
func encodeWriteOptions(opts WriteOptions) url.Values {
	v := url.Values{}
	if opts.UserID != 0 {
		v.Set("$userId", fmt.Sprintf("%d", opts.UserID))
	}
	if len(opts.Select) > 0 {
		v.Set("$select", strings.Join(opts.Select, ","))
	}
	return v
}
