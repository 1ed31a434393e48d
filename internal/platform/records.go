package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Record is one row of an upstream table. The gateway treats business
// entities as opaque named tables, so rows stay dynamic.
type Record = map[string]any

// Read fetches rows from a named table. Every call is a live round trip;
// staleness is the caller's responsibility.
func (c *Client) Read(ctx context.Context, table string, q Query) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodGet, "/tables/"+url.PathEscape(table), encodeQuery(q), nil, &out, "read", table)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a batch of records, returning the rows the upstream echoes
// back (limited to opts.Select when given, so callers can request exactly the
// server-computed fields they need, such as generated IDs).
func (c *Client) Create(ctx context.Context, table string, records []Record, opts WriteOptions) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodPost, "/tables/"+url.PathEscape(table), encodeWriteOptions(opts), records, &out, "create", table)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies a batch of partial updates. Each record must carry the
// table's primary-key column.
func (c *Client) Update(ctx context.Context, table string, records []Record, opts WriteOptions) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodPut, "/tables/"+url.PathEscape(table), encodeWriteOptions(opts), records, &out, "update", table)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the rows with the given primary-key values.
func (c *Client) Delete(ctx context.Context, table string, ids []any, opts WriteOptions) error {
	v := encodeWriteOptions(opts)
	for _, id := range ids {
		v.Add("id", fmt.Sprintf("%v", id))
	}
	return c.do(ctx, http.MethodDelete, "/tables/"+url.PathEscape(table), v, nil, nil, "delete", table)
}
