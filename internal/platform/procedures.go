package platform

import (
	"context"
	"net/http"
	"net/url"
)

// Envelope is the raw shape the upstream returns for procedure calls: a
// sequence of result sets, each a sequence of rows, each a column-name to
// value mapping. By upstream convention one string-valued column carries a
// JSON-encoded payload (the column name varies across procedures).
type Envelope [][]map[string]any

// Call invokes a stored procedure and returns the raw envelope. This is the
// pass-through mode for diagnostic tooling; almost all callers want
// CallAndUnwrap.
func (c *Client) Call(ctx context.Context, procedure string, params map[string]any) (Envelope, error) {
	if params == nil {
		params = map[string]any{}
	}
	var out Envelope
	err := c.do(ctx, http.MethodPost, "/procs/"+url.PathEscape(procedure), nil, params, &out, "procedure", procedure)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CallAndUnwrap invokes a stored procedure and materializes its payload:
// first result set, first row, payload column parsed as JSON, then every
// nested JSON-encoded string parsed recursively until none remain. An absent
// result set or row is a "no data" result (nil, nil), not an error. A payload
// column that will not parse is a *MalformedPayloadError.
func (c *Client) CallAndUnwrap(ctx context.Context, procedure string, params map[string]any) (any, error) {
	env, err := c.Call(ctx, procedure, params)
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(procedure, env)
}
