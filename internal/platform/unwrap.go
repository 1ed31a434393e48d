package platform

import (
	"encoding/json"
	"strings"
)

// payloadColumn is the conventional name of the column that carries a
// procedure's JSON payload. Some procedures use other names, so discovery
// falls back to "the single string column" when it is absent.
const payloadColumn = "JsonResult"

// unwrapEnvelope locates and fully materializes the payload of a procedure
// envelope. Rows without any payload column are returned as-is (some
// procedures return plain columnar data).
func unwrapEnvelope(procedure string, env Envelope) (any, error) {
	if len(env) == 0 || len(env[0]) == 0 {
		return nil, nil
	}
	row := env[0][0]

	if raw, ok := row[payloadColumn]; ok {
		s, ok := raw.(string)
		if !ok {
			// Already-structured payload, e.g. a stub upstream.
			return unwrapValue(raw), nil
		}
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, &MalformedPayloadError{Procedure: procedure, Column: payloadColumn, Err: err}
		}
		return unwrapValue(v), nil
	}

	// No conventional column: if exactly one column holds a string, treat it
	// as the payload.
	var col string
	var val string
	n := 0
	for k, v := range row {
		if s, ok := v.(string); ok {
			col, val = k, s
			n++
		}
	}
	if n == 1 {
		var v any
		if err := json.Unmarshal([]byte(val), &v); err != nil {
			return nil, &MalformedPayloadError{Procedure: procedure, Column: col, Err: err}
		}
		return unwrapValue(v), nil
	}

	return unwrapValue(any(row)), nil
}

// unwrapValue recursively replaces every string that is itself JSON-encoded
// structured data with its parsed form. Only strings shaped like objects or
// arrays are parsed — scalar-looking strings ("123", "true", zip codes) are
// left untouched. Each successful parse descends only into the newly produced
// value, so the walk terminates for any input.
func unwrapValue(v any) any {
	switch val := v.(type) {
	case string:
		if parsed, ok := tryParse(val); ok {
			return unwrapValue(parsed)
		}
		return val
	case map[string]any:
		for k, e := range val {
			val[k] = unwrapValue(e)
		}
		return val
	case []any:
		for i := range val {
			val[i] = unwrapValue(val[i])
		}
		return val
	default:
		return v
	}
}

func tryParse(s string) (any, bool) {
	t := strings.TrimSpace(s)
	if len(t) == 0 {
		return nil, false
	}
	switch t[0] {
	case '{', '[':
	case '"':
		// A doubly-encoded string layer; parse and keep unwrapping.
	default:
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err != nil {
		return nil, false
	}
	return v, true
}
