package platform

import "fmt"

// AuthError means the OAuth client-credentials grant was rejected. This is a
// configuration/credential problem for the operator, not a user-facing error,
// and is never retried automatically.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream authentication failed: %s", e.Body)
	}
	return fmt.Sprintf("upstream authentication failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// RequestError is any non-2xx response from the upstream platform. Resource
// holds the table or procedure name the call targeted.
type RequestError struct {
	StatusCode int
	Operation  string
	Resource   string
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("upstream %s %s: HTTP %d: %s", e.Operation, e.Resource, e.StatusCode, e.Body)
}

// NotFound reports whether the upstream answered 404 for this call.
func (e *RequestError) NotFound() bool {
	return e.StatusCode == 404
}

// MalformedPayloadError means a procedure's payload column was present but its
// value could not be parsed as JSON. The raw value is never handed to callers
// expecting structured data.
type MalformedPayloadError struct {
	Procedure string
	Column    string
	Err       error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload in column %q of %s: %v", e.Column, e.Procedure, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
