package tank01

import (
	"fmt"
	"net/url"
)

// APIError is a transport-level failure: network error, timeout or a
// non-success status. Re-invoking the request may succeed.
type APIError struct {
	Resource   string
	Params     url.Values
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tank01 %s [%s]: status %d: %v", e.Resource, e.Params.Encode(), e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tank01 %s [%s]: %v", e.Resource, e.Params.Encode(), e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports that the request may be repeated
func (e *APIError) Retryable() bool { return true }

// SchemaError means the payload did not match the expected shape.
// Retrying will not help until the client is updated.
type SchemaError struct {
	Resource string
	Params   url.Values
	Err      error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tank01 %s [%s]: invalid payload: %v", e.Resource, e.Params.Encode(), e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Retryable reports that the request should not be repeated as-is
func (e *SchemaError) Retryable() bool { return false }
