package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a failed storage operation with the parameters it ran with
type PersistenceError struct {
	Op     string
	Params map[string]any
	Err    error
}

func (e *PersistenceError) Error() string {
	msg := fmt.Sprintf("%s %v: %v", e.Op, e.Params, e.Err)
	if code := e.Code(); code != "" {
		msg += fmt.Sprintf(" (sqlstate %s)", code)
	}
	return msg
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Code returns the Postgres SQLSTATE name when the driver reported one
func (e *PersistenceError) Code() string {
	var pqErr *pq.Error
	if errors.As(e.Err, &pqErr) {
		return pqErr.Code.Name()
	}
	return ""
}

// Wrap returns nil for a nil err, a not-found error for ErrNotFound,
// and a *PersistenceError otherwise.
func Wrap(op string, err error, params map[string]any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s %v: %w", op, params, err)
	}
	return &PersistenceError{Op: op, Params: params, Err: err}
}

