package grading

import (
	"errors"
	"fmt"
)

// Precondition failures. Any of them aborts the week with no status written.
var (
	ErrMissingBetOption = errors.New("bet option not found")
	ErrMissingGame      = errors.New("game not found")
	ErrGameNotCompleted = errors.New("game not completed")
	ErrInvalidBetOption = errors.New("invalid bet option")
	ErrGradeConflict    = errors.New("pick already graded with a different outcome")
)

// Error ties a grading failure to the pick that caused it
type Error struct {
	PickID int
	Year   int
	Week   int
	Err    error
}

func (e *Error) Error() string {
	if e.PickID == 0 {
		return fmt.Sprintf("grade year=%d week=%d: %v", e.Year, e.Week, e.Err)
	}
	return fmt.Sprintf("grade year=%d week=%d pick=%d: %v", e.Year, e.Week, e.PickID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
