package domain

import (
	"errors"
	"fmt"
)

// ErrMissingProject is returned when authorization is enabled but the request
// context carries no project id.
var ErrMissingProject = errors.New("authorization enabled but no project id in request context")

// ParseError reports a malformed definition document.
// Line is 1-based and 0 when the position is unknown.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid action definition (line %d): %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("invalid action definition: %s", e.Reason)
}

// DuplicateNameError is returned when creating an action whose name exists.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate action name: %s", e.Name)
}

// InvalidActionError is returned for operations the action policy forbids,
// such as modifying a system action.
type InvalidActionError struct {
	Name   string
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Name)
}

// NewSystemActionError reports an attempt to modify the system action name.
func NewSystemActionError(name string) *InvalidActionError {
	return &InvalidActionError{Name: name, Reason: "attempt to modify a system action"}
}

// NotFoundError is returned when no action has the requested name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("action not found: %s", e.Name)
}

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("action store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
