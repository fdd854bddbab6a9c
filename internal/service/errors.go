package service

import (
	"errors"
	"fmt"
)

// Kind names a rejection reason that the boundary layers translate for callers.
type Kind string

const (
	KindInvalidDueDate         Kind = "InvalidDueDate"
	KindForbiddenCategory      Kind = "ForbiddenCategory"
	KindCompletedTaskImmutable Kind = "CompletedTaskImmutable"
	KindAlreadyCompleted       Kind = "AlreadyCompleted"
	KindAlreadyPending         Kind = "AlreadyPending"
	KindNotFound               Kind = "NotFound"
	KindForbidden              Kind = "Forbidden"
	KindInvalidInput           Kind = "InvalidInput"
	KindInternal               Kind = "Internal"
)

var (
	ErrInvalidDueDate         = errors.New("due date must be in the future")
	ErrForbiddenCategory      = errors.New("you cannot assign a category that does not belong to you")
	ErrCompletedTaskImmutable = errors.New("cannot edit a completed task, mark it as pending first")
	ErrAlreadyCompleted       = errors.New("task is already completed")
	ErrAlreadyPending         = errors.New("task is already pending")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidDueDate, KindInvalidDueDate},
	{ErrForbiddenCategory, KindForbiddenCategory},
	{ErrCompletedTaskImmutable, KindCompletedTaskImmutable},
	{ErrAlreadyCompleted, KindAlreadyCompleted},
	{ErrAlreadyPending, KindAlreadyPending},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrInvalidInput, KindInvalidInput},
}

// KindOf classifies err. Errors that match no known rejection are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// ValidationError reports a malformed field. It matches ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
