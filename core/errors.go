package core

import (
	"errors"
	"fmt"
)

// ErrRolledBack is reported by a successful rollback so that callers can
// detect that the transaction's writes were revoked.
var ErrRolledBack = errors.New("transaction rolled back")

// ErrorKind names a class of errors callers can branch on.
type ErrorKind string

const (
	KindValidation   ErrorKind = "ValidationError"
	KindForeignKey   ErrorKind = "ForeignKeyError"
	KindNotFound     ErrorKind = "NotFoundError"
	KindDuplicateKey ErrorKind = "DuplicateKeyError"
	KindTransaction  ErrorKind = "TransactionError"
	KindHook         ErrorKind = "HookError"
	KindRolledBack   ErrorKind = "RolledBack"
)

// ValidationError is returned when a payload does not match its collection shape.
type ValidationError struct {
	Collection string
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("collection %q field %q: %s", e.Collection, e.Field, e.Message)
	}
	return fmt.Sprintf("collection %q: %s", e.Collection, e.Message)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ValidationError) Hint() string {
	if e.Field != "" {
		return fmt.Sprintf("Check the value of field %q against the %s schema.", e.Field, e.Collection)
	}
	return fmt.Sprintf("Check the payload against the %s schema.", e.Collection)
}

// ForeignKeyError is returned when a reference points at a missing collection or entity.
type ForeignKeyError struct {
	Collection string
	Field      string
	Target     string
	ID         string
	Reason     string
}

func (e *ForeignKeyError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("collection %q field %q: %s", e.Collection, e.Field, e.Reason)
	}
	if e.ID == "" {
		return fmt.Sprintf("collection %q field %q references unknown collection %q", e.Collection, e.Field, e.Target)
	}
	return fmt.Sprintf("collection %q field %q references missing %s %q", e.Collection, e.Field, e.Target, e.ID)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ForeignKeyError) Hint() string {
	if e.ID == "" {
		return fmt.Sprintf("Declare collection %q in the schema or fix the relation on %s.%s.", e.Target, e.Collection, e.Field)
	}
	return fmt.Sprintf("Create %s %q first or connect %s.%s to an existing entity.", e.Target, e.ID, e.Collection, e.Field)
}

// NotFoundError is returned when an operation targets a nonexistent collection or id.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("collection %q entity %q not found", e.Collection, e.ID)
	}
	return fmt.Sprintf("collection %q not found", e.Collection)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *NotFoundError) Hint() string {
	if e.ID != "" {
		return fmt.Sprintf("Check that entity %q exists in collection %q.", e.ID, e.Collection)
	}
	return fmt.Sprintf("Collection %q is not declared in the schema.", e.Collection)
}

// DuplicateKeyError is returned when a create collides with an existing id.
type DuplicateKeyError struct {
	Collection string
	ID         string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("collection %q entity %q already exists", e.Collection, e.ID)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *DuplicateKeyError) Hint() string {
	return fmt.Sprintf("Use update or upsert for %q, or omit the id to generate one.", e.ID)
}

// TransactionError is returned for nested begins and operations on terminated transactions.
type TransactionError struct {
	Operation string
	Reason    string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %s", e.Operation, e.Reason)
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *TransactionError) Hint() string {
	return "Open a new transaction; transactions cannot be nested or reused after commit or rollback."
}

// HookError is returned when a before-hook vetoes an operation.
type HookError struct {
	Collection string
	Operation  string
	Err        error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("collection %q %s vetoed: %v", e.Collection, e.Operation, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *HookError) Hint() string {
	return "A registered before-hook rejected the change; inspect the wrapped error."
}

// HintError is an interface for errors that provide resolution hints.
type HintError interface {
	error
	Hint() string
}

// KindOf returns the kind of the given error or an empty kind if it is not one of ours.
func KindOf(err error) ErrorKind {
	var (
		validation *ValidationError
		foreignKey *ForeignKeyError
		notFound   *NotFoundError
		duplicate  *DuplicateKeyError
		tx         *TransactionError
		hook       *HookError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &hook):
		return KindHook
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &foreignKey):
		return KindForeignKey
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &duplicate):
		return KindDuplicateKey
	case errors.As(err, &tx):
		return KindTransaction
	case errors.Is(err, ErrRolledBack):
		return KindRolledBack
	default:
		return ""
	}
}
