package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes surfaced by mutations. Structured
// errors below match them under errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// NotFoundError is returned when an update or stage move targets a missing ID.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidArgumentError describes a rejected field, value or collection name.
type InvalidArgumentError struct {
	Entity EntityType
	Field  string
	Value  string
	Reason string
}

func (e InvalidArgumentError) Error() string {
	subject := e.Field
	if e.Entity != "" {
		subject = string(e.Entity) + "." + e.Field
	}
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", subject, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", subject, e.Reason)
}

// Is reports whether target is ErrInvalidArgument.
func (e InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// DuplicateIdentifierError is returned when a create would reuse an existing ID.
type DuplicateIdentifierError struct {
	Entity EntityType
	ID     string
}

func (e DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Entity, e.ID)
}

// Is reports whether target is ErrDuplicateIdentifier.
func (e DuplicateIdentifierError) Is(target error) bool { return target == ErrDuplicateIdentifier }
