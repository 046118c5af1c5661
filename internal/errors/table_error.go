// Package errors provides standardized error types for table operations.
// This package defines TableError for consistent error handling across
// all public APIs, with operation context and error wrapping support.
package errors

import (
	"fmt"
)

// Kind classifies a TableError. Every failure the engine can surface is a
// caller-input defect and maps to exactly one kind.
type Kind int

const (
	// KindSchema indicates missing or structurally incompatible columns.
	KindSchema Kind = iota
	// KindTypeMismatch indicates value types that cannot be coerced.
	KindTypeMismatch
	// KindKey indicates a reference to an unknown column or group key.
	KindKey
	// KindNameCollision indicates duplicate output column names.
	KindNameCollision
	// KindDuplicateKey indicates a cast over non-unique id/variable pairs.
	KindDuplicateKey
	// KindAmbiguousJoin indicates a malformed join specification.
	KindAmbiguousJoin
	// KindInternal indicates an unexpected internal failure.
	KindInternal
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSchema:
		return "SchemaError"
	case KindTypeMismatch:
		return "TypeMismatchError"
	case KindKey:
		return "KeyError"
	case KindNameCollision:
		return "NameCollisionError"
	case KindDuplicateKey:
		return "DuplicateKeyError"
	case KindAmbiguousJoin:
		return "AmbiguousJoinError"
	default:
		return "InternalError"
	}
}

// TableError represents standardized errors across all table operations
type TableError struct {
	Kind    Kind   // Error classification
	Op      string // Operation name (e.g., "SortBy", "Join", "Melt")
	Column  string // Column name if applicable
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *TableError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: %s operation failed on column %q: %s", e.Kind, e.Op, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s operation failed: %s", e.Kind, e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *TableError) Unwrap() error {
	return e.Cause
}

// Is matches on kind so callers can test taxonomy membership via errors.Is
// with the sentinel values below, regardless of operation context.
func (e *TableError) Is(target error) bool {
	if te, ok := target.(*TableError); ok {
		return e.Kind == te.Kind
	}
	return false
}

// Sentinel values for errors.Is checks. Each carries only a kind.
var (
	ErrSchema        = &TableError{Kind: KindSchema}
	ErrTypeMismatch  = &TableError{Kind: KindTypeMismatch}
	ErrKey           = &TableError{Kind: KindKey}
	ErrNameCollision = &TableError{Kind: KindNameCollision}
	ErrDuplicateKey  = &TableError{Kind: KindDuplicateKey}
	ErrAmbiguousJoin = &TableError{Kind: KindAmbiguousJoin}
)

// Common error constructors for consistent error creation

// NewSchemaError creates an error for missing or incompatible columns
func NewSchemaError(op, column, message string) *TableError {
	return &TableError{
		Kind:    KindSchema,
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewTypeMismatchError creates an error for incoercible value types
func NewTypeMismatchError(op, column, message string) *TableError {
	return &TableError{
		Kind:    KindTypeMismatch,
		Op:      op,
		Column:  column,
		Message: message,
	}
}

// NewKeyError creates an error for references to unknown columns or keys
func NewKeyError(op, column string) *TableError {
	return &TableError{
		Kind:    KindKey,
		Op:      op,
		Column:  column,
		Message: "column does not exist",
	}
}

// NewNameCollisionError creates an error for duplicate output column names
func NewNameCollisionError(op, column string) *TableError {
	return &TableError{
		Kind:    KindNameCollision,
		Op:      op,
		Column:  column,
		Message: "output column name already in use",
	}
}

// NewDuplicateKeyError creates an error for non-unique id/variable pairs
func NewDuplicateKeyError(op, message string) *TableError {
	return &TableError{
		Kind:    KindDuplicateKey,
		Op:      op,
		Message: message,
	}
}

// NewAmbiguousJoinError creates an error for malformed join specifications
func NewAmbiguousJoinError(op, message string) *TableError {
	return &TableError{
		Kind:    KindAmbiguousJoin,
		Op:      op,
		Message: message,
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *TableError {
	return &TableError{
		Kind:    KindInternal,
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}
