package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation covers missing required fields and dangling foreign keys
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeCascade covers failed multi-file commits that were rolled back
	ErrorTypeCascade ErrorType = "cascade"
	// ErrorTypeNormalization covers ambiguous name resolution
	ErrorTypeNormalization ErrorType = "normalization"
	// ErrorTypeSource covers unparseable meeting records
	ErrorTypeSource ErrorType = "source"
	// ErrorTypeIndex covers secondary index inconsistencies
	ErrorTypeIndex ErrorType = "index"
	// ErrorTypeStore covers lookups and I/O in the entity store
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Validation Errors

// Violation describes one failed integrity rule on a record
type Violation struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Field      string `json:"field"`
	Target     string `json:"target,omitempty"`
	Reason     string `json:"reason"`
}

func (v Violation) String() string {
	if v.Target != "" {
		return fmt.Sprintf("%s %s: %s -> %s: %s", v.EntityType, v.EntityID, v.Field, v.Target, v.Reason)
	}
	return fmt.Sprintf("%s %s: %s: %s", v.EntityType, v.EntityID, v.Field, v.Reason)
}

// ErrValidation is returned when a write is rejected; nothing was persisted
type ErrValidation struct {
	*BaseError
	Violations []Violation
}

func NewValidation(violations []Violation) *ErrValidation {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return &ErrValidation{
		BaseError:  NewBaseError(ErrorTypeValidation, "write rejected: "+strings.Join(parts, "; "), nil),
		Violations: violations,
	}
}

// Cascade Errors

// ErrCascadeFailure is returned when a staged multi-file commit failed part way.
// Restored reports whether every touched file was put back.
type ErrCascadeFailure struct {
	*BaseError
	Operation string
	Restored  bool
}

func NewCascadeFailure(operation string, restored bool, err error) *ErrCascadeFailure {
	msg := fmt.Sprintf("%s failed, store restored", operation)
	if !restored {
		msg = fmt.Sprintf("%s failed, restore incomplete", operation)
	}
	return &ErrCascadeFailure{
		BaseError: NewBaseError(ErrorTypeCascade, msg, err),
		Operation: operation,
		Restored:  restored,
	}
}

// Normalization Errors

// ErrNormalizationAmbiguity records a name that matched several canonical entities equally well.
// It is logged, never returned as a failure of ingestion.
type ErrNormalizationAmbiguity struct {
	*BaseError
	Raw          string
	CandidateIDs []string
}

func NewNormalizationAmbiguity(raw string, candidateIDs []string) *ErrNormalizationAmbiguity {
	return &ErrNormalizationAmbiguity{
		BaseError:    NewBaseError(ErrorTypeNormalization, fmt.Sprintf("ambiguous name %q matches %d entities", raw, len(candidateIDs)), nil),
		Raw:          raw,
		CandidateIDs: candidateIDs,
	}
}

// Source Errors

// ErrMalformedSourceRecord is returned for a meeting record that cannot be ingested
type ErrMalformedSourceRecord struct {
	*BaseError
	Index  int
	Reason string
}

func NewMalformedSourceRecord(index int, reason string, err error) *ErrMalformedSourceRecord {
	return &ErrMalformedSourceRecord{
		BaseError: NewBaseError(ErrorTypeSource, fmt.Sprintf("malformed record %d: %s", index, reason), err),
		Index:     index,
		Reason:    reason,
	}
}

// Index Errors

// ErrIndexDesync describes an index entry pointing at a missing record
type ErrIndexDesync struct {
	*BaseError
	Index string
	Key   string
	ID    string
}

func NewIndexDesync(index, key, id string) *ErrIndexDesync {
	return &ErrIndexDesync{
		BaseError: NewBaseError(ErrorTypeIndex, fmt.Sprintf("stale entry %s[%s] -> %s", index, key, id), nil),
		Index:     index,
		Key:       key,
		ID:        id,
	}
}

// Store Errors

// ErrNotFound is returned when a record does not exist
type ErrNotFound struct {
	*BaseError
	EntityType string
	ID         string
}

func NewNotFound(entityType, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError:  NewBaseError(ErrorTypeStore, fmt.Sprintf("%s not found: %s", entityType, id), nil),
		EntityType: entityType,
		ID:         id,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Helper functions

// IsErrorType checks whether err or anything it wraps carries the given type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		switch e := err.(type) {
		case *BaseError:
			if e.Type == errType {
				return true
			}
		case typedError:
			if e.base().Type == errType {
				return true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// typedError is implemented by every error struct embedding BaseError
type typedError interface {
	base() *BaseError
}

// IsNotFound reports whether err is a store miss
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return stderrors.As(err, &nf)
}

func (e *ErrValidation) base() *BaseError             { return e.BaseError }
func (e *ErrCascadeFailure) base() *BaseError         { return e.BaseError }
func (e *ErrNormalizationAmbiguity) base() *BaseError { return e.BaseError }
func (e *ErrMalformedSourceRecord) base() *BaseError  { return e.BaseError }
func (e *ErrIndexDesync) base() *BaseError            { return e.BaseError }
func (e *ErrNotFound) base() *BaseError               { return e.BaseError }
func (e *ErrConfigValidationFailed) base() *BaseError { return e.BaseError }
