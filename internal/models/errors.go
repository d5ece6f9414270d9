// Package models defines the error taxonomy shared by TaxPro components.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lookups and form validation.
var (
	ErrCategoryNotFound    = errors.New("workflow category not found")
	ErrStepNotFound        = errors.New("step not found")
	ErrOptionOutOfRange    = errors.New("option index out of range")
	ErrNoActiveStep        = errors.New("no active workflow step")
	ErrNoWorkflow          = errors.New("workflow has no steps")
	ErrInvalidService      = errors.New("invalid service")
	ErrInvalidContactKey   = errors.New("invalid contact field")
	ErrDuplicateSubmission = errors.New("appointment already recorded for idempotency key")
	ErrSessionNotFound     = errors.New("session not found")
)

// DataLoadError reports a missing or malformed workflow data source.
// It is the only fatal error: the process cannot start without workflows.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("failed to load workflow data from %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// NavigationError reports a step that cannot be resolved. The session stays
// usable; the user can always return to the main menu.
type NavigationError struct {
	StepID string
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("invalid workflow configuration: step %q: %v", e.StepID, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// FieldError describes one rejected form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports missing or malformed user input. Nothing is persisted.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the named field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// PersistenceError reports a failed insert. It is shown to the user and never retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CollaboratorError reports a failed or timed out external lookup (video, narration).
// It is contained to the part of the view that needed the collaborator.
type CollaboratorError struct {
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
