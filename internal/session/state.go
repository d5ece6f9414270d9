// Package session holds the per-session context object and its transitions.
//
// Every transition is a pure function from one models.SessionState to the next.
// Persistence and locking live in Manager.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// New returns a session with all defaults: main menu, no step, empty form.
func New(id string, now time.Time) models.SessionState {
	return models.SessionState{
		SessionID:      id,
		CurrentService: models.ServiceNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// SelectService switches to svc and drops any active step.
func SelectService(s models.SessionState, svc models.ServiceType) (models.SessionState, error) {
	if !models.IsValidService(svc) {
		return s, fmt.Errorf("%w: %q", models.ErrInvalidService, svc)
	}
	s.CurrentService = svc
	s.CurrentStep = ""
	return s, nil
}

// EnterWorkflow starts the ITR filing workflow at startStep.
func EnterWorkflow(s models.SessionState, startStep string) models.SessionState {
	s.CurrentService = models.ServiceITRFiling
	s.CurrentStep = startStep
	return s
}

// GoTo moves to stepID. The id is not checked here; the navigator resolves it.
func GoTo(s models.SessionState, stepID string) models.SessionState {
	s.CurrentStep = stepID
	return s
}

// SetContact records one consultation form field.
func SetContact(s models.SessionState, field, value string) (models.SessionState, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(field)) {
	case models.ContactFieldName:
		s.Contact.Name = value
	case models.ContactFieldEmail:
		s.Contact.Email = value
	case models.ContactFieldDate:
		s.Contact.Date = value
	case models.ContactFieldTime:
		s.Contact.Time = value
	default:
		return s, fmt.Errorf("%w: %q", models.ErrInvalidContactKey, field)
	}
	return s, nil
}

// MergeContact overlays the non-empty fields of update onto the form.
func MergeContact(s models.SessionState, update models.ContactFields) models.SessionState {
	s.Contact = s.Contact.Merge(update)
	return s
}

// ClearContact empties the consultation form.
func ClearContact(s models.SessionState) models.SessionState {
	s.Contact = models.ContactFields{}
	return s
}

// ReturnToMainMenu resets navigation. Form fields are kept.
func ReturnToMainMenu(s models.SessionState) models.SessionState {
	s.CurrentService = models.ServiceNone
	s.CurrentStep = ""
	return s
}
