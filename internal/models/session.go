// Package models defines session state structures.
package models

import "time"

// ServiceType is the top-level service a session is using.
type ServiceType string

const (
	// ServiceNone means the user is on the main menu.
	ServiceNone ServiceType = ""
	// ServiceITRFiling walks through the ITR filing workflow.
	ServiceITRFiling ServiceType = "itr"
	// ServiceOptimization runs the tax rule engine.
	ServiceOptimization ServiceType = "optimization"
	// ServiceExpert collects a consultation request.
	ServiceExpert ServiceType = "expert"
)

// IsValidService checks if the given service can be selected from the menu.
func IsValidService(s ServiceType) bool {
	switch s {
	case ServiceITRFiling, ServiceOptimization, ServiceExpert:
		return true
	default:
		return false
	}
}

// SessionState is the per-session context threaded through every action.
// It is owned by exactly one session and never shared.
type SessionState struct {
	SessionID      string        `json:"session_id"`
	CurrentService ServiceType   `json:"current_service"`
	CurrentStep    string        `json:"current_step,omitempty"` // empty means no active step
	Contact        ContactFields `json:"contact"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// HasStep reports whether the session is positioned on a workflow step.
func (s SessionState) HasStep() bool {
	return s.CurrentStep != ""
}
