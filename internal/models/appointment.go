// Package models defines consultation appointment structures.
package models

import "time"

// AppointmentStatus tracks an appointment through expert follow-up.
// TaxPro only ever creates Pending appointments; later transitions are administrative.
type AppointmentStatus string

const (
	// AppointmentStatusPending is the status of every newly submitted request.
	AppointmentStatusPending AppointmentStatus = "Pending"
	// AppointmentStatusConfirmed indicates an expert accepted the slot.
	AppointmentStatusConfirmed AppointmentStatus = "Confirmed"
	// AppointmentStatusCompleted indicates the consultation took place.
	AppointmentStatusCompleted AppointmentStatus = "Completed"
	// AppointmentStatusCancelled indicates the request was withdrawn.
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
)

// IsValidAppointmentStatus checks if the given appointment status is known.
func IsValidAppointmentStatus(status AppointmentStatus) bool {
	switch status {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	default:
		return false
	}
}

// Contact form field names.
const (
	ContactFieldName  = "name"
	ContactFieldEmail = "email"
	ContactFieldDate  = "date"
	ContactFieldTime  = "time"
)

// ContactFields holds the raw, possibly incomplete consultation form.
type ContactFields struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Date  string `json:"date,omitempty"` // YYYY-MM-DD
	Time  string `json:"time,omitempty"` // HH:MM
}

// IsEmpty reports whether no field has been entered yet.
func (c ContactFields) IsEmpty() bool {
	return c.Name == "" && c.Email == "" && c.Date == "" && c.Time == ""
}

// Merge overlays the non-empty fields of update onto c.
func (c ContactFields) Merge(update ContactFields) ContactFields {
	if update.Name != "" {
		c.Name = update.Name
	}
	if update.Email != "" {
		c.Email = update.Email
	}
	if update.Date != "" {
		c.Date = update.Date
	}
	if update.Time != "" {
		c.Time = update.Time
	}
	return c
}

// AppointmentRequest is a persisted consultation request.
type AppointmentRequest struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	Status         AppointmentStatus `json:"status"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
