// Package consultation validates contact forms and turns them into appointment records.
package consultation

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/google/uuid"
)

// Accepted input layouts.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var timeLayouts = []string{TimeLayout, "15:04:05"}

// IdempotencyKeyField names the rejected field when a key is reused.
const IdempotencyKeyField = "idempotency_key"

// SuccessMessage is shown after an appointment is recorded.
const SuccessMessage = "Consultation scheduled successfully! Our expert will contact you shortly."

// Opts holds configuration for a Scheduler.
type Opts struct {
	Location *time.Location
	Now      func() time.Time
	NewID    func() string
}

// Option configures a Scheduler.
type Option func(*Opts)

// WithLocation sets the time zone the submitted date and time are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		o.Location = loc
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// WithIDGenerator overrides appointment id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Opts) {
		o.NewID = f
	}
}

// SubmitOptions carries per-request metadata.
type SubmitOptions struct {
	// IdempotencyKey, when non-empty, makes a replayed submission return the
	// record stored the first time.
	IdempotencyKey string
	SessionID      string
}

// Scheduler persists consultation requests through an AppointmentStore.
type Scheduler struct {
	store store.AppointmentStore
	loc   *time.Location
	now   func() time.Time
	newID func() string
}

// NewScheduler creates a Scheduler writing to st.
func NewScheduler(st store.AppointmentStore, opts ...Option) *Scheduler {
	cfg := Opts{
		Location: time.Local,
		Now:      time.Now,
		NewID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Scheduler{store: st, loc: cfg.Location, now: cfg.Now, newID: cfg.NewID}
}

// Validate checks every field and merges date and time. All problems are
// reported together in a *models.ValidationError.
func (s *Scheduler) Validate(fields models.ContactFields) (time.Time, error) {
	var errs []models.FieldError

	if strings.TrimSpace(fields.Name) == "" {
		errs = append(errs, models.FieldError{Field: models.ContactFieldName, Message: "is required"})
	}

	email := strings.TrimSpace(fields.Email)
	if email == "" {
		errs = append(errs, models.FieldError{Field: models.ContactFieldEmail, Message: "is required"})
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		errs = append(errs, models.FieldError{Field: models.ContactFieldEmail, Message: "is not a valid email address"})
	}

	var day time.Time
	date := strings.TrimSpace(fields.Date)
	if date == "" {
		errs = append(errs, models.FieldError{Field: models.ContactFieldDate, Message: "is required"})
	} else if d, err := time.ParseInLocation(DateLayout, date, s.loc); err != nil {
		errs = append(errs, models.FieldError{Field: models.ContactFieldDate, Message: "must be YYYY-MM-DD"})
	} else {
		day = d
	}

	var clock time.Time
	tm := strings.TrimSpace(fields.Time)
	if tm == "" {
		errs = append(errs, models.FieldError{Field: models.ContactFieldTime, Message: "is required"})
	} else if c, ok := parseClock(tm); !ok {
		errs = append(errs, models.FieldError{Field: models.ContactFieldTime, Message: "must be HH:MM"})
	} else {
		clock = c
	}

	if len(errs) > 0 {
		return time.Time{}, &models.ValidationError{Fields: errs}
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, s.loc), nil
}

func parseClock(v string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Submit validates fields and inserts exactly one Pending appointment.
// Validation failures never reach the store. Replaying an idempotency key with
// the same name, email and time returns the record stored the first time; a
// key reused for a different request is rejected.
func (s *Scheduler) Submit(ctx context.Context, fields models.ContactFields, opts SubmitOptions) (models.AppointmentRequest, error) {
	scheduledAt, err := s.Validate(fields)
	if err != nil {
		slog.Debug("Scheduler.Submit: validation failed", "error", err, "sessionID", opts.SessionID)
		return models.AppointmentRequest{}, err
	}

	appt := models.AppointmentRequest{
		ID:             s.newID(),
		Name:           strings.TrimSpace(fields.Name),
		Email:          strings.TrimSpace(fields.Email),
		ScheduledAt:    scheduledAt,
		Status:         models.AppointmentStatusPending,
		IdempotencyKey: opts.IdempotencyKey,
		SessionID:      opts.SessionID,
		CreatedAt:      s.now(),
	}

	if err := s.store.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, models.ErrDuplicateSubmission) {
			return s.replay(ctx, appt)
		}
		slog.Error("Scheduler.Submit: insert failed", "error", err, "id", appt.ID)
		return models.AppointmentRequest{}, &models.PersistenceError{Op: "insert appointment", Err: err}
	}
	slog.Info("Scheduler.Submit: appointment recorded", "id", appt.ID, "scheduledAt", appt.ScheduledAt)
	return appt, nil
}

// replay resolves a submission whose idempotency key is already recorded.
func (s *Scheduler) replay(ctx context.Context, appt models.AppointmentRequest) (models.AppointmentRequest, error) {
	existing, err := s.store.FindAppointmentByIdempotencyKey(ctx, appt.IdempotencyKey)
	if err != nil {
		slog.Error("Scheduler.Submit: replay lookup failed", "error", err, "sessionID", appt.SessionID)
		return models.AppointmentRequest{}, &models.PersistenceError{Op: "find appointment", Err: err}
	}
	if existing == nil {
		slog.Error("Scheduler.Submit: duplicate key reported but no record found", "sessionID", appt.SessionID)
		return models.AppointmentRequest{}, &models.PersistenceError{Op: "find appointment", Err: models.ErrDuplicateSubmission}
	}
	if !sameRequest(*existing, appt) {
		slog.Warn("Scheduler.Submit: idempotency key reused for a different request", "id", existing.ID, "sessionID", appt.SessionID)
		return models.AppointmentRequest{}, &models.ValidationError{Fields: []models.FieldError{
			{Field: IdempotencyKeyField, Message: "was already used for a different request"},
		}}
	}
	slog.Info("Scheduler.Submit: replayed submission", "id", existing.ID, "sessionID", appt.SessionID)
	return *existing, nil
}

func sameRequest(a, b models.AppointmentRequest) bool {
	return a.Name == b.Name && strings.EqualFold(a.Email, b.Email) && a.ScheduledAt.Equal(b.ScheduledAt)
}
