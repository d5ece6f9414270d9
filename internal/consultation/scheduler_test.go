package consultation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often it is called.
type countingStore struct {
	*store.InMemoryStore
	calls int
	err   error
}

func (c *countingStore) InsertAppointment(ctx context.Context, a models.AppointmentRequest) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return c.InMemoryStore.InsertAppointment(ctx, a)
}

func validFields() models.ContactFields {
	return models.ContactFields{Name: "Priya Shah", Email: "priya@example.com", Date: "2025-07-15", Time: "14:30"}
}

func newTestScheduler(st store.AppointmentStore) *Scheduler {
	fixed := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	return NewScheduler(st,
		WithLocation(time.UTC),
		WithClock(func() time.Time { return fixed }),
		WithIDGenerator(func() string { return "appt-1" }),
	)
}

func TestSubmit_PersistsOnePendingRecord(t *testing.T) {
	st := &countingStore{InMemoryStore: store.NewInMemoryStore()}
	s := newTestScheduler(st)

	appt, err := s.Submit(context.Background(), validFields(), SubmitOptions{SessionID: "sess-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, st.calls)
	assert.Equal(t, models.AppointmentStatusPending, appt.Status)
	assert.Equal(t, time.Date(2025, 7, 15, 14, 30, 0, 0, time.UTC), appt.ScheduledAt)
	assert.Equal(t, "sess-1", appt.SessionID)

	list, err := st.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "appt-1", list[0].ID)
	assert.Equal(t, "Priya Shah", list[0].Name)
}

func TestSubmit_MissingEmailNeverReachesStore(t *testing.T) {
	st := &countingStore{InMemoryStore: store.NewInMemoryStore()}
	s := newTestScheduler(st)

	fields := validFields()
	fields.Email = ""
	_, err := s.Submit(context.Background(), fields, SubmitOptions{})

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Has(models.ContactFieldEmail))
	assert.Zero(t, st.calls)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	s := newTestScheduler(store.NewInMemoryStore())
	_, err := s.Validate(models.ContactFields{Email: "not-an-email", Date: "15/07/2025", Time: "2pm"})

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	for _, f := range []string{models.ContactFieldName, models.ContactFieldEmail, models.ContactFieldDate, models.ContactFieldTime} {
		assert.True(t, verr.Has(f), "expected %s to be rejected", f)
	}
}

func TestValidate_EmailForms(t *testing.T) {
	s := newTestScheduler(store.NewInMemoryStore())
	tests := []struct {
		email string
		ok    bool
	}{
		{"a@b.co", true},
		{"first.last+tax@example.in", true},
		{"Priya <priya@example.com>", false},
		{"priya@", false},
		{"@example.com", false},
	}
	for _, tt := range tests {
		f := validFields()
		f.Email = tt.email
		_, err := s.Validate(f)
		assert.Equal(t, tt.ok, err == nil, "email %q: %v", tt.email, err)
	}
}

func TestValidate_SecondsAccepted(t *testing.T) {
	s := newTestScheduler(store.NewInMemoryStore())
	f := validFields()
	f.Time = "09:05:30"
	at, err := s.Validate(f)
	require.NoError(t, err)
	assert.Equal(t, 30, at.Second())
}

func TestValidate_UsesLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	s := NewScheduler(store.NewInMemoryStore(), WithLocation(ist))
	at, err := s.Validate(validFields())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC), at.UTC())
}

func TestSubmit_StoreFailureIsPersistenceError(t *testing.T) {
	st := &countingStore{InMemoryStore: store.NewInMemoryStore(), err: errors.New("disk full")}
	s := newTestScheduler(st)

	_, err := s.Submit(context.Background(), validFields(), SubmitOptions{})
	var perr *models.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, st.calls, "no retry")
}

func sequentialIDs(ids ...string) Option {
	return WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	})
}

func TestSubmit_IdempotentReplay(t *testing.T) {
	st := store.NewInMemoryStore()
	s := NewScheduler(st, sequentialIDs("appt-1", "appt-2"))

	first, err := s.Submit(context.Background(), validFields(), SubmitOptions{IdempotencyKey: "form-42"})
	require.NoError(t, err)
	second, err := s.Submit(context.Background(), validFields(), SubmitOptions{IdempotencyKey: "form-42"})
	require.NoError(t, err)

	assert.Equal(t, "appt-1", first.ID)
	assert.Equal(t, first.ID, second.ID, "replay returns the stored record")
	list, err := st.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestSubmit_KeyReusedForDifferentRequest(t *testing.T) {
	st := store.NewInMemoryStore()
	s := NewScheduler(st, sequentialIDs("appt-1", "appt-2"))

	_, err := s.Submit(context.Background(), validFields(), SubmitOptions{IdempotencyKey: "k"})
	require.NoError(t, err)

	other := validFields()
	other.Name = "Arjun Rao"
	other.Email = "arjun@example.com"
	_, err = s.Submit(context.Background(), other, SubmitOptions{IdempotencyKey: "k"})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.True(t, verr.Has(IdempotencyKeyField))

	list, err := st.ListAppointments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Priya Shah", list[0].Name)
}

func TestSubmit_ReplayWithoutStoredRecordIsPersistenceError(t *testing.T) {
	st := &countingStore{InMemoryStore: store.NewInMemoryStore(), err: models.ErrDuplicateSubmission}
	s := newTestScheduler(st)

	_, err := s.Submit(context.Background(), validFields(), SubmitOptions{IdempotencyKey: "lost"})
	var perr *models.PersistenceError
	require.True(t, errors.As(err, &perr), "got %v", err)
}

func TestSubmit_WithoutKeyMayDuplicate(t *testing.T) {
	st := store.NewInMemoryStore()
	s := NewScheduler(st)
	for i := 0; i < 2; i++ {
		_, err := s.Submit(context.Background(), validFields(), SubmitOptions{})
		require.NoError(t, err)
	}
	list, _ := st.ListAppointments(context.Background())
	assert.Len(t, list, 2)
}
