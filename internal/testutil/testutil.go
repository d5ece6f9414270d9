// Package testutil provides common test utilities and fixtures for TaxPro tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/BTreeMap/TaxPro/internal/consultation"
	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/session"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/BTreeMap/TaxPro/internal/workflow"
)

// TestingT is the subset of testing.T the helpers need.
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
}

// WorkflowCategories returns a small ITR workflow. step_1 offers a valid
// option and one that points at a step that does not exist.
func WorkflowCategories() []models.WorkflowCategory {
	return []models.WorkflowCategory{
		{
			CategoryID: workflow.DefaultCategoryID,
			Workflows: []models.Workflow{{
				WorkflowID: "itr3",
				Title:      "ITR-3 Filing",
				Steps: []models.Step{
					{
						StepID:      "step_1",
						Subject:     "Gather Documents",
						BotResponse: "<p>Keep <b>Form 16</b> and your PAN ready.</p>",
						Resources:   &models.StepResources{Links: []models.ResourceLink{{Title: "e-Filing Portal", Link: "https://www.incometax.gov.in"}}},
						Metadata:    &models.StepMetadata{VideoQuery: "ITR 3 documents"},
						UserOptions: []models.UserOption{
							{OptionText: "I have them", NextStepID: "step_2"},
							{OptionText: "Skip ahead", NextStepID: "step_9"},
						},
					},
					{
						StepID:      "step_2",
						Subject:     "Log In",
						BotResponse: "Log in to the portal.",
						UserOptions: []models.UserOption{{OptionText: "Done", NextStepID: "step_3"}},
					},
					{StepID: "step_3", Subject: "Submit", BotResponse: "Verify and submit your return."},
				},
			}},
		},
	}
}

// WorkflowStore wraps WorkflowCategories in a read-only store.
func WorkflowStore() *workflow.Store {
	return workflow.NewStoreFromCategories(WorkflowCategories())
}

// Deps bundles the in-memory collaborators an assistant needs.
type Deps struct {
	Workflows *workflow.Store
	Store     *store.InMemoryStore
	Sessions  *session.Manager
	Scheduler *consultation.Scheduler
}

// NewDeps creates in-memory dependencies with a UTC scheduler.
func NewDeps() Deps {
	st := store.NewInMemoryStore()
	return Deps{
		Workflows: WorkflowStore(),
		Store:     st,
		Sessions:  session.NewManager(st),
		Scheduler: consultation.NewScheduler(st, consultation.WithLocation(time.UTC)),
	}
}

// ValidContact returns a consultation form that passes validation.
func ValidContact() models.ContactFields {
	return models.ContactFields{Name: "Anil Kumar", Email: "anil@example.com", Date: "2025-08-01", Time: "11:00"}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TestingT, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t TestingT, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TestingT, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
			return nil
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// AssertAppointmentCount validates the number of stored appointments.
func AssertAppointmentCount(t TestingT, st store.AppointmentStore, expected int, label string) {
	t.Helper()
	list, err := st.ListAppointments(context.Background())
	if err != nil {
		t.Fatalf("%s: failed to list appointments: %v", label, err)
		return
	}
	if len(list) != expected {
		t.Errorf("%s: expected %d appointments, got %d", label, expected, len(list))
	}
}

// SeedAppointments adds sample appointments to the store.
func SeedAppointments(t TestingT, st store.AppointmentStore) {
	t.Helper()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seed := []models.AppointmentRequest{
		{ID: "seed-1", Name: "Lakshmi", Email: "lakshmi@example.com", ScheduledAt: base, Status: models.AppointmentStatusPending, CreatedAt: base},
		{ID: "seed-2", Name: "Farhan", Email: "farhan@example.com", ScheduledAt: base.Add(24 * time.Hour), Status: models.AppointmentStatusPending, CreatedAt: base.Add(time.Minute)},
	}
	for _, a := range seed {
		if err := st.InsertAppointment(context.Background(), a); err != nil {
			t.Fatalf("failed to seed appointment: %v", err)
		}
	}
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TestingT, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TestingT, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
