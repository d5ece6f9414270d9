// Package api provides HTTP response utilities for TaxPro.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/models"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal the response to JSON first to catch encoding errors before writing headers
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	var (
		verr *models.ValidationError
		perr *models.PersistenceError
		cerr *models.CollaboratorError
		nerr *models.NavigationError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr),
		errors.Is(err, models.ErrInvalidService),
		errors.Is(err, models.ErrInvalidContactKey),
		errors.Is(err, models.ErrOptionOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoActiveStep):
		return http.StatusConflict
	case errors.As(err, &nerr), errors.Is(err, models.ErrCategoryNotFound), errors.Is(err, models.ErrNoWorkflow):
		return http.StatusUnprocessableEntity
	case errors.As(err, &perr), errors.As(err, &cerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeView writes v with a status derived from its recoverable error, if any.
func writeView(w http.ResponseWriter, okStatus int, v assistant.View) {
	if v.Failed() {
		writeJSONResponse(w, statusForError(v.Err), models.ErrorWithResult(v.Error, v))
		return
	}
	if v.Notice != "" {
		writeJSONResponse(w, okStatus, models.SuccessWithMessage(v.Notice, v))
		return
	}
	writeJSONResponse(w, okStatus, models.Success(v))
}

// writeActionError handles errors returned (not embedded in a view) by the assistant.
func writeActionError(w http.ResponseWriter, handler string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Server."+handler+": action failed", "error", err)
		writeJSONResponse(w, status, models.Error("Internal server error"))
		return
	}
	slog.Warn("Server."+handler+": action rejected", "error", err, "status", status)
	writeJSONResponse(w, status, models.Error(err.Error()))
}
