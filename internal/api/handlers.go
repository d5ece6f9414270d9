// Package api provides HTTP handlers for TaxPro endpoints.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/narration"
	"github.com/BTreeMap/TaxPro/internal/taxrules"
)

// IdempotencyKeyHeader carries the client's key for consultation submissions.
const IdempotencyKeyHeader = "Idempotency-Key"

type selectServiceRequest struct {
	Service models.ServiceType `json:"service"`
}

type chooseOptionRequest struct {
	Index *int `json:"index"`
}

type optimizeRequest struct {
	SessionID string `json:"session_id,omitempty"`
	models.TaxProfile
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	view, err := s.assistant.Start(r.Context())
	if err != nil {
		writeActionError(w, "createSessionHandler", err)
		return
	}
	slog.Info("Server.createSessionHandler: session created", "sessionID", view.SessionID)
	writeView(w, http.StatusCreated, view)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	view, err := s.assistant.View(r.Context(), r.PathValue("id"))
	if err != nil {
		writeActionError(w, "getSessionHandler", err)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (s *Server) selectServiceHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req selectServiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.selectServiceHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	view, err := s.assistant.SelectService(r.Context(), r.PathValue("id"), req.Service)
	if err != nil {
		writeActionError(w, "selectServiceHandler", err)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (s *Server) chooseOptionHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req chooseOptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.chooseOptionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Index == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("index is required"))
		return
	}
	view, err := s.assistant.ChooseOption(r.Context(), r.PathValue("id"), *req.Index)
	if err != nil {
		writeActionError(w, "chooseOptionHandler", err)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (s *Server) mainMenuHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	view, err := s.assistant.MainMenu(r.Context(), r.PathValue("id"))
	if err != nil {
		writeActionError(w, "mainMenuHandler", err)
		return
	}
	writeView(w, http.StatusOK, view)
}

func (s *Server) contactHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req models.ContactFields
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.contactHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	view, err := s.assistant.UpdateContact(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeActionError(w, "contactHandler", err)
		return
	}
	writeView(w, http.StatusOK, view)
}

// consultationHandler submits the stored form. A body, when present, is merged
// into the form first.
func (s *Server) consultationHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	id := r.PathValue("id")

	if r.ContentLength != 0 {
		var req models.ContactFields
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			slog.Warn("Server.consultationHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		if !req.IsEmpty() {
			if _, err := s.assistant.UpdateContact(r.Context(), id, req); err != nil {
				writeActionError(w, "consultationHandler", err)
				return
			}
		}
	}

	view, err := s.assistant.SubmitConsultation(r.Context(), id, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeActionError(w, "consultationHandler", err)
		return
	}
	if view.Failed() {
		slog.Warn("Server.consultationHandler: submission rejected", "sessionID", id, "error", view.Err)
		writeView(w, http.StatusOK, view)
		return
	}
	slog.Info("Server.consultationHandler: appointment recorded", "sessionID", id, "appointmentID", view.Appointment.ID)
	writeJSONResponse(w, http.StatusCreated, models.RecordedWithMessage(view.Notice, view))
}

// narrationHandler streams the current step as MP3.
func (s *Server) narrationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lang := r.URL.Query().Get("lang")

	err := s.assistant.Narrate(r.Context(), id, lang, func(path string) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		// The status is already sent; a failed copy can only be logged.
		if n, err := io.Copy(w, f); err != nil {
			slog.Warn("Server.narrationHandler: audio stream interrupted", "sessionID", id, "bytes", n, "error", err)
		}
		return nil
	})
	switch {
	case err == nil:
		slog.Debug("Server.narrationHandler: narration served", "sessionID", id, "lang", lang)
	case errors.Is(err, narration.ErrDisabled):
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error(err.Error()))
	default:
		writeActionError(w, "narrationHandler", err)
	}
}

// optimizeHandler evaluates a profile. With a session_id the session moves to
// the optimization screen and the full view is returned.
func (s *Server) optimizeHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req optimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.optimizeHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if req.SessionID != "" {
		view, err := s.assistant.Optimize(r.Context(), req.SessionID, req.TaxProfile)
		if err != nil {
			writeActionError(w, "optimizeHandler", err)
			return
		}
		writeView(w, http.StatusOK, view)
		return
	}

	result, err := taxrules.Optimize(req.TaxProfile)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeJSONResponse(w, http.StatusBadRequest, models.ErrorWithResult(err.Error(), verr.Fields))
			return
		}
		writeActionError(w, "optimizeHandler", err)
		return
	}
	if result.Message != "" {
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(result.Message, result))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}
