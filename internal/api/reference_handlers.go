package api

import (
	"log/slog"
	"net/http"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/taxrules"
)

func (s *Server) glossaryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(taxrules.Glossary()))
}

func (s *Server) glossaryTermHandler(w http.ResponseWriter, r *http.Request) {
	term := r.PathValue("term")
	entry, ok := taxrules.LookupTerm(term)
	if !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown term: "+term))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entry))
}

func (s *Server) slabsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(taxrules.Slabs()))
}

func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.appointments.ListAppointments(r.Context())
	if err != nil {
		slog.Error("Server.appointmentsHandler: failed to list appointments", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list appointments"))
		return
	}
	if list == nil {
		list = []models.AppointmentRequest{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(list))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "taxpro"}))
}
