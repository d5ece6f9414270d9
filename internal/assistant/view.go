package assistant

import (
	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/video"
	"github.com/BTreeMap/TaxPro/internal/workflow"
)

// Screen titles.
const (
	TitleMainMenu     = "Professional Tax Assistance Suite"
	TitleOptimization = "Tax Guru - Smart Savings Assistant"
	TitleExpert       = "Schedule Expert Consultation"
)

// User-facing messages for recoverable errors.
const (
	MsgInvalidWorkflow  = "Invalid workflow configuration"
	MsgNoActiveStep     = "There is no active step. Start ITR filing from the main menu."
	MsgInvalidOption    = "That option is not available on this step."
	MsgInvalidService   = "Unknown service. Choose 1, 2 or 3 from the main menu."
	MsgInvalidContact   = "Unknown form field. Use name, email, date or time."
	MsgValidationFailed = "Please correct the highlighted fields."
	MsgSaveFailed       = "We could not schedule your consultation right now. Please try again later."
	MsgVideoUnavailable = "Error loading video"
)

// MenuItem is one entry of the main menu.
type MenuItem struct {
	Number  int                `json:"number"`
	Service models.ServiceType `json:"service"`
	Label   string             `json:"label"`
}

// Menu lists the services in display order.
var Menu = []MenuItem{
	{Number: 1, Service: models.ServiceITRFiling, Label: "📄 Start ITR Filing"},
	{Number: 2, Service: models.ServiceOptimization, Label: "📈 Tax Optimization"},
	{Number: 3, Service: models.ServiceExpert, Label: "👨‍💼 Expert Consultation"},
}

// ServiceForNumber maps a menu number to its service.
func ServiceForNumber(n int) (models.ServiceType, bool) {
	for _, item := range Menu {
		if item.Number == n {
			return item.Service, true
		}
	}
	return models.ServiceNone, false
}

// View is everything a surface needs to draw the current screen.
type View struct {
	SessionID string             `json:"session_id"`
	Service   models.ServiceType `json:"service"`
	Title     string             `json:"title"`
	Menu      []MenuItem         `json:"menu"`

	Step       *workflow.RenderedStep `json:"step,omitempty"`
	Video      *video.Video           `json:"video,omitempty"`
	VideoError string                 `json:"video_error,omitempty"`
	CanNarrate bool                   `json:"can_narrate,omitempty"`

	Optimization *models.OptimizationResult `json:"optimization,omitempty"`
	Slabs        []models.TaxSlab           `json:"slabs,omitempty"`

	Contact     models.ContactFields       `json:"contact"`
	Appointment *models.AppointmentRequest `json:"appointment,omitempty"`

	Notice      string              `json:"notice,omitempty"`
	Error       string              `json:"error,omitempty"`
	FieldErrors []models.FieldError `json:"field_errors,omitempty"`

	// Err is the recoverable error behind Error, for surfaces that map it to a status.
	Err error `json:"-"`
}

// Failed reports whether the action ended with a recoverable error.
func (v View) Failed() bool {
	return v.Err != nil
}
