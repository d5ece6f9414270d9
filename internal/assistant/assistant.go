// Package assistant drives one session through the TaxPro services.
//
// Each exported method is one user action. Recoverable problems (navigation,
// validation, persistence and collaborator failures) come back inside the View
// while the session stays usable. Only failures to load or save the session
// itself are returned as errors.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/TaxPro/internal/consultation"
	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/narration"
	"github.com/BTreeMap/TaxPro/internal/session"
	"github.com/BTreeMap/TaxPro/internal/taxrules"
	"github.com/BTreeMap/TaxPro/internal/video"
	"github.com/BTreeMap/TaxPro/internal/workflow"
)

// Opts holds optional collaborators.
type Opts struct {
	Videos   *video.Lookup
	Narrator *narration.Narrator
}

// Option configures an Assistant.
type Option func(*Opts)

// WithVideoLookup enables reference videos on workflow steps.
func WithVideoLookup(l *video.Lookup) Option {
	return func(o *Opts) {
		o.Videos = l
	}
}

// WithNarrator enables reading steps aloud.
func WithNarrator(n *narration.Narrator) Option {
	return func(o *Opts) {
		o.Narrator = n
	}
}

// Assistant wires the workflow store, rule engine and scheduler to session state.
type Assistant struct {
	workflows *workflow.Store
	sessions  *session.Manager
	scheduler *consultation.Scheduler
	videos    *video.Lookup
	narrator  *narration.Narrator
}

// New creates an Assistant.
func New(workflows *workflow.Store, sessions *session.Manager, scheduler *consultation.Scheduler, opts ...Option) *Assistant {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Assistant{
		workflows: workflows,
		sessions:  sessions,
		scheduler: scheduler,
		videos:    cfg.Videos,
		narrator:  cfg.Narrator,
	}
}

// Start creates a new session positioned on the main menu.
func (a *Assistant) Start(ctx context.Context) (View, error) {
	state, err := a.sessions.Create(ctx)
	if err != nil {
		return View{}, err
	}
	return a.render(ctx, state), nil
}

// Open returns the view for id, creating the session if it does not exist yet.
// Conversational surfaces key sessions by sender and use this on every message.
func (a *Assistant) Open(ctx context.Context, id string) (View, error) {
	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) { return s, nil })
	if err != nil {
		return View{}, err
	}
	return a.render(ctx, state), nil
}

// View renders the current screen of an existing session.
func (a *Assistant) View(ctx context.Context, id string) (View, error) {
	state, err := a.sessions.Require(ctx, id)
	if err != nil {
		return View{}, err
	}
	return a.render(ctx, state), nil
}

// SelectService switches to svc. Choosing ITR filing enters the first step
// of the default workflow.
func (a *Assistant) SelectService(ctx context.Context, id string, svc models.ServiceType) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}

	var startStep string
	if svc == models.ServiceITRFiling {
		wf, err := a.workflows.DefaultWorkflow()
		if err != nil {
			slog.Error("Assistant.SelectService: no default workflow", "error", err)
			return a.failed(ctx, id, MsgInvalidWorkflow, err)
		}
		startStep = workflow.FirstStepID(wf)
	}

	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		if svc == models.ServiceITRFiling {
			return session.EnterWorkflow(s, startStep), nil
		}
		return session.SelectService(s, svc)
	})
	if errors.Is(err, models.ErrInvalidService) {
		return a.withError(ctx, state, MsgInvalidService, err), nil
	}
	if err != nil {
		return View{}, err
	}
	slog.Debug("Assistant.SelectService: service selected", "sessionID", id, "service", svc, "step", state.CurrentStep)
	return a.render(ctx, state), nil
}

// ChooseOption follows option optionIndex (zero-based) of the current step.
// A target that does not exist is stored anyway and rendered as an invalid
// configuration, matching what the user would see on the next view.
func (a *Assistant) ChooseOption(ctx context.Context, id string, optionIndex int) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}
	wf, wfErr := a.workflows.DefaultWorkflow()

	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		if s.CurrentService != models.ServiceITRFiling {
			return s, &models.NavigationError{StepID: s.CurrentStep, Err: models.ErrNoActiveStep}
		}
		if wfErr != nil {
			return s, wfErr
		}
		step, err := workflow.Resolve(wf, s.CurrentStep)
		if err != nil {
			return s, err
		}
		next, err := workflow.Advance(step, optionIndex)
		if err != nil {
			return s, err
		}
		return session.GoTo(s, next), nil
	})
	switch {
	case err == nil:
		return a.render(ctx, state), nil
	case errors.Is(err, models.ErrOptionOutOfRange):
		return a.withError(ctx, state, MsgInvalidOption, err), nil
	case errors.Is(err, models.ErrNoActiveStep):
		return a.withError(ctx, state, MsgNoActiveStep, err), nil
	case isNavigation(err) || errors.Is(err, models.ErrCategoryNotFound) || errors.Is(err, models.ErrNoWorkflow):
		return a.withError(ctx, state, MsgInvalidWorkflow, err), nil
	default:
		return View{}, err
	}
}

// MainMenu returns to the service menu from anywhere.
func (a *Assistant) MainMenu(ctx context.Context, id string) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}
	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		return session.ReturnToMainMenu(s), nil
	})
	if err != nil {
		return View{}, err
	}
	return a.render(ctx, state), nil
}

// Optimize evaluates the tax rules for profile. The profile itself is not stored.
func (a *Assistant) Optimize(ctx context.Context, id string, profile models.TaxProfile) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}
	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		return session.SelectService(s, models.ServiceOptimization)
	})
	if err != nil {
		return View{}, err
	}

	view := a.render(ctx, state)
	result, err := taxrules.Optimize(profile)
	if err != nil {
		return fieldErrors(view, err), nil
	}
	view.Optimization = &result
	if result.Message != "" {
		view.Notice = result.Message
	}
	slog.Debug("Assistant.Optimize: evaluated", "sessionID", id, "suggestions", len(result.Suggestions))
	return view, nil
}

// SetContactField records one consultation form field and moves to the consultation screen.
func (a *Assistant) SetContactField(ctx context.Context, id, field, value string) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}
	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		s, err := session.SetContact(s, field, value)
		if err != nil {
			return s, err
		}
		return session.SelectService(s, models.ServiceExpert)
	})
	if errors.Is(err, models.ErrInvalidContactKey) {
		return a.withError(ctx, state, MsgInvalidContact, err), nil
	}
	if err != nil {
		return View{}, err
	}
	return a.render(ctx, state), nil
}

// UpdateContact overlays the non-empty fields of update onto the consultation form.
func (a *Assistant) UpdateContact(ctx context.Context, id string, update models.ContactFields) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}
	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		return session.SelectService(session.MergeContact(s, update), models.ServiceExpert)
	})
	if err != nil {
		return View{}, err
	}
	return a.render(ctx, state), nil
}

// SubmitConsultation validates the form and records one appointment. The
// insert runs under the session lock and the form is cleared after success.
func (a *Assistant) SubmitConsultation(ctx context.Context, id, idempotencyKey string) (View, error) {
	if _, err := a.sessions.Require(ctx, id); err != nil {
		return View{}, err
	}

	var appt models.AppointmentRequest
	var submitErr error
	state, err := a.sessions.Update(ctx, id, func(s models.SessionState) (models.SessionState, error) {
		appt, submitErr = a.scheduler.Submit(ctx, s.Contact, consultation.SubmitOptions{
			IdempotencyKey: idempotencyKey,
			SessionID:      id,
		})
		if submitErr == nil {
			s = session.ClearContact(s)
		}
		return session.SelectService(s, models.ServiceExpert)
	})
	if err != nil {
		return View{}, err
	}

	view := a.render(ctx, state)
	if submitErr != nil {
		var perr *models.PersistenceError
		if errors.As(submitErr, &perr) {
			view.Error, view.Err = MsgSaveFailed, submitErr
			return view, nil
		}
		return fieldErrors(view, submitErr), nil
	}
	view.Appointment = &appt
	view.Notice = consultation.SuccessMessage
	return view, nil
}

// Narrate reads the current step aloud and passes the audio file to handoff.
func (a *Assistant) Narrate(ctx context.Context, id, lang string, handoff narration.Handoff) error {
	state, err := a.sessions.Require(ctx, id)
	if err != nil {
		return err
	}
	if state.CurrentService != models.ServiceITRFiling || !state.HasStep() {
		return &models.NavigationError{StepID: state.CurrentStep, Err: models.ErrNoActiveStep}
	}
	wf, err := a.workflows.DefaultWorkflow()
	if err != nil {
		return err
	}
	step, err := workflow.Resolve(wf, state.CurrentStep)
	if err != nil {
		return err
	}
	return a.narrator.Narrate(ctx, workflow.PlainText(step.BotResponse), lang, handoff)
}

// render builds the view for state. Collaborator failures only affect their own field.
func (a *Assistant) render(ctx context.Context, state models.SessionState) View {
	view := View{
		SessionID: state.SessionID,
		Service:   state.CurrentService,
		Title:     TitleMainMenu,
		Menu:      Menu,
		Contact:   state.Contact,
	}

	switch state.CurrentService {
	case models.ServiceITRFiling:
		a.renderStep(ctx, state, &view)
	case models.ServiceOptimization:
		view.Title = TitleOptimization
		view.Slabs = taxrules.Slabs()
	case models.ServiceExpert:
		view.Title = TitleExpert
	}
	return view
}

func (a *Assistant) renderStep(ctx context.Context, state models.SessionState, view *View) {
	wf, err := a.workflows.DefaultWorkflow()
	if err != nil {
		view.Error, view.Err = MsgInvalidWorkflow, err
		return
	}
	step, err := workflow.Resolve(wf, state.CurrentStep)
	if err != nil {
		slog.Warn("Assistant.render: step not resolved", "error", err, "sessionID", state.SessionID)
		view.Error, view.Err = MsgInvalidWorkflow, err
		return
	}
	rendered := workflow.Render(step)
	view.Step = &rendered
	view.Title = rendered.Subject
	view.CanNarrate = a.narrator.Enabled()

	if a.videos != nil && rendered.VideoQuery != "" {
		v, err := a.videos.Find(ctx, rendered.VideoQuery)
		if err != nil {
			view.VideoError = fmt.Sprintf("%s: %v", MsgVideoUnavailable, err)
		} else {
			view.Video = &v
		}
	}
}

func (a *Assistant) withError(ctx context.Context, state models.SessionState, msg string, err error) View {
	view := a.render(ctx, state)
	view.Error, view.Err = msg, err
	return view
}

func (a *Assistant) failed(ctx context.Context, id, msg string, err error) (View, error) {
	state, loadErr := a.sessions.Load(ctx, id)
	if loadErr != nil {
		return View{}, loadErr
	}
	return a.withError(ctx, state, msg, err), nil
}

func fieldErrors(view View, err error) View {
	view.Err = err
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		view.Error = MsgValidationFailed
		view.FieldErrors = verr.Fields
		return view
	}
	view.Error = err.Error()
	return view
}

func isNavigation(err error) bool {
	var navErr *models.NavigationError
	return errors.As(err, &navErr)
}
