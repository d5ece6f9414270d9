package workflow

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// FindStep returns the step with the given id by linear scan.
func FindStep(wf models.Workflow, stepID string) (models.Step, bool) {
	for _, step := range wf.Steps {
		if step.StepID == stepID {
			return step, true
		}
	}
	return models.Step{}, false
}

// FirstStepID returns the id of the step a fresh walk-through starts on.
func FirstStepID(wf models.Workflow) string {
	if len(wf.Steps) == 0 {
		return ""
	}
	return wf.Steps[0].StepID
}

// Resolve finds the session's current step. A stale or unknown id is reported
// as a *models.NavigationError so the caller can show it and stay usable.
func Resolve(wf models.Workflow, stepID string) (models.Step, error) {
	if stepID == "" {
		return models.Step{}, &models.NavigationError{StepID: stepID, Err: models.ErrNoActiveStep}
	}
	step, ok := FindStep(wf, stepID)
	if !ok {
		slog.Warn("workflow.Resolve: step not found", "step_id", stepID, "workflow_id", wf.WorkflowID)
		return models.Step{}, &models.NavigationError{StepID: stepID, Err: models.ErrStepNotFound}
	}
	return step, nil
}

// Advance returns the next_step_id of the chosen option. optionIndex is zero-based.
// The caller records the result in the session state; Advance does not check that
// the target exists, which is discovered when the next step is resolved.
func Advance(step models.Step, optionIndex int) (string, error) {
	if optionIndex < 0 || optionIndex >= len(step.UserOptions) {
		return "", &models.NavigationError{
			StepID: step.StepID,
			Err:    fmt.Errorf("%w: %d of %d", models.ErrOptionOutOfRange, optionIndex+1, len(step.UserOptions)),
		}
	}
	next := step.UserOptions[optionIndex].NextStepID
	slog.Debug("workflow.Advance", "from", step.StepID, "option", optionIndex, "to", next)
	return next, nil
}
