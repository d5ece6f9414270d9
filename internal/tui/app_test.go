package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/testutil"
)

func newTestApp(t *testing.T) (*App, testutil.Deps) {
	t.Helper()
	deps := testutil.NewDeps()
	app := NewApp(context.Background(), assistant.New(deps.Workflows, deps.Sessions, deps.Scheduler))
	runCommands(t, app, app.Init())
	if app.view.SessionID == "" {
		t.Fatalf("Init should start a session")
	}
	return app, deps
}

// runCommands executes cmd and feeds view results back into the model.
func runCommands(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if _, ok := msg.(viewMsg); !ok {
			return
		}
		_, cmd = app.Update(msg)
	}
}

func press(t *testing.T, app *App, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "ctrl+g":
			msg = tea.KeyMsg{Type: tea.KeyCtrlG}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := app.Update(msg)
		runCommands(t, app, cmd)
	}
}

func typeText(t *testing.T, app *App, text string) {
	t.Helper()
	for _, r := range text {
		press(t, app, string(r))
	}
}

func TestMainMenu(t *testing.T) {
	app, _ := newTestApp(t)
	out := app.View()
	if !strings.Contains(out, assistant.TitleMainMenu) {
		t.Errorf("expected main menu title in view")
	}
	if len(app.choices.Items()) != 3 {
		t.Errorf("expected 3 menu items, got %d", len(app.choices.Items()))
	}
}

func TestWorkflowNavigation(t *testing.T) {
	app, _ := newTestApp(t)

	press(t, app, "enter")
	if app.view.Service != models.ServiceITRFiling || app.view.Step == nil {
		t.Fatalf("expected first step, got %+v", app.view)
	}
	if !strings.Contains(app.View(), "Keep Form 16 and your PAN ready.") {
		t.Errorf("step body missing from view")
	}

	press(t, app, "1")
	if app.view.Step == nil || app.view.Step.StepID != "step_2" {
		t.Fatalf("expected step_2, got %+v", app.view.Step)
	}

	press(t, app, "esc")
	if app.view.Service != models.ServiceNone {
		t.Errorf("esc should return to the menu, got %q", app.view.Service)
	}
}

func TestDanglingOptionShowsError(t *testing.T) {
	app, _ := newTestApp(t)
	press(t, app, "1", "down", "enter")
	if app.view.Error != assistant.MsgInvalidWorkflow {
		t.Errorf("expected invalid workflow error, got %q", app.view.Error)
	}
	if !strings.Contains(app.View(), assistant.MsgInvalidWorkflow) {
		t.Errorf("error not rendered")
	}
}

func TestOptimizationForm(t *testing.T) {
	app, _ := newTestApp(t)
	press(t, app, "2")
	if !app.hasForm() || len(app.inputs) != 5 {
		t.Fatalf("expected optimization form")
	}

	typeText(t, app, "1500000")
	press(t, app, "tab")
	typeText(t, app, "120000")
	press(t, app, "tab")
	typeText(t, app, "50000")
	press(t, app, "enter")

	res := app.view.Optimization
	if res == nil {
		t.Fatalf("expected optimization result, err=%v", app.err)
	}
	var rules []string
	for _, s := range res.Suggestions {
		rules = append(rules, s.Rule)
	}
	if strings.Join(rules, ",") != "HRA,80C,80D" {
		t.Errorf("unexpected rules %v", rules)
	}
	if !strings.Contains(app.View(), "Remaining Taxable") {
		t.Errorf("breakdown not rendered")
	}
}

func TestOptimizationForm_BadAmount(t *testing.T) {
	app, _ := newTestApp(t)
	press(t, app, "2")
	typeText(t, app, "lots")
	press(t, app, "enter")
	if app.err == nil || app.view.Optimization != nil {
		t.Errorf("expected a form error, got err=%v", app.err)
	}
}

func TestConsultationForm(t *testing.T) {
	app, deps := newTestApp(t)
	press(t, app, "3")
	if len(app.inputs) != 4 {
		t.Fatalf("expected contact form")
	}

	typeText(t, app, "Anil Kumar")
	press(t, app, "enter")
	if len(app.view.FieldErrors) != 3 {
		t.Errorf("expected 3 field errors, got %+v", app.view.FieldErrors)
	}
	testutil.AssertAppointmentCount(t, deps.Store, 0, "incomplete form")

	c := testutil.ValidContact()
	press(t, app, "tab")
	typeText(t, app, c.Email)
	press(t, app, "tab")
	typeText(t, app, c.Date)
	press(t, app, "tab")
	typeText(t, app, c.Time)
	press(t, app, "enter")

	if app.view.Appointment == nil {
		t.Fatalf("expected appointment, got error %q", app.view.Error)
	}
	testutil.AssertAppointmentCount(t, deps.Store, 1, "after submit")
	if app.inputs[0].Value() != "" {
		t.Errorf("form should be cleared after booking")
	}
}

func TestGlossaryToggle(t *testing.T) {
	app, _ := newTestApp(t)
	press(t, app, "ctrl+g")
	if !strings.Contains(app.View(), "Tax Deducted at Source") {
		t.Errorf("glossary not shown")
	}
	press(t, app, "ctrl+g")
	if strings.Contains(app.View(), "Tax Deducted at Source") {
		t.Errorf("glossary should be hidden")
	}
}

func TestQuit(t *testing.T) {
	app, _ := newTestApp(t)
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}
}
