// Package tui is the terminal front end for TaxPro.
//
// It is a bubbletea program: every key press that changes the session calls
// the assistant inside a tea.Cmd and the resulting View is redrawn.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/models"
)

// viewMsg carries the result of one assistant action.
type viewMsg struct {
	view assistant.View
	err  error
}

// choiceItem is one entry of the menu or of a step's options.
type choiceItem struct {
	number  int
	title   string
	desc    string
	service models.ServiceType
}

func (i choiceItem) Title() string       { return fmt.Sprintf("%d. %s", i.number, i.title) }
func (i choiceItem) Description() string { return i.desc }
func (i choiceItem) FilterValue() string { return i.title }

// Optimization form fields, in focus order.
const (
	fieldIncome = iota
	fieldRent
	field80C
	fieldInsurance
	fieldHRA
)

var optimizeLabels = []string{"Taxable income (₹)", "Annual rent paid (₹)", "80C investments (₹)", "Health insurance premium (₹)", "HRA already claimed? (y/n)"}

var contactLabels = []string{"Name", "Email", "Date (YYYY-MM-DD)", "Time (HH:MM)"}

// App is the bubbletea model.
type App struct {
	ctx       context.Context
	assistant *assistant.Assistant

	view    assistant.View
	err     error
	choices list.Model
	inputs  []textinput.Model
	focus   int

	showGlossary bool
	width        int
	height       int
}

// NewApp creates the model. The session is started by Init.
func NewApp(ctx context.Context, a *assistant.Assistant) *App {
	choices := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	choices.SetShowStatusBar(false)
	choices.SetFilteringEnabled(false)
	choices.SetShowHelp(false)
	return &App{ctx: ctx, assistant: a, choices: choices, width: 80, height: 24}
}

// Run starts the program on the terminal and blocks until it exits.
func Run(ctx context.Context, a *assistant.Assistant) error {
	_, err := tea.NewProgram(NewApp(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init starts a new session.
func (a *App) Init() tea.Cmd {
	return a.do(func(ctx context.Context) (assistant.View, error) {
		return a.assistant.Start(ctx)
	})
}

// do runs fn as a command and reports its view.
func (a *App) do(fn func(ctx context.Context) (assistant.View, error)) tea.Cmd {
	return func() tea.Msg {
		v, err := fn(a.ctx)
		return viewMsg{view: v, err: err}
	}
}

// Update handles one message.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.choices.SetSize(max(20, msg.Width-6), max(5, msg.Height-14))
		return a, nil

	case viewMsg:
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.err = nil
		a.setView(msg.view)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+g":
			a.showGlossary = !a.showGlossary
			return a, nil
		case "esc":
			return a, a.do(func(ctx context.Context) (assistant.View, error) {
				return a.assistant.MainMenu(ctx, a.view.SessionID)
			})
		}
		if a.hasForm() {
			return a.updateForm(msg)
		}
		return a.updateChoices(msg)
	}
	return a, nil
}

func (a *App) updateChoices(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch {
	case key == "q" && a.view.Service == models.ServiceNone:
		return a, tea.Quit
	case key == "enter":
		if item, ok := a.choices.SelectedItem().(choiceItem); ok {
			return a, a.choose(item)
		}
		return a, nil
	case len(key) == 1 && key[0] >= '1' && key[0] <= '9':
		n, _ := strconv.Atoi(key)
		for _, it := range a.choices.Items() {
			if item := it.(choiceItem); item.number == n {
				return a, a.choose(item)
			}
		}
		return a, nil
	}
	var cmd tea.Cmd
	a.choices, cmd = a.choices.Update(msg)
	return a, cmd
}

// choose acts on a menu entry or a step option.
func (a *App) choose(item choiceItem) tea.Cmd {
	id := a.view.SessionID
	if a.view.Service == models.ServiceNone {
		return a.do(func(ctx context.Context) (assistant.View, error) {
			return a.assistant.SelectService(ctx, id, item.service)
		})
	}
	return a.do(func(ctx context.Context) (assistant.View, error) {
		return a.assistant.ChooseOption(ctx, id, item.number-1)
	})
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		a.setFocus((a.focus + 1) % len(a.inputs))
		return a, nil
	case "shift+tab", "up":
		a.setFocus((a.focus + len(a.inputs) - 1) % len(a.inputs))
		return a, nil
	case "enter":
		return a, a.submitForm()
	}
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return a, cmd
}

func (a *App) submitForm() tea.Cmd {
	id := a.view.SessionID
	switch a.view.Service {
	case models.ServiceOptimization:
		profile, err := a.profile()
		if err != nil {
			a.err = err
			return nil
		}
		return a.do(func(ctx context.Context) (assistant.View, error) {
			return a.assistant.Optimize(ctx, id, profile)
		})
	case models.ServiceExpert:
		contact := models.ContactFields{
			Name:  strings.TrimSpace(a.inputs[0].Value()),
			Email: strings.TrimSpace(a.inputs[1].Value()),
			Date:  strings.TrimSpace(a.inputs[2].Value()),
			Time:  strings.TrimSpace(a.inputs[3].Value()),
		}
		return a.do(func(ctx context.Context) (assistant.View, error) {
			if _, err := a.assistant.UpdateContact(ctx, id, contact); err != nil {
				return assistant.View{}, err
			}
			return a.assistant.SubmitConsultation(ctx, id, "")
		})
	}
	return nil
}

// profile reads the optimization form. Empty amounts count as zero.
func (a *App) profile() (models.TaxProfile, error) {
	amounts := make([]float64, fieldHRA)
	for i := fieldIncome; i < fieldHRA; i++ {
		raw := strings.ReplaceAll(strings.TrimSpace(a.inputs[i].Value()), ",", "")
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.TaxProfile{}, fmt.Errorf("%s: %q is not an amount", optimizeLabels[i], raw)
		}
		amounts[i] = v
	}
	hra := strings.ToLower(strings.TrimSpace(a.inputs[fieldHRA].Value()))
	return models.TaxProfile{
		TaxableIncome:   amounts[fieldIncome],
		RentPaid:        amounts[fieldRent],
		Investment80C:   amounts[field80C],
		HealthInsurance: amounts[fieldInsurance],
		HRAClaimed:      hra == "y" || hra == "yes",
	}, nil
}

// setView installs v and rebuilds the widgets for its screen.
func (a *App) setView(v assistant.View) {
	prevService := a.view.Service
	a.view = v

	var items []list.Item
	switch v.Service {
	case models.ServiceNone:
		for _, m := range v.Menu {
			items = append(items, choiceItem{number: m.Number, title: m.Label, service: m.Service})
		}
	case models.ServiceITRFiling:
		if v.Step != nil {
			for _, opt := range v.Step.Options {
				items = append(items, choiceItem{number: opt.Number, title: opt.Text})
			}
		}
	}
	a.choices.SetItems(items)
	a.choices.Select(0)
	a.choices.Title = v.Title

	switch v.Service {
	case models.ServiceOptimization:
		if prevService != models.ServiceOptimization || a.inputs == nil {
			a.inputs = newInputs(optimizeLabels)
			a.setFocus(0)
		}
	case models.ServiceExpert:
		if prevService != models.ServiceExpert || a.inputs == nil || v.Appointment != nil {
			a.inputs = newInputs(contactLabels)
			a.setFocus(0)
		}
		values := []string{v.Contact.Name, v.Contact.Email, v.Contact.Date, v.Contact.Time}
		for i, val := range values {
			a.inputs[i].SetValue(val)
		}
	default:
		a.inputs = nil
	}
}

func (a *App) hasForm() bool {
	return len(a.inputs) > 0
}

func (a *App) setFocus(i int) {
	a.focus = i
	for j := range a.inputs {
		if j == i {
			a.inputs[j].Focus()
		} else {
			a.inputs[j].Blur()
		}
	}
}

func newInputs(labels []string) []textinput.Model {
	inputs := make([]textinput.Model, len(labels))
	for i, label := range labels {
		ti := textinput.New()
		ti.Placeholder = label
		ti.Prompt = label + ": "
		ti.CharLimit = 120
		ti.Cursor.SetMode(cursor.CursorStatic)
		inputs[i] = ti
	}
	return inputs
}
