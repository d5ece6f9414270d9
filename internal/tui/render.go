package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/taxrules"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#DDDDDD"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5FD787"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// View renders the current screen.
func (a *App) View() string {
	width := max(40, a.width-4)
	var sections []string

	sections = append(sections, titleStyle.Render("🧾 "+a.view.Title))
	if a.err != nil {
		sections = append(sections, errorStyle.Render("⚠ "+a.err.Error()))
	}
	if a.view.Error != "" {
		lines := []string{"⚠ " + a.view.Error}
		for _, f := range a.view.FieldErrors {
			lines = append(lines, fmt.Sprintf("  %s %s", f.Field, f.Message))
		}
		sections = append(sections, errorStyle.Render(strings.Join(lines, "\n")))
	}
	if a.view.Notice != "" {
		sections = append(sections, noticeStyle.Render("✓ "+a.view.Notice))
	}

	var body string
	switch a.view.Service {
	case models.ServiceITRFiling:
		body = a.renderStep(width)
	case models.ServiceOptimization:
		body = a.renderOptimization(width)
	case models.ServiceExpert:
		body = a.renderContact()
	default:
		body = a.choices.View()
	}
	sections = append(sections, boxStyle.Width(width).Render(body))

	if a.showGlossary {
		sections = append(sections, boxStyle.Width(width).Render(renderGlossary()))
	}
	sections = append(sections, mutedStyle.Render(a.hints()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderStep(width int) string {
	step := a.view.Step
	if step == nil {
		return mutedStyle.Render("Press esc to return to the main menu.")
	}
	parts := []string{bodyStyle.Width(width - 4).Render(step.PlainBody)}
	if len(step.Links) > 0 {
		links := []string{"📌 Helpful Resources:"}
		for _, l := range step.Links {
			links = append(links, fmt.Sprintf("  %s: %s", l.Title, l.Link))
		}
		parts = append(parts, strings.Join(links, "\n"))
	}
	if a.view.Video != nil {
		parts = append(parts, "🎥 "+a.view.Video.WatchURL)
	} else if a.view.VideoError != "" {
		parts = append(parts, mutedStyle.Render("🎥 "+a.view.VideoError))
	}
	if len(step.Options) > 0 {
		parts = append(parts, a.choices.View())
	} else {
		parts = append(parts, mutedStyle.Render("End of guide."))
	}
	return strings.Join(parts, "\n\n")
}

func (a *App) renderOptimization(width int) string {
	var parts []string
	parts = append(parts, a.renderInputs())

	if res := a.view.Optimization; res != nil {
		var lines []string
		for _, s := range res.Suggestions {
			lines = append(lines, fmt.Sprintf("• %s: %s (Limit: %s)", s.Rule, s.Text, s.Limit))
		}
		lines = append(lines, "", "Current breakdown:")
		for _, slice := range res.Breakdown {
			lines = append(lines, fmt.Sprintf("  %-18s %s", slice.Category, taxrules.Rupees(slice.Amount)))
		}
		parts = append(parts, bodyStyle.Width(width-4).Render(strings.Join(lines, "\n")))
	}

	slabs := []string{"Tax slabs:"}
	for _, s := range a.view.Slabs {
		slabs = append(slabs, fmt.Sprintf("  %-12s %s", s.Range, s.Rate))
	}
	parts = append(parts, mutedStyle.Render(strings.Join(slabs, "\n")))
	return strings.Join(parts, "\n\n")
}

func (a *App) renderContact() string {
	if appt := a.view.Appointment; appt != nil {
		return fmt.Sprintf("Booked for %s (ref %s)\n\n%s", appt.ScheduledAt.Format("2006-01-02 15:04"), appt.ID, a.renderInputs())
	}
	return a.renderInputs()
}

func (a *App) renderInputs() string {
	lines := make([]string, len(a.inputs))
	for i := range a.inputs {
		lines[i] = a.inputs[i].View()
	}
	return strings.Join(lines, "\n")
}

func renderGlossary() string {
	var lines []string
	for _, e := range taxrules.Glossary() {
		lines = append(lines, titleStyle.Render(e.Term)+" "+e.Description)
		lines = append(lines, mutedStyle.Render("  e.g. "+e.Example+" · limit: "+e.Limit))
	}
	return strings.Join(lines, "\n")
}

func (a *App) hints() string {
	switch {
	case a.hasForm():
		return "tab/↑↓ move · enter submit · esc menu · ctrl+g glossary · ctrl+c quit"
	case a.view.Service == models.ServiceNone:
		return "↑↓ or 1-3 choose · enter select · ctrl+g glossary · q quit"
	default:
		return "↑↓ or number choose · enter select · esc menu · ctrl+g glossary · ctrl+c quit"
	}
}
