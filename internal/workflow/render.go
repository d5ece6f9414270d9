package workflow

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// Rendering constants
const (
	// DefaultSubject is shown for steps without a subject.
	DefaultSubject = "ITR Filing Assistance"
	// OptionFormat is the format string for numbered option display.
	OptionFormat = "\n%d. %s"
	// LinkFormat is the format string for resource links in plain text.
	LinkFormat = "\n- %s: %s"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	// block-level tags become line breaks before tags are stripped
	blockTagRegex  = regexp.MustCompile(`(?i)<\s*(br|/p|/div|/li|/h[1-6]|/tr)\s*/?>`)
	listItemRegex  = regexp.MustCompile(`(?i)<\s*li[^>]*>`)
	blankLineRegex = regexp.MustCompile(`\n{3,}`)
)

// RenderedOption is a numbered choice; Number is 1-based.
type RenderedOption struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// RenderedStep is a step prepared for display on any surface.
type RenderedStep struct {
	StepID     string                `json:"step_id"`
	Subject    string                `json:"subject"`
	Body       string                `json:"body"`       // rich text as authored
	PlainBody  string                `json:"plain_body"` // tags stripped
	Links      []models.ResourceLink `json:"links,omitempty"`
	VideoQuery string                `json:"video_query,omitempty"`
	Options    []RenderedOption      `json:"options,omitempty"`
}

// Render prepares a step for display.
func Render(step models.Step) RenderedStep {
	subject := step.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	r := RenderedStep{
		StepID:     step.StepID,
		Subject:    subject,
		Body:       step.BotResponse,
		PlainBody:  PlainText(step.BotResponse),
		Links:      step.Links(),
		VideoQuery: step.VideoQuery(),
	}
	for i, opt := range step.UserOptions {
		r.Options = append(r.Options, RenderedOption{Number: i + 1, Text: opt.OptionText})
	}
	return r
}

// Text formats the step as a chat message: subject, body, links, then options.
func (r RenderedStep) Text() string {
	var sb strings.Builder
	sb.WriteString("📋 " + r.Subject + "\n\n")
	sb.WriteString(r.PlainBody)
	if len(r.Links) > 0 {
		sb.WriteString("\n\n📌 Helpful Resources:")
		for _, l := range r.Links {
			sb.WriteString(fmt.Sprintf(LinkFormat, l.Title, l.Link))
		}
	}
	if len(r.Options) > 0 {
		sb.WriteString("\n")
		for _, opt := range r.Options {
			sb.WriteString(fmt.Sprintf(OptionFormat, opt.Number, opt.Text))
		}
	}
	return sb.String()
}

// PlainText converts authored rich text to readable plain text.
func PlainText(rich string) string {
	s := listItemRegex.ReplaceAllString(rich, "\n• ")
	s = blockTagRegex.ReplaceAllString(s, "\n")
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLineRegex.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
