// Package models defines the workflow tree loaded from the workflow data file.
package models

// WorkflowData is the root object of a workflow data file.
type WorkflowData struct {
	Categories []WorkflowCategory `json:"categories" yaml:"categories"`
}

// WorkflowCategory groups the workflows offered for one service, e.g. "tax_filing".
type WorkflowCategory struct {
	CategoryID string     `json:"category_id" yaml:"category_id"`
	Workflows  []Workflow `json:"workflows" yaml:"workflows"`
}

// Workflow is an ordered sequence of steps.
type Workflow struct {
	WorkflowID string `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	Steps      []Step `json:"steps" yaml:"steps"`
}

// Step is one unit of guidance. StepID is unique within its workflow.
type Step struct {
	StepID      string         `json:"step_id" yaml:"step_id"`
	Subject     string         `json:"subject,omitempty" yaml:"subject,omitempty"`
	BotResponse string         `json:"bot_response" yaml:"bot_response"` // rich text (HTML)
	Resources   *StepResources `json:"resources,omitempty" yaml:"resources,omitempty"`
	Metadata    *StepMetadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	UserOptions []UserOption   `json:"user_options,omitempty" yaml:"user_options,omitempty"`
}

// StepResources lists helpful links shown under a step.
type StepResources struct {
	Links []ResourceLink `json:"links,omitempty" yaml:"links,omitempty"`
}

// ResourceLink is a titled hyperlink.
type ResourceLink struct {
	Title string `json:"title" yaml:"title"`
	Link  string `json:"link" yaml:"link"`
}

// StepMetadata carries optional hints for collaborators.
type StepMetadata struct {
	VideoQuery string `json:"video_query,omitempty" yaml:"video_query,omitempty"`
}

// UserOption is a branch the user can take from a step.
type UserOption struct {
	OptionText string `json:"option_text" yaml:"option_text"`
	NextStepID string `json:"next_step_id" yaml:"next_step_id"`
}

// VideoQuery returns the step's video query, or "" when none is set.
func (s Step) VideoQuery() string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata.VideoQuery
}

// Links returns the step's resource links, or nil when none are set.
func (s Step) Links() []ResourceLink {
	if s.Resources == nil {
		return nil
	}
	return s.Resources.Links
}
