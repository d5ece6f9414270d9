// Package workflow loads the static category → workflow → step tree and navigates it.
//
// The tree is read once at startup and is read-only for the lifetime of the process.
package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BTreeMap/TaxPro/internal/models"
	"gopkg.in/yaml.v3"
)

// DefaultCategoryID is the category that backs the ITR filing service.
const DefaultCategoryID = "tax_filing"

// Format identifies the encoding of a workflow data file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the decoder from the file extension. Unknown extensions are read as JSON.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadCategories reads and validates the workflow data file at path.
// Any failure is returned as a *models.DataLoadError.
func LoadCategories(path string) ([]models.WorkflowCategory, error) {
	slog.Debug("LoadCategories invoked", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("LoadCategories read failed", "error", err, "path", path)
		return nil, &models.DataLoadError{Source: path, Err: err}
	}
	categories, err := ParseCategories(data, DetectFormat(path))
	if err != nil {
		var dle *models.DataLoadError
		if errors.As(err, &dle) {
			dle.Source = path
			return nil, dle
		}
		return nil, &models.DataLoadError{Source: path, Err: err}
	}
	for _, warning := range Validate(categories) {
		slog.Warn("LoadCategories workflow data warning", "path", path, "warning", warning)
	}
	slog.Info("LoadCategories loaded workflow data", "path", path, "categories", len(categories))
	return categories, nil
}

// ParseCategories decodes workflow data and checks required fields.
func ParseCategories(data []byte, format Format) ([]models.WorkflowCategory, error) {
	var root models.WorkflowData
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &root)
	default:
		err = json.Unmarshal(data, &root)
	}
	if err != nil {
		return nil, &models.DataLoadError{Source: string(format), Err: fmt.Errorf("decode: %w", err)}
	}
	if err := checkRequired(root.Categories); err != nil {
		return nil, &models.DataLoadError{Source: string(format), Err: err}
	}
	return root.Categories, nil
}

func checkRequired(categories []models.WorkflowCategory) error {
	if len(categories) == 0 {
		return errors.New("no categories defined")
	}
	for ci, cat := range categories {
		if cat.CategoryID == "" {
			return fmt.Errorf("categories[%d]: missing category_id", ci)
		}
		for wi, wf := range cat.Workflows {
			if len(wf.Steps) == 0 {
				return fmt.Errorf("category %q workflows[%d]: no steps", cat.CategoryID, wi)
			}
			for si, step := range wf.Steps {
				if step.StepID == "" {
					return fmt.Errorf("category %q workflows[%d] steps[%d]: missing step_id", cat.CategoryID, wi, si)
				}
				if step.BotResponse == "" {
					return fmt.Errorf("step %q: missing bot_response", step.StepID)
				}
				for oi, opt := range step.UserOptions {
					if opt.NextStepID == "" {
						return fmt.Errorf("step %q user_options[%d]: missing next_step_id", step.StepID, oi)
					}
				}
			}
		}
	}
	return nil
}

// Validate reports problems that do not prevent loading: duplicate ids, which
// first-match lookup silently shadows, and options pointing at missing steps,
// which surface as navigation errors at runtime.
func Validate(categories []models.WorkflowCategory) []string {
	var warnings []string
	seenCategories := make(map[string]bool)
	for _, cat := range categories {
		if seenCategories[cat.CategoryID] {
			warnings = append(warnings, fmt.Sprintf("duplicate category_id %q: only the first is reachable", cat.CategoryID))
		}
		seenCategories[cat.CategoryID] = true

		for wi, wf := range cat.Workflows {
			ids := make(map[string]bool, len(wf.Steps))
			for _, step := range wf.Steps {
				if ids[step.StepID] {
					warnings = append(warnings, fmt.Sprintf("category %q workflow %d: duplicate step_id %q", cat.CategoryID, wi, step.StepID))
				}
				ids[step.StepID] = true
			}
			for _, step := range wf.Steps {
				for _, opt := range step.UserOptions {
					if !ids[opt.NextStepID] {
						warnings = append(warnings, fmt.Sprintf("category %q workflow %d: step %q option %q points to unknown step %q",
							cat.CategoryID, wi, step.StepID, opt.OptionText, opt.NextStepID))
					}
				}
			}
		}
	}
	return warnings
}

// FindCategory returns the first category with the given id.
// Duplicate ids are allowed; later duplicates are unreachable.
func FindCategory(categories []models.WorkflowCategory, categoryID string) (models.WorkflowCategory, bool) {
	for _, cat := range categories {
		if cat.CategoryID == categoryID {
			return cat, true
		}
	}
	return models.WorkflowCategory{}, false
}

// Opts holds configuration options for a Store.
type Opts struct {
	DefaultCategory string
}

// Option defines a configuration option for a Store.
type Option func(*Opts)

// WithDefaultCategory sets the category that backs the ITR filing service.
func WithDefaultCategory(categoryID string) Option {
	return func(o *Opts) {
		o.DefaultCategory = categoryID
	}
}

// Store is the read-only workflow tree.
type Store struct {
	source          string
	categories      []models.WorkflowCategory
	defaultCategory string
}

// NewStore loads the workflow data file at path.
func NewStore(path string, opts ...Option) (*Store, error) {
	categories, err := LoadCategories(path)
	if err != nil {
		return nil, err
	}
	return newStore(path, categories, opts...), nil
}

// NewStoreFromCategories wraps categories that were already loaded.
func NewStoreFromCategories(categories []models.WorkflowCategory, opts ...Option) *Store {
	return newStore("memory", categories, opts...)
}

func newStore(source string, categories []models.WorkflowCategory, opts ...Option) *Store {
	cfg := Opts{DefaultCategory: DefaultCategoryID}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{source: source, categories: categories, defaultCategory: cfg.DefaultCategory}
}

// Source returns where the tree was loaded from.
func (s *Store) Source() string {
	return s.source
}

// Categories returns the loaded categories in file order.
func (s *Store) Categories() []models.WorkflowCategory {
	return s.categories
}

// Category looks up a category by id, first match wins.
func (s *Store) Category(categoryID string) (models.WorkflowCategory, error) {
	cat, ok := FindCategory(s.categories, categoryID)
	if !ok {
		return models.WorkflowCategory{}, fmt.Errorf("%w: %s", models.ErrCategoryNotFound, categoryID)
	}
	return cat, nil
}

// DefaultWorkflow returns the first workflow of the default category.
func (s *Store) DefaultWorkflow() (models.Workflow, error) {
	cat, err := s.Category(s.defaultCategory)
	if err != nil {
		return models.Workflow{}, err
	}
	if len(cat.Workflows) == 0 || len(cat.Workflows[0].Steps) == 0 {
		return models.Workflow{}, fmt.Errorf("%w: category %s", models.ErrNoWorkflow, s.defaultCategory)
	}
	return cat.Workflows[0], nil
}
