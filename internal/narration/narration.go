// Package narration reads step text aloud through a speech synthesizer.
//
// Audio is written to a temporary file that exists only for the duration of
// the handoff callback.
package narration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// Defaults for narration.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultLanguage = "en"
)

// ErrDisabled is returned when no synthesizer is configured.
var ErrDisabled = errors.New("narration is not configured")

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (io.ReadCloser, error)
}

// Handoff receives the path of the audio file. The file is removed when it returns.
type Handoff func(path string) error

// Opts holds configuration for a Narrator.
type Opts struct {
	Timeout time.Duration
	TempDir string
}

// Option configures a Narrator.
type Option func(*Opts)

// WithTimeout bounds synthesis.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithTempDir sets where audio files are staged.
func WithTempDir(dir string) Option {
	return func(o *Opts) {
		o.TempDir = dir
	}
}

// Narrator synthesizes speech into scoped temp files.
type Narrator struct {
	synth   Synthesizer
	timeout time.Duration
	tempDir string
}

// NewNarrator creates a Narrator. A nil synth yields a Narrator that always returns ErrDisabled.
func NewNarrator(synth Synthesizer, opts ...Option) *Narrator {
	cfg := Opts{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Narrator{synth: synth, timeout: cfg.Timeout, tempDir: cfg.TempDir}
}

// Enabled reports whether a synthesizer is configured.
func (n *Narrator) Enabled() bool {
	return n != nil && n.synth != nil
}

// Narrate synthesizes text, stages it in a temp file and calls handoff with the
// path. The file is removed on every path out of this function. Synthesis
// failures are *models.CollaboratorError; handoff errors are returned as is.
func (n *Narrator) Narrate(ctx context.Context, text, lang string, handoff Handoff) error {
	if !n.Enabled() {
		return &models.CollaboratorError{Collaborator: "narration", Err: ErrDisabled}
	}
	text = strings.TrimSpace(text)
	if lang == "" {
		lang = DefaultLanguage
	}

	f, err := os.CreateTemp(n.tempDir, "narration-*.mp3")
	if err != nil {
		return fmt.Errorf("create narration file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			slog.Warn("Narrator.Narrate: temp file not removed", "error", rmErr, "path", path)
		}
	}()

	if err := n.synthesizeTo(ctx, f, text, lang); err != nil {
		f.Close()
		slog.Warn("Narrator.Narrate: synthesis failed", "error", err, "lang", lang)
		return &models.CollaboratorError{Collaborator: "narration", Err: err}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close narration file: %w", err)
	}

	slog.Debug("Narrator.Narrate: audio staged", "path", path, "lang", lang)
	return handoff(path)
}

func (n *Narrator) synthesizeTo(ctx context.Context, w io.Writer, text, lang string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	audio, err := n.synth.Synthesize(ctx, text, lang)
	if err != nil {
		return err
	}
	defer audio.Close()
	if _, err := io.Copy(w, audio); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}
