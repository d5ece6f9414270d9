package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/BTreeMap/TaxPro/internal/api"
	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/chat"
	"github.com/BTreeMap/TaxPro/internal/consultation"
	"github.com/BTreeMap/TaxPro/internal/genai"
	"github.com/BTreeMap/TaxPro/internal/lockfile"
	"github.com/BTreeMap/TaxPro/internal/messaging"
	"github.com/BTreeMap/TaxPro/internal/narration"
	"github.com/BTreeMap/TaxPro/internal/session"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/BTreeMap/TaxPro/internal/tui"
	"github.com/BTreeMap/TaxPro/internal/twiliowhatsapp"
	"github.com/BTreeMap/TaxPro/internal/video"
	"github.com/BTreeMap/TaxPro/internal/whatsapp"
	"github.com/BTreeMap/TaxPro/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// Session id prefixes keep chat transports from sharing sessions.
const (
	WhatsAppSessionPrefix = "wa:"
	TwilioSessionPrefix   = "twilio:"
)

// app holds the wired assistant and everything that must be closed with it.
type app struct {
	assistant    *assistant.Assistant
	appointments store.AppointmentStore
	inbound      store.DedupRepo
	closers      []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("app.Close: close failed", "error", err)
		}
	}
}

// buildApp loads the workflow tree and wires storage, sessions and collaborators.
func buildApp(ctx context.Context, cfg Config) (*app, error) {
	workflows, err := workflow.NewStore(cfg.WorkflowFile, workflow.WithDefaultCategory(cfg.WorkflowCategory))
	if err != nil {
		return nil, err
	}
	if _, err := workflows.DefaultWorkflow(); err != nil {
		slog.Warn("buildApp: ITR filing service unavailable", "category", cfg.WorkflowCategory, "error", err)
	}

	backend, err := store.Open(cfg.DatabaseURL, store.WithAppointmentsTable(cfg.AppointmentsTable))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{appointments: backend, inbound: backend, closers: []io.Closer{backend}}

	sessions, err := openSessionStore(ctx, cfg, backend, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	scheduler := consultation.NewScheduler(backend, consultation.WithLocation(appointmentLocation(cfg.AppointmentTimezone)))
	a.assistant = assistant.New(workflows, session.NewManager(sessions), scheduler,
		assistant.WithVideoLookup(newVideoLookup(cfg)),
		assistant.WithNarrator(newNarrator(cfg)),
	)
	slog.Info("buildApp: assistant ready", "workflow_source", workflows.Source(), "session_backend", cfg.SessionBackend)
	return a, nil
}

// openSessionStore picks where session state lives. Closers are registered on a.
func openSessionStore(ctx context.Context, cfg Config, backend store.Backend, a *app) (store.SessionStore, error) {
	switch cfg.SessionBackend {
	case SessionBackendSQL:
		if cfg.DatabaseURL == "" {
			slog.Warn("openSessionStore: SESSION_BACKEND=sql without DATABASE_URL, sessions are kept in memory")
		}
		return backend, nil
	case SessionBackendRedis:
		client, err := cfg.NewRedisClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client)
		return store.NewRedisSessionStore(client, cfg.SessionTTL), nil
	default:
		return store.NewInMemoryStore(), nil
	}
}

func appointmentLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("appointmentLocation: unknown timezone, using UTC", "timezone", name, "error", err)
		return time.UTC
	}
	return loc
}

func newVideoLookup(cfg Config) *video.Lookup {
	searcher := video.NewYouTubeSearcher(&http.Client{Timeout: cfg.VideoLookupTimeout})
	return video.NewLookup(searcher, video.WithTimeout(cfg.VideoLookupTimeout))
}

// newNarrator returns a disabled narrator when no OpenAI key is configured.
func newNarrator(cfg Config) *narration.Narrator {
	if cfg.OpenAIAPIKey == "" {
		slog.Info("newNarrator: OPENAI_API_KEY not set, narration disabled")
		return narration.NewNarrator(nil)
	}
	client, err := genai.NewClient(genai.WithAPIKey(cfg.OpenAIAPIKey), genai.WithVoice(cfg.NarrationVoice))
	if err != nil {
		slog.Warn("newNarrator: speech client unavailable, narration disabled", "error", err)
		return narration.NewNarrator(nil)
	}
	return narration.NewNarrator(client, narration.WithTimeout(cfg.NarrationTimeout))
}

// whatsAppDSN falls back to DATABASE_URL, then to a SQLite file in the state directory.
func whatsAppDSN(cfg Config) string {
	if cfg.WhatsAppDSN != "" {
		return cfg.WhatsAppDSN
	}
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return "file:" + filepath.Join(cfg.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

func buildWhatsAppOptions(cfg Config) []whatsapp.Option {
	opts := []whatsapp.Option{whatsapp.WithDBDSN(whatsAppDSN(cfg))}
	if cfg.WhatsAppQROutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(cfg.WhatsAppQROutput))
	}
	if cfg.WhatsAppNumericCode {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	return opts
}

func buildTwilioOptions(cfg Config) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if cfg.TwilioAccountSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID))
	}
	if cfg.TwilioAuthToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken))
	}
	if cfg.TwilioFromNumber != "" {
		opts = append(opts, twiliowhatsapp.WithFromWhats(cfg.TwilioFromNumber))
	}
	return opts
}

// openTransport connects the configured chat transport. It returns a nil
// service when messaging is disabled.
func openTransport(ctx context.Context, cfg Config) (messaging.Service, string, []api.Option, error) {
	switch cfg.MessagingBackend {
	case MessagingWhatsApp:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(cfg)...)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect whatsapp: %w", err)
		}
		return messaging.NewWhatsAppService(client), WhatsAppSessionPrefix, nil, nil
	case MessagingTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(cfg)...)
		if err != nil {
			return nil, "", nil, fmt.Errorf("configure twilio: %w", err)
		}
		svc := messaging.NewTwilioService(client)
		return svc, TwilioSessionPrefix, []api.Option{api.WithTwilioWebhook(http.HandlerFunc(svc.TwilioWebhookHandler))}, nil
	default:
		return nil, "", nil, nil
	}
}

// runServe runs the API and, when configured, the chat transport until ctx is cancelled.
func runServe(ctx context.Context, cfg Config) error {
	lock, err := lockfile.AcquireLock(cfg.StateDir, "serve")
	if err != nil {
		return err
	}
	defer lock.Release()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, prefix, apiOpts, err := openTransport(ctx, cfg)
	if err != nil {
		return err
	}
	apiOpts = append(apiOpts, api.WithAddr(cfg.APIAddr))

	g, gctx := errgroup.WithContext(ctx)
	if svc != nil {
		if err := svc.Start(gctx); err != nil {
			return fmt.Errorf("start %s transport: %w", cfg.MessagingBackend, err)
		}
		defer svc.Stop()
		handler := messaging.NewResponseHandler(svc, chat.NewBot(a.assistant), prefix, messaging.WithDedup(a.inbound))
		g.Go(func() error { return handler.Run(gctx) })
	}

	server := api.NewServer(a.assistant, a.appointments, apiOpts...)
	g.Go(func() error { return server.Run(gctx) })

	slog.Info("runServe: TaxPro running", "addr", cfg.APIAddr, "messaging", cfg.MessagingBackend)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runTUI runs the terminal front end over an in-process assistant.
func runTUI(ctx context.Context, cfg Config) error {
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return tui.Run(ctx, a.assistant)
}

// runCheck loads path, prints a summary and every structural warning.
// It fails when the file cannot be loaded or category has no usable workflow.
func runCheck(w io.Writer, path, category string) error {
	categories, err := workflow.LoadCategories(path)
	if err != nil {
		return err
	}

	workflows, steps := 0, 0
	for _, cat := range categories {
		workflows += len(cat.Workflows)
		for _, wf := range cat.Workflows {
			steps += len(wf.Steps)
		}
	}
	fmt.Fprintf(w, "%s: %d categories, %d workflows, %d steps\n", path, len(categories), workflows, steps)

	warnings := workflow.Validate(categories)
	for _, warning := range warnings {
		fmt.Fprintf(w, "⚠️ %s\n", warning)
	}

	st := workflow.NewStoreFromCategories(categories, workflow.WithDefaultCategory(category))
	wf, err := st.DefaultWorkflow()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ %s starts at %s (%d warnings)\n", wf.Title, workflow.FirstStepID(wf), len(warnings))
	return nil
}
