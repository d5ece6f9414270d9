package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/BTreeMap/TaxPro/internal/store"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
)

// Default configuration constants
const (
	// DefaultStateDir holds the lock file and the WhatsApp device store
	DefaultStateDir = "/var/lib/taxpro"
	// DefaultWhatsAppDBFileName is used when no SQL DSN is configured
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendSQL    = "sql"
	SessionBackendRedis  = "redis"
)

// Messaging backends.
const (
	MessagingNone     = "none"
	MessagingWhatsApp = "whatsapp"
	MessagingTwilio   = "twilio"
)

// Config is decoded from the environment. Command line flags override it.
type Config struct {
	StateDir          string `envconfig:"TAXPRO_STATE_DIR" default:"/var/lib/taxpro"`
	WorkflowFile      string `envconfig:"WORKFLOW_FILE" default:"data/ITR3.json"`
	WorkflowCategory  string `envconfig:"WORKFLOW_CATEGORY" default:"tax_filing"`
	DatabaseURL       string `envconfig:"DATABASE_URL"`
	AppointmentsTable string `envconfig:"APPOINTMENTS_TABLE" default:"appointments"`

	SessionBackend string        `envconfig:"SESSION_BACKEND" default:"memory"`
	SessionTTL     time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	store.RedisConfig

	APIAddr string `envconfig:"API_ADDR" default:":8080"`

	MessagingBackend    string `envconfig:"MESSAGING_BACKEND" default:"none"`
	WhatsAppDSN         string `envconfig:"WHATSAPP_DB_DSN"`
	WhatsAppQROutput    string `envconfig:"WHATSAPP_QR_OUTPUT"`
	WhatsAppNumericCode bool   `envconfig:"WHATSAPP_NUMERIC_CODE"`
	TwilioAccountSID    string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken     string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber    string `envconfig:"TWILIO_FROM_NUMBER"`

	OpenAIAPIKey        string        `envconfig:"OPENAI_API_KEY"`
	NarrationVoice      string        `envconfig:"NARRATION_VOICE" default:"alloy"`
	NarrationTimeout    time.Duration `envconfig:"NARRATION_TIMEOUT" default:"15s"`
	VideoLookupTimeout  time.Duration `envconfig:"VIDEO_LOOKUP_TIMEOUT" default:"5s"`
	AppointmentTimezone string        `envconfig:"APPOINTMENT_TIMEZONE" default:"Asia/Kolkata"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendSQL, SessionBackendRedis:
	default:
		return fmt.Errorf("invalid SESSION_BACKEND %q (want memory, sql or redis)", c.SessionBackend)
	}
	switch c.MessagingBackend {
	case MessagingNone, MessagingWhatsApp, MessagingTwilio:
	default:
		return fmt.Errorf("invalid MESSAGING_BACKEND %q (want none, whatsapp or twilio)", c.MessagingBackend)
	}
	if c.SessionBackend == SessionBackendRedis && c.URL == "" {
		return errors.New("SESSION_BACKEND=redis requires REDIS_URL")
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// loadConfig reads envFile (if present) and decodes the environment.
func loadConfig(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil {
		slog.Debug("failed to load .env file", "path", envFile, "error", err)
	} else {
		slog.Debug("successfully loaded .env file", "path", envFile)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

func logConfig(cfg Config) {
	slog.Debug("configuration loaded",
		"state_dir", cfg.StateDir,
		"workflow_file", cfg.WorkflowFile,
		"workflow_category", cfg.WorkflowCategory,
		"database_url_set", cfg.DatabaseURL != "",
		"appointments_table", cfg.AppointmentsTable,
		"session_backend", cfg.SessionBackend,
		"session_ttl", cfg.SessionTTL,
		"redis_url_set", cfg.URL != "",
		"api_addr", cfg.APIAddr,
		"messaging_backend", cfg.MessagingBackend,
		"twilio_auth_token_set", cfg.TwilioAuthToken != "",
		"openai_api_key_set", cfg.OpenAIAPIKey != "",
		"video_lookup_timeout", cfg.VideoLookupTimeout,
		"narration_timeout", cfg.NarrationTimeout,
		"appointment_timezone", cfg.AppointmentTimezone)
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelDebug, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

// initializeLogger installs the structured text logger on stdout.
func initializeLogger(level slog.Level) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// newRootCommand builds the CLI. cfg is filled in before any subcommand runs.
func newRootCommand() *cobra.Command {
	var (
		cfg      Config
		envFile  string
		stateDir string
		workflow string
		category string
		logLevel string
	)

	root := &cobra.Command{
		Use:           "TaxPro",
		Short:         "Tax filing assistant for Indian income tax returns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(envFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("state-dir") {
				loaded.StateDir = stateDir
			}
			if flags.Changed("workflow-file") {
				loaded.WorkflowFile = workflow
			}
			if flags.Changed("workflow-category") {
				loaded.WorkflowCategory = category
			}
			if flags.Changed("log-level") {
				loaded.LogLevel = logLevel
			}
			if flags.Changed("addr") {
				loaded.APIAddr, _ = flags.GetString("addr")
			}
			if flags.Changed("messaging") {
				loaded.MessagingBackend, _ = flags.GetString("messaging")
			}
			if flags.Changed("sessions") {
				loaded.SessionBackend, _ = flags.GetString("sessions")
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			level, _ := parseLogLevel(loaded.LogLevel)
			initializeLogger(level)
			logConfig(loaded)
			cfg = loaded
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.StringVar(&stateDir, "state-dir", DefaultStateDir, "state directory (overrides TAXPRO_STATE_DIR)")
	pf.StringVar(&workflow, "workflow-file", "data/ITR3.json", "workflow data file (overrides WORKFLOW_FILE)")
	pf.StringVar(&category, "workflow-category", "tax_filing", "category backing the ITR service (overrides WORKFLOW_CATEGORY)")
	pf.StringVar(&logLevel, "log-level", "debug", "log level: debug, info, warn or error (overrides LOG_LEVEL)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the chat transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	serve.Flags().String("addr", ":8080", "API listen address (overrides API_ADDR)")
	serve.Flags().String("messaging", MessagingNone, "chat transport: none, whatsapp or twilio (overrides MESSAGING_BACKEND)")
	serve.Flags().String("sessions", SessionBackendMemory, "session backend: memory, sql or redis (overrides SESSION_BACKEND)")

	tui := &cobra.Command{
		Use:   "tui",
		Short: "Run the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), cfg)
		},
	}

	check := &cobra.Command{
		Use:   "check [workflow-file]",
		Short: "Validate a workflow data file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.WorkflowFile
			if len(args) == 1 {
				path = args[0]
			}
			return runCheck(cmd.OutOrStdout(), path, cfg.WorkflowCategory)
		},
	}

	root.AddCommand(serve, tui, check)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		var loadErr *models.DataLoadError
		if errors.As(err, &loadErr) {
			slog.Error("TaxPro cannot start: workflow data unavailable", "source", loadErr.Source, "error", loadErr.Err)
		} else {
			slog.Error("TaxPro failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
	slog.Info("TaxPro exited successfully")
}
