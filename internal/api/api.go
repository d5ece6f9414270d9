// Package api provides the HTTP server and handlers for TaxPro.
//
// It exposes JSON endpoints that drive the assistant for one session at a time,
// plus reference data (glossary, slabs), the optimizer and an admin listing of
// appointments. Every response uses the models.APIResponse envelope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/TaxPro/internal/assistant"
	"github.com/BTreeMap/TaxPro/internal/store"
)

// Server defaults.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	maxRequestBodyBytes    = 1 << 20
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr          string
	TwilioWebhook http.Handler
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithTwilioWebhook mounts an inbound Twilio webhook at /twilio/webhook.
func WithTwilioWebhook(h http.Handler) Option {
	return func(o *Opts) {
		o.TwilioWebhook = h
	}
}

// Server serves the TaxPro HTTP API.
type Server struct {
	assistant    *assistant.Assistant
	appointments store.AppointmentStore
	addr         string
	webhook      http.Handler
}

// NewServer creates a Server over a and the appointment store used for the admin listing.
func NewServer(a *assistant.Assistant, appointments store.AppointmentStore, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{assistant: a, appointments: appointments, addr: cfg.Addr, webhook: cfg.TwilioWebhook}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/service", s.selectServiceHandler)
	mux.HandleFunc("POST /sessions/{id}/options", s.chooseOptionHandler)
	mux.HandleFunc("POST /sessions/{id}/menu", s.mainMenuHandler)
	mux.HandleFunc("PUT /sessions/{id}/contact", s.contactHandler)
	mux.HandleFunc("POST /sessions/{id}/consultation", s.consultationHandler)
	mux.HandleFunc("GET /sessions/{id}/narration", s.narrationHandler)

	mux.HandleFunc("POST /optimize", s.optimizeHandler)
	mux.HandleFunc("GET /glossary", s.glossaryHandler)
	mux.HandleFunc("GET /glossary/{term}", s.glossaryTermHandler)
	mux.HandleFunc("GET /slabs", s.slabsHandler)
	mux.HandleFunc("GET /appointments", s.appointmentsHandler)
	mux.HandleFunc("GET /healthz", s.healthHandler)

	if s.webhook != nil {
		mux.Handle("POST /twilio/webhook", s.webhook)
	}
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Run: listener failed", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return err
	}
	return nil
}
