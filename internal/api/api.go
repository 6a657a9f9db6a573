// Package api provides HTTP handlers and the main API server logic for
// CallPipe.
//
// It exposes the Twilio voice webhooks that drive calls plus JSON endpoints
// for health, active sessions, and transcripts. The API integrates with the
// dialogue, telephony, and store modules.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/CallPipe/internal/dialogue"
	"github.com/BTreeMap/CallPipe/internal/store"
	"github.com/BTreeMap/CallPipe/internal/telephony"
)

// Server timeouts.
const (
	DefaultAddr            = ":8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr      string
	Validator telephony.Validator
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithValidator sets the webhook signature validator.
func WithValidator(v telephony.Validator) Option {
	return func(o *Opts) { o.Validator = v }
}

// Server wires the dialogue driver and TwiML renderer to HTTP endpoints.
type Server struct {
	driver    *dialogue.Driver
	renderer  *telephony.Renderer
	st        store.Store
	validator telephony.Validator
	addr      string
	httpSrv   *http.Server
}

// NewServer creates an API server over the given driver, renderer, and store.
func NewServer(driver *dialogue.Driver, renderer *telephony.Renderer, st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:      DefaultAddr,
		Validator: telephony.NoopValidator{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		driver:    driver,
		renderer:  renderer,
		st:        st,
		validator: cfg.Validator,
		addr:      cfg.Addr,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/voice", s.voiceHandler)
	mux.HandleFunc("/voice/turn", s.turnHandler)
	mux.HandleFunc("/voice/status", s.statusCallbackHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/sessions", s.sessionsHandler)
	mux.HandleFunc("/transcripts", s.transcriptsHandler)
	return mux
}

// Run starts the HTTP server and blocks until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: CallPipe API running", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("API server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown failed: %w", err)
	}
	slog.Info("Server.Run: API server stopped")
	return nil
}
