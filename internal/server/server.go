package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"codeberg.org/mutker/driveassist/internal/errors"
	"codeberg.org/mutker/driveassist/internal/logger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const (
	readHeaderTimeout = 5 * time.Second
	contentTypeJSON   = "application/json"
)

type Config struct {
	Listen      string
	SignalsPath string
	AdvicePath  string
}

// Server exposes the shared files over HTTP. It only ever reads them.
type Server struct {
	cfg    Config
	router *mux.Router
	http   *http.Server
	log    logger.Logger
}

func New(cfg Config, log logger.Logger) (*Server, error) {
	if cfg.Listen == "" {
		return nil, errors.New().WithMessage(ErrInvalidListen, "listen address is required")
	}

	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/signals", s.fileHandler(s.cfg.SignalsPath)).Methods(http.MethodGet)
	s.router.HandleFunc("/advice", s.fileHandler(s.cfg.AdvicePath)).Methods(http.MethodGet)
}

// Handler returns the router wrapped in the access log.
func (s *Server) Handler() http.Handler {
	return handlers.CombinedLoggingHandler(logger.Writer("http"), s.router)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("listen", s.cfg.Listen).Msg("HTTP server starting")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New().Wrap(ErrServeFailed, err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server stopping")

	if err := s.http.Shutdown(ctx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// fileHandler returns the document at path byte for byte. A missing or
// half-written document yields 503 so clients retry.
func (s *Server) fileHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", path).Msg("Document unavailable")
			writeUnavailable(w, "document unavailable")
			return
		}

		if !json.Valid(data) {
			s.log.Debug().Str("path", path).Msg("Document is not valid JSON")
			writeUnavailable(w, "document malformed")
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func writeUnavailable(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
