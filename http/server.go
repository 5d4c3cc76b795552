// Package http serves assessments over JSON, HTML forms and WebSocket.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"obesityrisk/assessment"
	"obesityrisk/ml"
)

// ServerConfig holds listener settings.
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
}

// DefaultServerConfig returns the settings used when config leaves them unset.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// ArtifactStatus reports whether the served artifact changed on disk.
type ArtifactStatus interface {
	Changed() (bool, time.Time)
}

// Deps are the collaborators handlers need. Service and Model are required.
type Deps struct {
	Service *assessment.Service
	Model   ml.ModelInfo
	Watcher ArtifactStatus
	Logger  *zap.Logger
}

// Server owns the listener.
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// NewServer wires routes and middleware around deps.
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Service == nil || deps.Model == nil {
		return nil, errors.New("service and model are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}

	h, err := newHandlers(deps)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	h.register(mux)

	chain := Chain(
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		RequestSizeMiddleware(config.MaxBodyBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      chain(mux),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  120 * time.Second,
		},
		config: config,
		logger: deps.Logger,
	}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
