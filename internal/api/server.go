package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/technoelf/stomata/internal/auth"
	"github.com/technoelf/stomata/internal/infrastructure/config"
	"github.com/technoelf/stomata/internal/infrastructure/logging"
	"github.com/technoelf/stomata/internal/notifier"
	"github.com/technoelf/stomata/internal/station"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Notifier is the part of the notifier service the API produces into.
// Satisfied by *notifier.Service.
type Notifier interface {
	Enqueue(p notifier.Push) error
	Connected(id int64) bool
}

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Stations station.Repository
	Notifier Notifier

	// Health lists the components reported by /api/v1/health, by name.
	Health map[string]HealthChecker

	// Credential functions. Nil means the argon2id implementations in
	// package auth.
	GenerateToken func() string
	HashToken     func(id int64, token string) (string, error)
	VerifyToken   func(id int64, token, hash string) (bool, error)

	Version string
}

// Server is the producer HTTP API.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	stations station.Repository
	notifier Notifier
	health   map[string]HealthChecker

	generateToken func() string
	hashToken     func(id int64, token string) (string, error)
	verifyToken   func(id int64, token, hash string) (bool, error)

	version  string
	server   *http.Server
	listener net.Listener
}

// New creates a server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Stations == nil {
		return nil, fmt.Errorf("station repository is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.GenerateToken == nil {
		deps.GenerateToken = auth.GenerateToken
	}
	if deps.HashToken == nil {
		deps.HashToken = auth.HashStationToken
	}
	if deps.VerifyToken == nil {
		deps.VerifyToken = auth.VerifyStationToken
	}

	return &Server{
		cfg:           deps.Config,
		logger:        deps.Logger,
		stations:      deps.Stations,
		notifier:      deps.Notifier,
		health:        deps.Health,
		generateToken: deps.GenerateToken,
		hashToken:     deps.HashToken,
		verifyToken:   deps.VerifyToken,
		version:       deps.Version,
	}, nil
}

// Start binds the listen address and serves in the background. A bind
// failure is returned directly.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close waits up to 10 seconds for in-flight requests, then closes the
// remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
