package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	acceptorShutdownTimeout = 5 * time.Second
	upgradeTimeout          = 10 * time.Second
)

// ConnSink receives upgraded connections. Service implements it.
type ConnSink interface {
	Accept(t Transport) bool
}

// AcceptorConfig configures the station listener.
type AcceptorConfig struct {
	Addr      string
	Path      string
	Transport TransportOptions
}

// Acceptor listens for station connections on its own port, upgrades them
// to websockets and hands them to a ConnSink without blocking.
type Acceptor struct {
	cfg      AcceptorConfig
	sink     ConnSink
	upgrader websocket.Upgrader
	logger   Logger

	server   *http.Server
	listener net.Listener
}

// NewAcceptor creates an acceptor. It does not listen until Start.
func NewAcceptor(cfg AcceptorConfig, sink ConnSink) *Acceptor {
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &Acceptor{
		cfg:  cfg,
		sink: sink,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: upgradeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			// Stations are not browsers and send no meaningful Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the acceptor.
func (a *Acceptor) SetLogger(logger Logger) {
	a.logger = logger
}

// Handler returns the HTTP handler serving the upgrade endpoint.
func (a *Acceptor) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get(a.cfg.Path, a.handleUpgrade)
	return r
}

// Start binds the listener and serves in the background. A bind failure
// is returned immediately.
func (a *Acceptor) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return fmt.Errorf("binding station listener on %s: %w", a.cfg.Addr, err)
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: upgradeTimeout,
	}

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("station listener error", "error", err)
		}
	}()

	a.logger.Info("station listener started", "address", ln.Addr().String(), "path", a.cfg.Path)
	return nil
}

// Addr returns the bound address, or "" before Start.
func (a *Acceptor) Addr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Close stops accepting connections. Upgraded connections belong to the
// service and are closed by it.
func (a *Acceptor) Close() error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), acceptorShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down station listener: %w", err)
	}
	return nil
}

func (a *Acceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		connectionsAccepted.WithLabelValues("upgrade_failed").Inc()
		a.logger.Debug("station upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	t := NewWebsocketTransport(conn, a.cfg.Transport)
	if !a.sink.Accept(t) {
		connectionsAccepted.WithLabelValues("rejected").Inc()
		a.logger.Warn("station connection rejected, accept backlog full", "remote_addr", t.RemoteAddr())
		_ = t.Close() //nolint:errcheck // best effort
		return
	}

	connectionsAccepted.WithLabelValues("accepted").Inc()
	a.logger.Info("station connection accepted", "remote_addr", t.RemoteAddr())
}
