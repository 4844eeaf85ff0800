package notifier

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// registeredReply is sent to a station once its credentials are accepted.
var registeredReply = []byte("{}")

// Config tunes the service loop.
type Config struct {
	TickInterval     time.Duration
	StationTimeout   time.Duration
	HandshakeTimeout time.Duration
	QueueSize        int
	AcceptBacklog    int
	HandshakeRate    float64
	HandshakeBurst   int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:   time.Second,
		StationTimeout: 600 * time.Second,
		QueueSize:      1024,
		AcceptBacklog:  64,
		HandshakeRate:  0.2,
		HandshakeBurst: 3,
	}
}

// Deps are the collaborators of a Service. Store is required.
type Deps struct {
	Store    CredentialStore
	Verify   VerifyFunc
	Clock    clockwork.Clock
	Observer Observer
	Logger   Logger
}

// pendingConn is a connection that has not authenticated yet.
type pendingConn struct {
	transport Transport
	lastSeen  time.Time
	limiter   *rate.Limiter

	// held is a registration message waiting for the limiter to refill.
	held []byte
}

// Service owns the registry and every connection. All connection state is
// mutated by the Run goroutine only; producers interact through Enqueue,
// the acceptor through Accept, and readers through Connected.
type Service struct {
	cfg      Config
	clock    clockwork.Clock
	queue    *Queue
	registry *Registry
	auth     *Authenticator
	observer Observer
	logger   Logger

	incoming chan Transport
	pending  []*pendingConn

	// backlog holds pushes whose station had a full send buffer. They are
	// retried ahead of the queue on the next tick.
	backlog []Push

	running   atomic.Bool
	connected atomic.Pointer[[]int64]
}

// NewService creates a service. Zero values in cfg fall back to
// DefaultConfig.
func NewService(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.StationTimeout <= 0 {
		cfg.StationTimeout = def.StationTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = cfg.StationTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.AcceptBacklog <= 0 {
		cfg.AcceptBacklog = def.AcceptBacklog
	}
	if cfg.HandshakeRate <= 0 {
		cfg.HandshakeRate = def.HandshakeRate
	}
	if cfg.HandshakeBurst <= 0 {
		cfg.HandshakeBurst = def.HandshakeBurst
	}

	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	authn := NewAuthenticator(deps.Store, deps.Verify)
	authn.SetLogger(deps.Logger)

	s := &Service{
		cfg:      cfg,
		clock:    deps.Clock,
		queue:    NewQueue(cfg.QueueSize),
		registry: NewRegistry(),
		auth:     authn,
		observer: deps.Observer,
		logger:   deps.Logger,
		incoming: make(chan Transport, cfg.AcceptBacklog),
	}
	empty := []int64{}
	s.connected.Store(&empty)
	return s
}

// Accept hands a new connection to the loop. It returns false, without
// closing t, when the hand-off backlog is full.
func (s *Service) Accept(t Transport) bool {
	select {
	case s.incoming <- t:
		return true
	default:
		return false
	}
}

// Enqueue schedules p for delivery to its station. It never blocks.
// Safe for concurrent use.
func (s *Service) Enqueue(p Push) error {
	err := s.queue.Enqueue(p)
	if errors.Is(err, ErrQueueFull) {
		pushesTotal.WithLabelValues(p.Kind(), "queue_full").Inc()
	}
	return err
}

// Connected reports whether id was registered at the end of the last tick.
func (s *Service) Connected(id int64) bool {
	_, found := slices.BinarySearch(*s.connected.Load(), id)
	return found
}

// ConnectedIDs returns the stations registered at the end of the last tick.
// The slice must not be modified.
func (s *Service) ConnectedIDs() []int64 {
	return *s.connected.Load()
}

// Run drives the loop until ctx is cancelled, then closes every connection.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("notifier loop started",
		"tick_interval", s.cfg.TickInterval,
		"station_timeout", s.cfg.StationTimeout)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case <-ticker.Chan():
			s.tick(ctx, s.clock.Now())
		case <-s.queue.Ready():
			s.tick(ctx, s.clock.Now())
		}
	}
}

// tick runs one iteration: accept, authenticate, service registered
// stations, evict, dispatch.
func (s *Service) tick(ctx context.Context, now time.Time) {
	start := s.clock.Now()

	s.acceptIncoming(now)
	s.processPending(ctx, now)
	s.processStations(now)
	s.evict(now)
	s.dispatch(now)
	s.publish()

	tickDuration.Observe(s.clock.Since(start).Seconds())
}

func (s *Service) acceptIncoming(now time.Time) {
	for {
		select {
		case t := <-s.incoming:
			s.pending = append(s.pending, &pendingConn{
				transport: t,
				lastSeen:  now,
				limiter:   rate.NewLimiter(rate.Limit(s.cfg.HandshakeRate), s.cfg.HandshakeBurst),
			})
		default:
			return
		}
	}
}

func (s *Service) processPending(ctx context.Context, now time.Time) {
	s.retainPending(func(pc *pendingConn) bool {
		return s.handlePending(ctx, pc, now)
	})
}

// handlePending consumes at most one frame and reports whether pc is
// still pending.
func (s *Service) handlePending(ctx context.Context, pc *pendingConn, now time.Time) bool {
	if pc.held != nil {
		payload := pc.held
		pc.held = nil
		return s.handshake(ctx, pc, payload, now)
	}

	frame, ok, err := pc.transport.Poll()
	if err != nil {
		s.logger.Debug("unauthenticated connection closed",
			"remote_addr", pc.transport.RemoteAddr(), "error", err)
		_ = pc.transport.Close() //nolint:errcheck // already failed
		return false
	}
	if !ok {
		return true
	}

	switch frame.Kind {
	case FramePing:
		if err := pc.transport.WritePong(frame.Payload); err != nil {
			_ = pc.transport.Close() //nolint:errcheck // write already failed
			return false
		}
		pc.lastSeen = now
		return true

	case FrameText:
		return s.handshake(ctx, pc, frame.Payload, now)

	default:
		// Close frames are answered by the transport; its read side fails next.
		return true
	}
}

// handshake processes a registration message and reports whether pc is
// still pending. Failures are silent to the peer. A message over the rate
// limit is held and retried on a later tick; no new frames are read from
// pc meanwhile.
func (s *Service) handshake(ctx context.Context, pc *pendingConn, payload []byte, now time.Time) bool {
	remote := pc.transport.RemoteAddr()

	if !pc.limiter.AllowN(now, 1) {
		if pc.held == nil {
			handshakesTotal.WithLabelValues("rate_limited").Inc()
			s.logger.Debug("station handshake rate limited", "remote_addr", remote)
		}
		pc.held = payload
		return true
	}

	id, result := s.auth.Authenticate(ctx, payload)
	handshakesTotal.WithLabelValues(string(result)).Inc()
	if result != HandshakeAccepted {
		s.logger.Debug("station handshake rejected", "remote_addr", remote, "result", result)
		return true
	}

	if err := pc.transport.WriteText(registeredReply); err != nil {
		s.logger.Debug("station handshake reply failed", "station_id", id, "error", err)
		_ = pc.transport.Close() //nolint:errcheck // write already failed
		return false
	}

	if s.registry.Promote(id, pc.transport, now) {
		disconnectsTotal.WithLabelValues(string(ReasonDisplaced)).Inc()
		s.observer.StationDisconnected(id, ReasonDisplaced, now)
		s.logger.Info("station connection displaced", "station_id", id)
	}
	s.observer.StationConnected(id, remote, now)
	s.logger.Info("station registered", "station_id", id, "remote_addr", remote)
	return false
}

// processStations consumes at most one frame from each registered station.
// Only pings matter; text and close frames are discarded.
func (s *Service) processStations(now time.Time) {
	for _, sc := range s.registry.Entries() {
		frame, ok, err := sc.Transport.Poll()
		if err != nil {
			s.drop(sc.ID, sc.Transport, ReasonClosed, now)
			continue
		}
		if !ok || frame.Kind != FramePing {
			continue
		}
		if err := sc.Transport.WritePong(frame.Payload); err != nil && !errors.Is(err, ErrSendBufferFull) {
			s.drop(sc.ID, sc.Transport, ReasonSendFailed, now)
			continue
		}
		s.registry.Touch(sc.ID, sc.Transport, now)
	}
}

func (s *Service) evict(now time.Time) {
	for _, id := range s.registry.EvictStale(now, s.cfg.StationTimeout) {
		disconnectsTotal.WithLabelValues(string(ReasonTimeout)).Inc()
		s.observer.StationDisconnected(id, ReasonTimeout, now)
		s.logger.Info("station timed out", "station_id", id)
	}

	s.retainPending(func(pc *pendingConn) bool {
		if now.Sub(pc.lastSeen) < s.cfg.HandshakeTimeout {
			return true
		}
		s.logger.Debug("unauthenticated connection timed out", "remote_addr", pc.transport.RemoteAddr())
		_ = pc.transport.Close() //nolint:errcheck // best effort
		return false
	})
}

// dispatch routes the backlog and then the queued pushes. Once a station's
// send buffer is full, its remaining pushes in this pass go to the backlog
// so per-station order is kept.
func (s *Service) dispatch(now time.Time) {
	queueDepth.Set(float64(s.queue.Len()))

	batch := s.backlog
	s.backlog = nil
	batch = append(batch, s.queue.Drain()...)

	var saturated map[int64]bool
	for _, p := range batch {
		id := p.StationID()

		t, ok := s.registry.Route(id)
		if !ok {
			pushesTotal.WithLabelValues(p.Kind(), "unroutable").Inc()
			s.logger.Debug("push dropped, station not connected", "station_id", id, "kind", p.Kind())
			continue
		}

		if saturated[id] {
			s.postpone(p)
			continue
		}

		payload, err := p.encode()
		if err != nil {
			pushesTotal.WithLabelValues(p.Kind(), "failed").Inc()
			s.logger.Error("encoding push", "station_id", id, "kind", p.Kind(), "error", err)
			continue
		}

		err = t.WriteText(payload)
		switch {
		case err == nil:
			pushesTotal.WithLabelValues(p.Kind(), "delivered").Inc()
		case errors.Is(err, ErrSendBufferFull):
			if saturated == nil {
				saturated = make(map[int64]bool)
			}
			saturated[id] = true
			s.postpone(p)
		default:
			pushesTotal.WithLabelValues(p.Kind(), "failed").Inc()
			s.logger.Warn("push delivery failed", "station_id", id, "kind", p.Kind(), "error", err)
			s.drop(id, t, ReasonSendFailed, now)
		}
	}
	backlogDepth.Set(float64(len(s.backlog)))
}

// postpone keeps p for the next tick, or drops it when the backlog is as
// large as the queue.
func (s *Service) postpone(p Push) {
	if len(s.backlog) >= s.cfg.QueueSize {
		pushesTotal.WithLabelValues(p.Kind(), "overflow").Inc()
		s.logger.Warn("push dropped, station backlog full", "station_id", p.StationID(), "kind", p.Kind())
		return
	}
	s.backlog = append(s.backlog, p)
}

// drop removes id from the registry if t is still its connection.
func (s *Service) drop(id int64, t Transport, reason DisconnectReason, now time.Time) {
	if !s.registry.Remove(id, t) {
		return
	}
	disconnectsTotal.WithLabelValues(string(reason)).Inc()
	s.observer.StationDisconnected(id, reason, now)
	s.logger.Info("station disconnected", "station_id", id, "reason", reason)
}

// retainPending keeps the pending connections for which keep returns true,
// preserving order.
func (s *Service) retainPending(keep func(*pendingConn) bool) {
	kept := s.pending[:0]
	for _, pc := range s.pending {
		if keep(pc) {
			kept = append(kept, pc)
		}
	}
	clear(s.pending[len(kept):])
	s.pending = kept
}

func (s *Service) publish() {
	ids := s.registry.IDs()
	s.connected.Store(&ids)
	stationsConnected.Set(float64(len(ids)))
	pendingConnections.Set(float64(len(s.pending)))
}

func (s *Service) shutdown() {
	now := s.clock.Now()

drain:
	for {
		select {
		case t := <-s.incoming:
			_ = t.Close() //nolint:errcheck // shutting down
		default:
			break drain
		}
	}

	for _, pc := range s.pending {
		_ = pc.transport.Close() //nolint:errcheck // shutting down
	}
	clear(s.pending)
	s.pending = s.pending[:0]
	s.backlog = nil

	for _, id := range s.registry.CloseAll() {
		disconnectsTotal.WithLabelValues(string(ReasonShutdown)).Inc()
		s.observer.StationDisconnected(id, ReasonShutdown, now)
	}
	s.publish()
	s.logger.Info("notifier loop stopped")
}
