package presence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/technoelf/stomata/internal/infrastructure/mqtt"
	"github.com/technoelf/stomata/internal/notifier"
)

// DefaultBufferSize is the event buffer used when Config.BufferSize is zero.
const DefaultBufferSize = 256

// Status values published in presence messages.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stomata_presence_events_total",
		Help: "Station presence events by result (published/dropped/publish_failed)",
	},
	[]string{"result"},
)

// Publisher publishes retained MQTT messages. Satisfied by *mqtt.Client.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// PointWriter records presence history. Satisfied by *influxdb.Client.
type PointWriter interface {
	WriteStationPresence(stationID int64, online bool, reason string, session time.Duration, at time.Time)
}

// Logger defines the logging interface used by the tracker.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config controls the tracker.
type Config struct {
	BufferSize int
}

// Deps are the sinks presence changes are fanned out to. Nil sinks are skipped.
type Deps struct {
	Publisher Publisher
	Writer    PointWriter
	Logger    Logger
}

type event struct {
	id     int64
	online bool
	remote string
	reason notifier.DisconnectReason
	at     time.Time
}

// Message is the retained payload on stomata/station/{id}/presence.
type Message struct {
	StationID  int64  `json:"station_id"`
	Status     string `json:"status"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Tracker implements notifier.Observer. Events are queued without blocking
// and delivered to the sinks by Run; when the buffer is full they are
// dropped and counted.
type Tracker struct {
	events    chan event
	publisher Publisher
	writer    PointWriter
	logger    Logger

	// since is owned by Run.
	since map[int64]time.Time
}

var _ notifier.Observer = (*Tracker)(nil)

// New creates a Tracker.
func New(cfg Config, deps Deps) *Tracker {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Tracker{
		events:    make(chan event, cfg.BufferSize),
		publisher: deps.Publisher,
		writer:    deps.Writer,
		logger:    deps.Logger,
		since:     make(map[int64]time.Time),
	}
}

// StationConnected queues an online event.
func (t *Tracker) StationConnected(id int64, remoteAddr string, at time.Time) {
	t.offer(event{id: id, online: true, remote: remoteAddr, at: at})
}

// StationDisconnected queues an offline event.
func (t *Tracker) StationDisconnected(id int64, reason notifier.DisconnectReason, at time.Time) {
	t.offer(event{id: id, reason: reason, at: at})
}

func (t *Tracker) offer(ev event) {
	select {
	case t.events <- ev:
	default:
		eventsTotal.WithLabelValues("dropped").Inc()
		t.logger.Warn("presence event dropped", "station_id", ev.id, "online", ev.online)
	}
}

// Run delivers events until ctx is cancelled, then flushes whatever is
// still buffered.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-t.events:
			t.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-t.events:
					t.deliver(ev)
				default:
					return nil
				}
			}
		}
	}
}

func (t *Tracker) deliver(ev event) {
	var session time.Duration
	if ev.online {
		t.since[ev.id] = ev.at
	} else if start, ok := t.since[ev.id]; ok {
		session = ev.at.Sub(start)
		delete(t.since, ev.id)
	}

	if t.writer != nil {
		t.writer.WriteStationPresence(ev.id, ev.online, string(ev.reason), session, ev.at)
	}

	if t.publisher == nil {
		return
	}
	payload, err := json.Marshal(buildMessage(ev))
	if err != nil {
		return
	}
	if err := t.publisher.PublishRetained(mqtt.Topics{}.StationPresence(ev.id), payload); err != nil {
		eventsTotal.WithLabelValues("publish_failed").Inc()
		t.logger.Warn("presence publish failed", "station_id", ev.id, "error", err)
		return
	}
	eventsTotal.WithLabelValues("published").Inc()
	t.logger.Debug("presence published", "station_id", ev.id, "online", ev.online)
}

func buildMessage(ev event) Message {
	msg := Message{
		StationID: ev.id,
		Status:    StatusOffline,
		Reason:    string(ev.reason),
		Timestamp: ev.at.UTC().Format(time.RFC3339),
	}
	if ev.online {
		msg.Status = StatusOnline
		msg.RemoteAddr = ev.remote
	}
	return msg
}
