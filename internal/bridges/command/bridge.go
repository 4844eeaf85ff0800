package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/technoelf/stomata/internal/infrastructure/mqtt"
	"github.com/technoelf/stomata/internal/notifier"
	"github.com/technoelf/stomata/internal/station"
)

// persistTimeout bounds the store write for one command message.
const persistTimeout = 5 * time.Second

// Subscriber is the MQTT surface the bridge needs. Satisfied by *mqtt.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Enqueuer accepts pushes. Satisfied by *notifier.Service.
type Enqueuer interface {
	Enqueue(p notifier.Push) error
}

// Store persists the value before it is pushed, so a station that is
// offline picks it up from the API later. Optional.
type Store interface {
	UpdateState(ctx context.Context, id int64, state string) error
	UpdateConfig(ctx context.Context, id int64, conf string) error
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Bridge.
type Options struct {
	Subscriber Subscriber
	Enqueuer   Enqueuer
	Store      Store // may be nil
	Logger     Logger
	QoS        byte
}

// Bridge turns messages on stomata/command/station/{id}/{state|conf}
// into notifier pushes. The payload is the raw value.
type Bridge struct {
	sub    Subscriber
	queue  Enqueuer
	store  Store
	logger Logger
	qos    byte

	mu      sync.Mutex
	started bool
}

// NewBridge validates opts and creates a Bridge.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Subscriber == nil {
		return nil, ErrMissingSubscriber
	}
	if opts.Enqueuer == nil {
		return nil, ErrMissingEnqueuer
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Bridge{
		sub:    opts.Subscriber,
		queue:  opts.Enqueuer,
		store:  opts.Store,
		logger: opts.Logger,
		qos:    opts.QoS,
	}, nil
}

// Start subscribes to every station command topic.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}

	topic := mqtt.Topics{}.AllStationCommands()
	if err := b.sub.Subscribe(topic, b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	b.started = true
	b.logger.Info("command bridge subscribed", "topic", topic)
	return nil
}

// Stop unsubscribes. Safe to call on a bridge that never started.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return nil
	}
	b.started = false
	if err := b.sub.Unsubscribe(mqtt.Topics{}.AllStationCommands()); err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	return nil
}

// handleMessage runs on an MQTT client goroutine.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	id, kind, ok := mqtt.Topics{}.ParseStationCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	push, err := buildPush(id, kind, string(payload))
	if err != nil {
		return err
	}

	if b.store != nil {
		if err := b.persist(push); err != nil {
			return err
		}
	}

	if err := b.queue.Enqueue(push); err != nil {
		return fmt.Errorf("enqueueing %s for station %d: %w", kind, id, err)
	}
	b.logger.Debug("command enqueued", "station_id", id, "kind", kind)
	return nil
}

func buildPush(id int64, kind, value string) (notifier.Push, error) {
	if id <= 0 {
		return nil, station.ErrInvalidID
	}
	switch kind {
	case mqtt.CommandState:
		if err := station.ValidateState(value); err != nil {
			return nil, err
		}
		return notifier.UpdateState{ID: id, State: value}, nil
	case mqtt.CommandConfig:
		if err := station.ValidateConfig(value); err != nil {
			return nil, err
		}
		return notifier.UpdateConfig{ID: id, Config: value}, nil
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownTopic, kind)
	}
}

func (b *Bridge) persist(push notifier.Push) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	var err error
	switch p := push.(type) {
	case notifier.UpdateState:
		err = b.store.UpdateState(ctx, p.ID, p.State)
	case notifier.UpdateConfig:
		err = b.store.UpdateConfig(ctx, p.ID, p.Config)
	}
	if err != nil {
		return fmt.Errorf("persisting %s for station %d: %w", push.Kind(), push.StationID(), err)
	}
	return nil
}
