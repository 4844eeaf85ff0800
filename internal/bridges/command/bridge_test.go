package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/technoelf/stomata/internal/infrastructure/mqtt"
	"github.com/technoelf/stomata/internal/notifier"
	"github.com/technoelf/stomata/internal/station"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	err      error
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.handlers == nil {
		s.handlers = make(map[string]mqtt.MessageHandler)
	}
	s.handlers[topic] = h
	return nil
}

func (s *fakeSubscriber) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, topic)
	return nil
}

// deliver simulates the broker routing a message to the wildcard handler.
func (s *fakeSubscriber) deliver(topic, payload string) error {
	s.mu.Lock()
	h := s.handlers[mqtt.Topics{}.AllStationCommands()]
	s.mu.Unlock()
	return h(topic, []byte(payload))
}

type fakeQueue struct {
	pushes []notifier.Push
	err    error
}

func (q *fakeQueue) Enqueue(p notifier.Push) error {
	if q.err != nil {
		return q.err
	}
	q.pushes = append(q.pushes, p)
	return nil
}

type fakeStore struct {
	states  map[int64]string
	configs map[int64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: map[int64]string{1: "idle"}, configs: map[int64]string{1: ""}}
}

func (s *fakeStore) UpdateState(_ context.Context, id int64, state string) error {
	if _, ok := s.states[id]; !ok {
		return station.ErrStationNotFound
	}
	s.states[id] = state
	return nil
}

func (s *fakeStore) UpdateConfig(_ context.Context, id int64, conf string) error {
	if _, ok := s.configs[id]; !ok {
		return station.ErrStationNotFound
	}
	s.configs[id] = conf
	return nil
}

func startBridge(t *testing.T, store Store) (*fakeSubscriber, *fakeQueue) {
	t.Helper()
	sub := &fakeSubscriber{}
	q := &fakeQueue{}
	b, err := NewBridge(Options{Subscriber: sub, Enqueuer: q, Store: store, QoS: 1})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return sub, q
}

func TestNewBridge_RequiresDeps(t *testing.T) {
	if _, err := NewBridge(Options{Enqueuer: &fakeQueue{}}); !errors.Is(err, ErrMissingSubscriber) {
		t.Errorf("err = %v, want ErrMissingSubscriber", err)
	}
	if _, err := NewBridge(Options{Subscriber: &fakeSubscriber{}}); !errors.Is(err, ErrMissingEnqueuer) {
		t.Errorf("err = %v, want ErrMissingEnqueuer", err)
	}
}

func TestBridge_EnqueuesPushes(t *testing.T) {
	sub, q := startBridge(t, nil)

	if err := sub.deliver("stomata/command/station/7/state", "running"); err != nil {
		t.Fatalf("state: %v", err)
	}
	if err := sub.deliver("stomata/command/station/7/conf", `{"x":1}`); err != nil {
		t.Fatalf("conf: %v", err)
	}

	want := []notifier.Push{
		notifier.UpdateState{ID: 7, State: "running"},
		notifier.UpdateConfig{ID: 7, Config: `{"x":1}`},
	}
	if len(q.pushes) != len(want) {
		t.Fatalf("pushes = %+v", q.pushes)
	}
	for i := range want {
		if q.pushes[i] != want[i] {
			t.Errorf("push[%d] = %+v, want %+v", i, q.pushes[i], want[i])
		}
	}
}

func TestBridge_RejectsBadMessages(t *testing.T) {
	sub, q := startBridge(t, nil)

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"unknown topic", "stomata/station/7/presence", "x", ErrUnknownTopic},
		{"empty state", "stomata/command/station/7/state", "", station.ErrInvalidState},
		{"long state", "stomata/command/station/7/state", strings.Repeat("s", 65), station.ErrInvalidState},
		{"zero id", "stomata/command/station/0/state", "idle", station.ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := sub.deliver(tt.topic, tt.payload); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(q.pushes) != 0 {
		t.Errorf("pushes = %+v, want none", q.pushes)
	}
}

func TestBridge_PersistsBeforeEnqueue(t *testing.T) {
	store := newFakeStore()
	sub, q := startBridge(t, store)

	if err := sub.deliver("stomata/command/station/1/state", "active"); err != nil {
		t.Fatal(err)
	}
	if store.states[1] != "active" || len(q.pushes) != 1 {
		t.Errorf("state = %q, pushes = %d", store.states[1], len(q.pushes))
	}

	err := sub.deliver("stomata/command/station/2/conf", "{}")
	if !errors.Is(err, station.ErrStationNotFound) {
		t.Errorf("err = %v, want ErrStationNotFound", err)
	}
	if len(q.pushes) != 1 {
		t.Errorf("unknown station must not be enqueued, pushes = %d", len(q.pushes))
	}
}

func TestBridge_QueueFull(t *testing.T) {
	sub, q := startBridge(t, nil)
	q.err = notifier.ErrQueueFull

	err := sub.deliver("stomata/command/station/3/state", "idle")
	if !errors.Is(err, notifier.ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestBridge_StartStop(t *testing.T) {
	sub := &fakeSubscriber{}
	b, err := NewBridge(Options{Subscriber: sub, Enqueuer: &fakeQueue{}})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Stop(); err != nil {
		t.Errorf("Stop() before Start = %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}
	if len(sub.handlers) != 0 {
		t.Errorf("handlers after Stop = %d", len(sub.handlers))
	}
}

func TestBridge_SubscribeFailure(t *testing.T) {
	sub := &fakeSubscriber{err: mqtt.ErrNotConnected}
	b, err := NewBridge(Options{Subscriber: sub, Enqueuer: &fakeQueue{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() = %v, want ErrNotConnected", err)
	}
}
