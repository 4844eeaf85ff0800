package notifier

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/technoelf/stomata/internal/station"
)

// fakeTransport is a scripted Transport. Frames are returned one per Poll;
// once they run out, pollErr (if set) is returned. With sendLimit set,
// writes past that many unflushed frames fail with ErrSendBufferFull.
type fakeTransport struct {
	mu        sync.Mutex
	name      string
	frames    []Frame
	pollErr   error
	writeErr  error
	sendLimit int
	unflushed int
	sent      [][]byte
	pongs     [][]byte
	closed    bool
	onClose   func()
}

func newFakeTransport(name string, frames ...Frame) *fakeTransport {
	return &fakeTransport{name: name, frames: frames}
}

func (f *fakeTransport) push(frames ...Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frames...)
}

func (f *fakeTransport) Poll() (Frame, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) > 0 {
		fr := f.frames[0]
		f.frames = f.frames[1:]
		return fr, true, nil
	}
	if f.pollErr != nil {
		return Frame{}, false, f.pollErr
	}
	return Frame{}, false, nil
}

func (f *fakeTransport) WriteText(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.sendLimit > 0 && f.unflushed >= f.sendLimit {
		return ErrSendBufferFull
	}
	f.unflushed++
	f.sent = append(f.sent, append([]byte(nil), p...))
	return nil
}

// flush empties the simulated send buffer.
func (f *fakeTransport) flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unflushed = 0
}

func (f *fakeTransport) WritePong(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.pongs = append(f.pongs, append([]byte(nil), p...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	already := f.closed
	f.closed = true
	onClose := f.onClose
	f.mu.Unlock()
	if !already && onClose != nil {
		onClose()
	}
	return nil
}

func (f *fakeTransport) RemoteAddr() string { return f.name }

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) sentStrings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, p := range f.sent {
		out[i] = string(p)
	}
	return out
}

// fakeStore holds plain credentials; fakeVerify accepts hash == "<id>:<token>".
type fakeStore struct {
	mu      sync.Mutex
	hashes  map[int64]string
	lookups int
	err     error
}

func newFakeStore(creds map[int64]string) *fakeStore {
	s := &fakeStore{hashes: make(map[int64]string)}
	for id, tok := range creds {
		s.hashes[id] = fmt.Sprintf("%d:%s", id, tok)
	}
	return s
}

func (s *fakeStore) TokenHash(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return "", s.err
	}
	h, ok := s.hashes[id]
	if !ok {
		return "", station.ErrStationNotFound
	}
	return h, nil
}

func (s *fakeStore) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func fakeVerify(id int64, token, hash string) (bool, error) {
	return hash == fmt.Sprintf("%d:%s", id, token), nil
}

type observedEvent struct {
	id        int64
	connected bool
	reason    DisconnectReason
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observedEvent
}

func (o *recordingObserver) StationConnected(id int64, _ string, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, observedEvent{id: id, connected: true})
}

func (o *recordingObserver) StationDisconnected(id int64, reason DisconnectReason, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, observedEvent{id: id, reason: reason})
}

func (o *recordingObserver) snapshot() []observedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]observedEvent(nil), o.events...)
}

func textFrame(s string) Frame {
	return Frame{Kind: FrameText, Payload: []byte(s)}
}

func registerFrame(id int64, token string) Frame {
	return textFrame(fmt.Sprintf(`{"id":%d,"token":%q}`, id, token))
}

// testService builds a Service over a fake store and fake clock.
type testService struct {
	*Service
	clock    *clockwork.FakeClock
	store    *fakeStore
	observer *recordingObserver
}

func newTestService(t *testing.T, cfg Config, creds map[int64]string) *testService {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore(creds)
	obs := &recordingObserver{}
	svc := NewService(cfg, Deps{
		Store:    store,
		Verify:   fakeVerify,
		Clock:    clock,
		Observer: obs,
	})
	return &testService{Service: svc, clock: clock, store: store, observer: obs}
}

// step advances the fake clock by d and runs one tick.
func (ts *testService) step(d time.Duration) {
	ts.clock.Advance(d)
	ts.tick(context.Background(), ts.clock.Now())
}

// connect hands t to the service and runs one tick.
func (ts *testService) connect(t *testing.T, tr Transport) {
	t.Helper()
	if !ts.Accept(tr) {
		t.Fatal("Accept() = false, want true")
	}
	ts.step(0)
}
