package notifier

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// FrameKind classifies an inbound frame.
type FrameKind int

const (
	FrameText FrameKind = iota + 1
	FramePing
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FramePing:
		return "ping"
	case FrameClose:
		return "close"
	default:
		return "unknown"
	}
}

// Frame is one inbound frame taken from a connection.
type Frame struct {
	Kind    FrameKind
	Payload []byte
}

// Transport is a station connection as seen by the service loop.
// None of its methods block on the peer.
type Transport interface {
	// Poll returns the next pending inbound frame, if any. A non-nil error
	// means the connection has failed and will produce no more frames.
	Poll() (Frame, bool, error)

	// WriteText queues a text frame for delivery.
	WriteText(payload []byte) error

	// WritePong queues a pong answering a ping with the given payload.
	WritePong(payload []byte) error

	// Close sends a close frame and releases the connection. Idempotent.
	Close() error

	// RemoteAddr identifies the peer in logs.
	RemoteAddr() string
}

// TransportOptions size the buffers of a websocket transport.
type TransportOptions struct {
	InboxSize      int
	SendBuffer     int
	MaxMessageSize int64
	WriteTimeout   time.Duration
}

const (
	closeGrace          = time.Second
	defaultWriteTimeout = 5 * time.Second
)

type outbound struct {
	messageType int
	payload     []byte
}

// wsTransport adapts a gorilla websocket connection to Transport. A reader
// goroutine feeds a bounded inbox and a writer goroutine drains a bounded
// send buffer, so the loop only ever touches channels.
type wsTransport struct {
	conn         *websocket.Conn
	remote       string
	writeTimeout time.Duration

	inbox chan Frame
	send  chan outbound
	done  chan struct{}

	failed   chan struct{}
	failOnce sync.Once
	err      error

	closeOnce sync.Once
}

// NewWebsocketTransport starts the reader and writer goroutines for conn.
func NewWebsocketTransport(conn *websocket.Conn, opts TransportOptions) Transport {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	t := &wsTransport{
		conn:         conn,
		remote:       conn.RemoteAddr().String(),
		writeTimeout: opts.WriteTimeout,
		inbox:        make(chan Frame, max(opts.InboxSize, 1)),
		send:         make(chan outbound, max(opts.SendBuffer, 1)),
		done:         make(chan struct{}),
		failed:       make(chan struct{}),
	}

	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	// Pings are answered by the service loop, not automatically.
	conn.SetPingHandler(func(data string) error {
		t.deliver(Frame{Kind: FramePing, Payload: []byte(data)})
		return nil
	})

	conn.SetCloseHandler(func(code int, _ string) error {
		select {
		case t.inbox <- Frame{Kind: FrameClose}:
		default:
		}
		msg := websocket.FormatCloseMessage(code, "")
		if code == websocket.CloseNoStatusReceived {
			msg = websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		}
		_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)) //nolint:errcheck // peer may be gone
		return nil
	})

	go t.readPump()
	go t.writePump()
	return t
}

// deliver hands a frame to the loop, waiting for inbox space unless the
// transport is closed. Only called from the reader goroutine.
func (t *wsTransport) deliver(f Frame) {
	select {
	case t.inbox <- f:
	case <-t.done:
	}
}

func (t *wsTransport) fail(err error) {
	t.failOnce.Do(func() {
		t.err = err
		close(t.failed)
	})
}

func (t *wsTransport) readPump() {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			t.fail(err)
			return
		}
		if messageType == websocket.TextMessage {
			t.deliver(Frame{Kind: FrameText, Payload: data})
		}
	}
}

func (t *wsTransport) writePump() {
	defer t.conn.Close() //nolint:errcheck // best effort

	for {
		select {
		case <-t.done:
			// Frames accepted before Close still go out ahead of the close frame.
			if t.flush() {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)) //nolint:errcheck // peer may be gone
			}
			return

		case m := <-t.send:
			if err := t.write(m); err != nil {
				t.fail(err)
				return
			}
		}
	}
}

// flush writes whatever is left in the send buffer and reports whether the
// connection is still writable.
func (t *wsTransport) flush() bool {
	for {
		select {
		case m := <-t.send:
			if err := t.write(m); err != nil {
				t.fail(err)
				return false
			}
		default:
			return true
		}
	}
}

func (t *wsTransport) write(m outbound) error {
	deadline := time.Now().Add(t.writeTimeout)
	if m.messageType == websocket.PongMessage {
		return t.conn.WriteControl(websocket.PongMessage, m.payload, deadline)
	}
	_ = t.conn.SetWriteDeadline(deadline) //nolint:errcheck // surfaced by the write
	return t.conn.WriteMessage(m.messageType, m.payload)
}

func (t *wsTransport) Poll() (Frame, bool, error) {
	select {
	case f := <-t.inbox:
		return f, true, nil
	default:
	}

	select {
	case <-t.failed:
		return Frame{}, false, t.err
	case <-t.done:
		return Frame{}, false, ErrTransportClosed
	default:
		return Frame{}, false, nil
	}
}

func (t *wsTransport) enqueue(m outbound) error {
	select {
	case <-t.failed:
		return t.err
	case <-t.done:
		return ErrTransportClosed
	default:
	}

	select {
	case t.send <- m:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (t *wsTransport) WriteText(payload []byte) error {
	return t.enqueue(outbound{messageType: websocket.TextMessage, payload: payload})
}

func (t *wsTransport) WritePong(payload []byte) error {
	return t.enqueue(outbound{messageType: websocket.PongMessage, payload: payload})
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

func (t *wsTransport) RemoteAddr() string {
	return t.remote
}
