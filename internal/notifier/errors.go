package notifier

import "errors"

var (
	// ErrQueueFull is returned by Enqueue when the dispatch queue is at capacity.
	ErrQueueFull = errors.New("notifier: dispatch queue full")

	// ErrInvalidPush is returned by Enqueue for a nil push.
	ErrInvalidPush = errors.New("notifier: invalid push")

	// ErrSendBufferFull is returned when a station's outbound buffer is full.
	ErrSendBufferFull = errors.New("notifier: send buffer full")

	// ErrTransportClosed is returned by writes on a closed transport.
	ErrTransportClosed = errors.New("notifier: transport closed")

	// ErrAlreadyRunning is returned by Run when the loop is already active.
	ErrAlreadyRunning = errors.New("notifier: already running")
)
