package notifier

import "time"

// DisconnectReason says why a station left the registry.
type DisconnectReason string

const (
	ReasonClosed     DisconnectReason = "closed"
	ReasonTimeout    DisconnectReason = "timeout"
	ReasonDisplaced  DisconnectReason = "displaced"
	ReasonSendFailed DisconnectReason = "send_failed"
	ReasonShutdown   DisconnectReason = "shutdown"
)

// Observer is told when stations join or leave the registry. It is called
// from the service loop and must not block.
type Observer interface {
	StationConnected(id int64, remoteAddr string, at time.Time)
	StationDisconnected(id int64, reason DisconnectReason, at time.Time)
}

type noopObserver struct{}

func (noopObserver) StationConnected(int64, string, time.Time)              {}
func (noopObserver) StationDisconnected(int64, DisconnectReason, time.Time) {}
