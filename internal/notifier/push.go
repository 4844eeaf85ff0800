package notifier

import "encoding/json"

// Push is an outbound update addressed to one station. The set of push
// kinds is closed: only UpdateState and UpdateConfig implement it.
type Push interface {
	// StationID is the identity the push is routed to.
	StationID() int64

	// Kind names the push for logs and metrics.
	Kind() string

	encode() ([]byte, error)
	isPush()
}

// UpdateState tells a station its new state. Delivered as {"state":"..."}.
type UpdateState struct {
	ID    int64
	State string
}

// UpdateConfig delivers a new configuration blob. Delivered as {"conf":"..."};
// the blob is sent as a JSON string, not embedded.
type UpdateConfig struct {
	ID     int64
	Config string
}

type stateMessage struct {
	State string `json:"state"`
}

type configMessage struct {
	Conf string `json:"conf"`
}

func (p UpdateState) StationID() int64 { return p.ID }
func (p UpdateState) Kind() string     { return "state" }
func (UpdateState) isPush()            {}

func (p UpdateState) encode() ([]byte, error) {
	return json.Marshal(stateMessage{State: p.State})
}

func (p UpdateConfig) StationID() int64 { return p.ID }
func (p UpdateConfig) Kind() string     { return "conf" }
func (UpdateConfig) isPush()            {}

func (p UpdateConfig) encode() ([]byte, error) {
	return json.Marshal(configMessage{Conf: p.Config})
}
