package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every stomata topic.
const TopicPrefix = "stomata"

// Station command kinds accepted on the command topics.
const (
	CommandState  = "state"
	CommandConfig = "conf"
)

// Topics provides builders for stomata MQTT topics:
//
//	stomata/system/status                    service online/offline (retained)
//	stomata/station/{id}/presence            station online/offline (retained)
//	stomata/command/station/{id}/state       producer sets a station's state
//	stomata/command/station/{id}/conf        producer sets a station's config
type Topics struct{}

// SystemStatus returns the retained service status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// StationPresence returns the retained presence topic for a station.
func (Topics) StationPresence(id int64) string {
	return fmt.Sprintf("%s/station/%d/presence", TopicPrefix, id)
}

// StationCommand returns the command topic of the given kind for a station.
func (Topics) StationCommand(id int64, kind string) string {
	return fmt.Sprintf("%s/command/station/%d/%s", TopicPrefix, id, kind)
}

// AllStationCommands matches every station command topic.
func (Topics) AllStationCommands() string {
	return TopicPrefix + "/command/station/+/+"
}

// ParseStationCommand extracts the station ID and command kind from a
// topic produced by StationCommand.
func (Topics) ParseStationCommand(topic string) (id int64, kind string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[1] != "command" || parts[2] != "station" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return 0, "", false
	}
	switch parts[4] {
	case CommandState, CommandConfig:
		return id, parts[4], true
	default:
		return 0, "", false
	}
}
