package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementStationPresence is the measurement name for presence changes.
const MeasurementStationPresence = "station_presence"

// WriteStationPresence records a station connecting (online=true) or
// disconnecting. reason is the disconnect reason and session is how long
// the connection lasted; both are omitted when empty or zero.
func (c *Client) WriteStationPresence(stationID int64, online bool, reason string, session time.Duration, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(presencePoint(stationID, online, reason, session, at))
}

func presencePoint(stationID int64, online bool, reason string, session time.Duration, at time.Time) *write.Point {
	tags := map[string]string{
		"station_id": strconv.FormatInt(stationID, 10),
	}
	if reason != "" {
		tags["reason"] = reason
	}

	fields := map[string]interface{}{
		"online": online,
	}
	if session > 0 {
		fields["session_seconds"] = session.Seconds()
	}

	return write.NewPoint(MeasurementStationPresence, tags, fields, at)
}
