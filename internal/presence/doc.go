// Package presence fans station connect and disconnect events out to MQTT
// and InfluxDB.
//
// A Tracker is installed as the notifier's Observer. The notifier loop
// never waits on a broker: events go into a bounded buffer and a separate
// goroutine (Run) publishes a retained JSON message on
// stomata/station/{id}/presence and writes a station_presence point.
package presence
