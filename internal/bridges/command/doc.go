// Package command bridges MQTT command topics to the notifier.
//
// Any system on the broker can change a station without the HTTP API:
//
//	stomata/command/station/12/state   payload "running"
//	stomata/command/station/12/conf    payload "{\"interval\":30}"
//
// When a Store is configured the value is saved first, so the HTTP API
// reports the same state as the station receives. The push itself is
// dropped by the notifier if the station is not connected.
package command
