// Package mqtt connects stomata to an MQTT broker.
//
// The broker carries two things: retained presence messages for each
// station, published when stations connect and disconnect, and command
// topics through which other systems can push state or configuration to a
// station without using the HTTP API.
//
// The client sets a retained last will on stomata/system/status and
// restores its subscriptions after a reconnect.
package mqtt
