// Package notifier keeps authenticated stations connected and delivers
// pushes to them.
//
// A station opens a websocket to the Acceptor and sends
//
//	{"id": 12, "token": "<token issued at provisioning>"}
//
// On success it receives {} and is entered into the Registry, replacing
// any earlier connection with the same identity. Failed registrations get
// no reply. Registered stations must send a ping at least once per station
// timeout or they are closed.
//
// Producers call Service.Enqueue with an UpdateState or UpdateConfig; the
// push is delivered on the next loop iteration as {"state":"..."} or
// {"conf":"..."}, or dropped if the station is not connected.
//
// # Concurrency
//
// Service.Run is the only goroutine that touches connection state. Every
// connection has a reader and a writer goroutine that exchange frames with
// the loop over bounded channels, so a slow or silent peer never stalls
// the loop.
package notifier
