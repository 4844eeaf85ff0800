// Package station stores provisioned stations and their credentials.
//
// The notifier only reads the token hash during the handshake; the HTTP
// API provisions stations and records the state and configuration that
// it pushes.
package station
