// Package logging provides structured logging for stomata.
//
// It wraps log/slog so every entry carries the service name and build
// version. JSON output is the default; "text" is intended for development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log station tokens or their hashes.
package logging
