// Package logging provides structured logging for the bridge.
//
// It wraps log/slog with JSON or text output, level filtering and default
// service/version attributes on every record. Components derive scoped
// loggers with With("component", name).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log hub credentials, the HomeKit pin or the InfluxDB token.
package logging
