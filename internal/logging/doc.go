// Package logging provides structured logging for the VOS engine.
//
// # Overview
//
// The logging package provides a structured logging interface with support for:
//
//   - Multiple log levels (debug, info, warn, error)
//   - Text and JSON output formats
//   - Field-based contextual logging
//
// # Creating a Logger
//
// Create a logger with configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/vos/vos.log",
//	})
//
// Or use defaults:
//
//	logger := logging.NewDefault() // Info level, text format, stderr
//
// Storage components default to a no-op logger:
//
//	logger := logging.NewNop()
//
// # Structured Logging
//
// Add key-value pairs to log entries:
//
//	logger.Info("incarnation log promoted",
//	    "root", root,
//	    "epoch", epoch,
//	)
//
// Errors and values with a String method are logged as their text.
//
// # Contextual Fields
//
// Create loggers with persistent fields:
//
//	contLogger := logger.WithFields("container", id.String())
//	contLogger.Info("container opened")
//
// # Output Formats
//
// Text format (human-readable, fields sorted by key):
//
//	2026-02-18T10:30:00Z [warn] replaying undo log path=/var/lib/vos/pool.vos records=3
//
// JSON format (machine-parseable):
//
//	{"ts":"2026-02-18T10:30:00Z","level":"warn","msg":"replaying undo log",...}
package logging
