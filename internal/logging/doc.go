// Package logging builds the slog loggers used across the daemon and CLI.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log aggregation. Helper constructors
// (String, Int, Error, ...) keep call sites terse, and field name
// constants keep structured keys consistent between components.
package logging
