// Package logging builds the slog loggers used across groundlink.
//
// Two output formats are supported: a compact console handler that pulls the
// component attribute into the line prefix, and a JSON handler with canonical
// ts/level/msg keys. Components obtain child loggers through
// NewComponentLogger so every line carries its origin.
package logging
