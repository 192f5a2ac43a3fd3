// Package logging assembles the structured slog loggers used across
// manifold.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag
// log lines with entity, stage, duty, and correlation identifiers without
// threading them by hand. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
