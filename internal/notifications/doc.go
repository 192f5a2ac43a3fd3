// Package notifications delivers operator push notifications via ntfy.
//
// The service is event-gated by configuration: daemon lifecycle, workflow
// failure, and workflow completion notifications can each be switched off
// independently. When no ntfy topic is configured the constructor returns a
// noop implementation so callers never need nil checks.
package notifications
