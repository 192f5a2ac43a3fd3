// Package collab runs in-process collaborators: named responders bound to a
// request channel that answer on the matching result channel with ReplyTo
// and the correlation id mirrored from the request.
//
// The built-in simulated collaborators let the daemon exercise the full
// pipeline without external services; telemetry records script their own
// outcomes through well-known reading keys.
package collab
