// Package daemon hosts the long-running orchestrator process. It enforces
// single-instance execution with a file lock, owns the lifecycle of the
// message bus, archive store, and workflow manager, and exposes daemon
// operations to the IPC and HTTP API surfaces.
package daemon
