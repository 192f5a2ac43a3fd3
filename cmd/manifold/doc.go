// Package main hosts the manifold CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into IPC calls
// against the daemon: status snapshots, workflow listing and inspection,
// manual telemetry feeds, audit tailing, and configuration scaffolding. It
// centralizes configuration resolution and socket discovery so subcommands
// can focus on output instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
