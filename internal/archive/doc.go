// Package archive persists terminal workflow records to SQLite. Live
// workflows exist only in memory; once the orchestrator retires one, its
// final state, timings, and transition history land here so operators can
// answer "what happened to vehicle X" after the fact.
package archive
