// Package bus implements the in-process priority message bus the
// orchestrator and its collaborators communicate over. Channels are
// multi-producer multi-consumer; every subscription receives its own copy of
// each message and drains them serially, critical first. A bounded in-memory
// audit ring records the lifecycle of every message for diagnostics.
package bus
