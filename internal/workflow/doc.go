// Package workflow implements the orchestration core. A Manager owns the
// live workflow set, guaranteeing at most one live workflow per entity. It
// admits telemetry records from an ingestion source, dispatches collaborator
// requests over the bus with an armed acknowledgment deadline per request,
// advances each workflow through a validated state machine as results
// arrive, retries failed workflows under an exponential backoff, sweeps for
// stalled workflows, and retires terminal workflows into the archive.
//
// Routing decisions between stages are delegated to a DecisionPolicy;
// StandardPolicy implements the production thresholds.
package workflow
