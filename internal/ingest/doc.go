// Package ingest supplies entity telemetry to the orchestrator. Sources are
// pull-based: the ingestion duty polls for pending records each cycle. The
// drop directory source watches for newline-delimited JSON files and claims
// each file by renaming it, so a record is handed out at most once.
package ingest
