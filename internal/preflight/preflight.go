package preflight

import (
	"context"
	"strings"

	"manifold/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes all applicable preflight checks for the given config.
// Checks for optional features run only when the feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if strings.TrimSpace(cfg.Paths.IngestDir) != "" {
		results = append(results, CheckDirectoryAccess("Ingest directory", cfg.Paths.IngestDir))
	}

	results = append(results, CheckArchive(cfg))

	if strings.TrimSpace(cfg.Paths.APIBind) != "" {
		results = append(results, CheckBindAvailable("API bind", cfg.Paths.APIBind))
	}

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}
