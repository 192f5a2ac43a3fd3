package testsupport

import (
	"path/filepath"
	"testing"

	"manifold/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.IngestDir = filepath.Join(base, "ingest")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithNtfyTopic sets the push notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Notifications.NtfyTopic = topic
	}
}

// WithMaxRetries overrides the workflow retry budget.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxRetries = n
	}
}

// WithWorkflowTimeout overrides the staleness threshold, in seconds.
func WithWorkflowTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.WorkflowTimeout = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
