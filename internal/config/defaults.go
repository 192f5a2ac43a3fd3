package config

const (
	defaultDataDir   = "~/.local/share/manifold"
	defaultLogDir    = "~/.local/share/manifold/logs"
	defaultIngestDir = "~/.local/share/manifold/ingest"
	defaultAPIBind   = "127.0.0.1:7603"

	defaultAuditLogCapacity = 1000
	defaultMessageTTL       = 300

	defaultPollInterval     = 5
	defaultSweepInterval    = 1
	defaultWorkflowTimeout  = 300
	defaultRequestTimeout   = 60
	defaultMaxRetries       = 3
	defaultRetryBackoffBase = 2
	defaultIngestBatchLimit = 25

	defaultNotifyRequestTimeout = 10

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			IngestDir: defaultIngestDir,
			APIBind:   defaultAPIBind,
		},
		Bus: Bus{
			AuditLogCapacity: defaultAuditLogCapacity,
			DefaultTTL:       defaultMessageTTL,
		},
		Workflow: Workflow{
			PollInterval:     defaultPollInterval,
			SweepInterval:    defaultSweepInterval,
			WorkflowTimeout:  defaultWorkflowTimeout,
			RequestTimeout:   defaultRequestTimeout,
			MaxRetries:       defaultMaxRetries,
			RetryBackoffBase: defaultRetryBackoffBase,
			IngestBatchLimit: defaultIngestBatchLimit,
		},
		Notifications: Notifications{
			RequestTimeout:      defaultNotifyRequestTimeout,
			DaemonLifecycle:     true,
			WorkflowFailures:    true,
			WorkflowCompletions: false,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
