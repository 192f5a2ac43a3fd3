package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBus()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IngestDir) == "" {
		c.Paths.IngestDir = defaultIngestDir
	}
	if c.Paths.IngestDir, err = expandPath(c.Paths.IngestDir); err != nil {
		return fmt.Errorf("paths.ingest_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeBus() {
	if c.Bus.AuditLogCapacity <= 0 {
		c.Bus.AuditLogCapacity = defaultAuditLogCapacity
	}
	if c.Bus.DefaultTTL < 0 {
		c.Bus.DefaultTTL = 0
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.PollInterval < 0 {
		c.Workflow.PollInterval = 0
	}
	if c.Workflow.SweepInterval < 0 {
		c.Workflow.SweepInterval = 0
	}
	if c.Workflow.MaxRetries < 0 {
		c.Workflow.MaxRetries = 0
	}
	if c.Workflow.RetryBackoffBase <= 0 {
		c.Workflow.RetryBackoffBase = defaultRetryBackoffBase
	}
	if c.Workflow.IngestBatchLimit <= 0 {
		c.Workflow.IngestBatchLimit = defaultIngestBatchLimit
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
