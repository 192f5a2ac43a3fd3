package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkflowTimeout <= 0 {
		return errors.New("workflow.workflow_timeout must be greater than zero")
	}
	if c.Workflow.RequestTimeout <= 0 {
		return errors.New("workflow.request_timeout must be greater than zero")
	}
	if c.Workflow.RequestTimeout > c.Workflow.WorkflowTimeout {
		return fmt.Errorf("workflow.request_timeout (%d) must not exceed workflow.workflow_timeout (%d)",
			c.Workflow.RequestTimeout, c.Workflow.WorkflowTimeout)
	}
	if c.Workflow.MaxRetries > 10 {
		return fmt.Errorf("workflow.max_retries (%d) is unreasonably high; use 10 or fewer", c.Workflow.MaxRetries)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
}
