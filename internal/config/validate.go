package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.TargetTotal < 1 {
		return errors.New("pipeline.target_total must be at least 1")
	}
	if c.Pipeline.BatchSize < 1 || c.Pipeline.BatchSize > 50 {
		return errors.New("pipeline.batch_size must be between 1 and 50")
	}
	if c.Pipeline.StageCount < 1 {
		return errors.New("pipeline.stage_count must be at least 1")
	}
	if c.Pipeline.CallDelaySeconds < 0 || c.Pipeline.CallDelaySeconds > 10 {
		return errors.New("pipeline.call_delay_seconds must be between 0 and 10")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialDelaySeconds < 0 {
		return errors.New("retry.initial_delay_seconds must not be negative")
	}
	if c.Retry.Multiplier < 1 {
		return errors.New("retry.multiplier must be at least 1")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.BaseURL == "" {
		return errors.New("llm.base_url must be set")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.MaxTokens < 1 {
		return errors.New("llm.max_tokens must be at least 1")
	}
	if c.LLM.TimeoutSeconds < 1 {
		return errors.New("llm.timeout_seconds must be at least 1")
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

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
