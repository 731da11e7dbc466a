package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSimulation()
	c.normalizeObservers()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.APIBind) == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeSimulation() {
	if c.Simulation.TelemetryRatePerSec <= 0 {
		c.Simulation.TelemetryRatePerSec = defaultTelemetryRate
	}
	if c.Simulation.TelemetryBurst <= 0 {
		c.Simulation.TelemetryBurst = defaultTelemetryBurst
	}
	if c.Simulation.MinStepSeconds <= 0 {
		c.Simulation.MinStepSeconds = defaultMinStepSeconds
	}
}

func (c *Config) normalizeObservers() {
	if c.Observers.SendBuffer <= 0 {
		c.Observers.SendBuffer = defaultObserverSendBuffer
	}
	if c.Observers.PingIntervalSeconds <= 0 {
		c.Observers.PingIntervalSeconds = defaultPingIntervalSeconds
	}
	if c.Observers.WriteTimeoutSeconds <= 0 {
		c.Observers.WriteTimeoutSeconds = defaultWriteTimeoutSeconds
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
}
