package testsupport

import (
	"path/filepath"
	"testing"

	"groundlink/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Simulation timing is collapsed so executions finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Simulation.MinStepSeconds = 0.001
	cfg.Simulation.TelemetryRatePerSec = 1000
	cfg.Simulation.TelemetryBurst = 1000

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxTimingOffset overrides the capture timing offset default.
func WithMaxTimingOffset(ms int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Capture.MaxTimingOffsetMs = ms
	}
}

// WithTelemetryRate overrides the telemetry broadcast throttle.
func WithTelemetryRate(perSec float64, burst int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Simulation.TelemetryRatePerSec = perSec
		cfg.Simulation.TelemetryBurst = burst
	}
}
