package config

const (
	defaultDataDir             = "~/.local/share/groundlink"
	defaultLogDir              = "~/.local/share/groundlink/logs"
	defaultAPIBind             = "127.0.0.1:7430"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTelemetryRate       = 4.0
	defaultTelemetryBurst      = 8
	defaultMinStepSeconds      = 0.05
	defaultMaxTimingOffsetMs   = 50
	defaultObserverSendBuffer  = 64
	defaultPingIntervalSeconds = 30
	defaultWriteTimeoutSeconds = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Simulation: Simulation{
			TelemetryRatePerSec: defaultTelemetryRate,
			TelemetryBurst:      defaultTelemetryBurst,
			MinStepSeconds:      defaultMinStepSeconds,
		},
		Capture: Capture{
			MaxTimingOffsetMs: defaultMaxTimingOffsetMs,
		},
		Observers: Observers{
			SendBuffer:          defaultObserverSendBuffer,
			PingIntervalSeconds: defaultPingIntervalSeconds,
			WriteTimeoutSeconds: defaultWriteTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
