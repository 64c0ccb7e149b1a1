package config

const (
	defaultDevice             = "sda"
	defaultTouchFile          = "/tmp/wdantiparkd.tmp"
	defaultPollInterval       = 7
	defaultAntiParkTimeout    = 60
	defaultAntiParkTimeoutMax = 300
	defaultParkedTimeout      = 300
	defaultMaxReadFailures    = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogDir             = "~/.local/share/wdantipark/logs"
)

// Default returns a Config populated with repository defaults. The timing
// values mirror the drive behavior this daemon was written for: touch every
// 7s, allow parking after 60s without reads, stay parked for 5 minutes.
func Default() Config {
	return Config{
		Disk: Disk{
			Device:    defaultDevice,
			TouchFile: defaultTouchFile,
		},
		Timing: Timing{
			PollInterval:       defaultPollInterval,
			AntiParkTimeout:    defaultAntiParkTimeout,
			AntiParkTimeoutMax: defaultAntiParkTimeoutMax,
			ParkedTimeout:      defaultParkedTimeout,
		},
		Behavior: Behavior{
			MaxReadFailures: defaultMaxReadFailures,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Paths: Paths{
			LogDir: defaultLogDir,
		},
	}
}
