package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	maxTimeoutSeconds   = 3600
	maxDeviceNameLen    = 64
	maxTouchFilePathLen = 512
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDisk(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateBehavior(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDisk() error {
	if c.Disk.Device == "" {
		return errors.New("disk.device must be set")
	}
	if len(c.Disk.Device) > maxDeviceNameLen {
		return fmt.Errorf("disk.device must be at most %d characters", maxDeviceNameLen)
	}
	if strings.ContainsAny(c.Disk.Device, "/\\") {
		return errors.New("disk.device must be a bare device name like \"sda\", not a path")
	}
	if c.Disk.TouchFile == "" {
		return errors.New("disk.touch_file must be set")
	}
	if len(c.Disk.TouchFile) > maxTouchFilePathLen {
		return fmt.Errorf("disk.touch_file must be at most %d characters", maxTouchFilePathLen)
	}
	return nil
}

func (c *Config) validateTiming() error {
	for key, value := range map[string]int{
		"timing.poll_interval":        c.Timing.PollInterval,
		"timing.antipark_timeout":     c.Timing.AntiParkTimeout,
		"timing.antipark_timeout_max": c.Timing.AntiParkTimeoutMax,
		"timing.parked_timeout":       c.Timing.ParkedTimeout,
	} {
		if value < 0 || value > maxTimeoutSeconds {
			return fmt.Errorf("%s must be between 0 and %d seconds", key, maxTimeoutSeconds)
		}
	}
	if c.Timing.AntiParkTimeoutMax < c.Timing.AntiParkTimeout {
		return errors.New("timing.antipark_timeout_max must be >= timing.antipark_timeout")
	}
	return nil
}

func (c *Config) validateBehavior() error {
	if c.Behavior.MaxReadFailures < 1 {
		return errors.New("behavior.max_read_failures must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}
