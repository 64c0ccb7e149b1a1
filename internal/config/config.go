package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Disk identifies the monitored device and the file used to generate activity.
type Disk struct {
	// Device is the bare block device name under /sys/block, e.g. "sda".
	Device string `toml:"device"`
	// TouchFile must live on a filesystem backed by Device; it is
	// truncated and rewritten on every anti-park tick.
	TouchFile string `toml:"touch_file"`
}

// Timing contains the controller intervals, all in whole seconds.
type Timing struct {
	PollInterval       int `toml:"poll_interval"`
	AntiParkTimeout    int `toml:"antipark_timeout"`
	AntiParkTimeoutMax int `toml:"antipark_timeout_max"`
	ParkedTimeout      int `toml:"parked_timeout"`
}

// Behavior contains optional controller behavior switches.
type Behavior struct {
	SyncBeforeIdle bool `toml:"sync_before_idle"`
	// MaxReadFailures is the number of consecutive activity-counter
	// read failures tolerated before the daemon exits.
	MaxReadFailures int `toml:"max_read_failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// Verbose emits state-transition status events at info level.
	// When false they are still emitted, at debug level.
	Verbose bool `toml:"verbose"`
}

// Paths contains directory configuration for daemon runtime files.
type Paths struct {
	// LogDir holds the log file, pid file, instance lock, and IPC socket.
	LogDir string `toml:"log_dir"`
}

// Config encapsulates all configuration values for wdantiparkd.
type Config struct {
	Disk     Disk     `toml:"disk"`
	Timing   Timing   `toml:"timing"`
	Behavior Behavior `toml:"behavior"`
	Logging  Logging  `toml:"logging"`
	Paths    Paths    `toml:"paths"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/wdantipark/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. A missing file is not an error;
// defaults apply and exists reports false.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("wdantipark.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// PollInterval returns the tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timing.PollInterval) * time.Second
}

// AntiParkTimeout returns the base anti-park timeout as a duration.
func (c *Config) AntiParkTimeout() time.Duration {
	return time.Duration(c.Timing.AntiParkTimeout) * time.Second
}

// AntiParkTimeoutMax returns the adaptive timeout ceiling as a duration.
func (c *Config) AntiParkTimeoutMax() time.Duration {
	return time.Duration(c.Timing.AntiParkTimeoutMax) * time.Second
}

// ParkedTimeout returns the parked-state timeout as a duration.
func (c *Config) ParkedTimeout() time.Duration {
	return time.Duration(c.Timing.ParkedTimeout) * time.Second
}

// SocketPath returns the IPC socket location inside the log directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "wdantipark.sock")
}

// PIDPath returns the daemon pid file location inside the log directory.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "wdantiparkd.pid")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "wdantiparkd.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "wdantiparkd.log")
}

func (c *Config) normalize() error {
	c.Disk.Device = strings.TrimSpace(c.Disk.Device)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	touch, err := expandPath(strings.TrimSpace(c.Disk.TouchFile))
	if err != nil {
		return err
	}
	c.Disk.TouchFile = touch

	logDir, err := expandPath(strings.TrimSpace(c.Paths.LogDir))
	if err != nil {
		return err
	}
	c.Paths.LogDir = logDir
	return nil
}

// ExpandPath expands a leading ~ and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
