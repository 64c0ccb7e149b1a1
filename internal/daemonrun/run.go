package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/soundsrc/wdantiparkd/internal/config"
	"github.com/soundsrc/wdantiparkd/internal/controller"
	"github.com/soundsrc/wdantiparkd/internal/daemon"
	"github.com/soundsrc/wdantiparkd/internal/diskstats"
	"github.com/soundsrc/wdantiparkd/internal/ipc"
	"github.com/soundsrc/wdantiparkd/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string
}

// Run starts the wdantiparkd runtime loop and blocks until a signal
// arrives, a stop is requested over IPC, or the controller fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logPath := cfg.LogPath()
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	runID := uuid.NewString()
	logger.Info("wdantiparkd starting",
		logging.String(logging.FieldEventType, "daemon_boot"),
		logging.String("run_id", runID),
		logging.String(logging.FieldDevice, cfg.Disk.Device),
		logging.String("log_path", logPath))

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	monitor := diskstats.NewMonitor(cfg.Disk.Device)
	if err := monitor.Rebaseline(); err != nil {
		logger.Error("activity monitor unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "monitor_init_failed"),
			logging.String(logging.FieldDevice, cfg.Disk.Device),
			logging.String("stat_path", monitor.StatPath()),
			logging.String(logging.FieldErrorHint, "verify the device exists under /sys/block"))
		return fmt.Errorf("read device stats: %w", err)
	}

	ctrl := controller.New(cfg, monitor, controller.NewDisk(cfg.Disk.TouchFile), logger)
	d, err := daemon.New(cfg, ctrl, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Run(signalCtx); err != nil {
		logger.Error("daemon exited with error",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_failed"),
			logging.String(logging.FieldImpact, "drive is no longer protected from head parking"))
		return err
	}

	logger.Info("wdantiparkd shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
		logging.String("run_id", runID))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
