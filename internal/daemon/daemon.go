package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"log/slog"

	"github.com/gofrs/flock"

	"github.com/soundsrc/wdantiparkd/internal/config"
	"github.com/soundsrc/wdantiparkd/internal/controller"
	"github.com/soundsrc/wdantiparkd/internal/logging"
)

// Daemon wraps the anti-park controller with single-instance locking and
// optional hotplug monitoring, and exposes the surface the IPC server needs.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	ctrl    *controller.Controller
	watcher *deviceWatcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool
	PID               int
	LockPath          string
	Device            string
	TouchFile         string
	HotplugMonitoring bool
	Controller        controller.Status
}

// New constructs a daemon around an already-built controller.
func New(cfg *config.Config, ctrl *controller.Controller, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || ctrl == nil {
		return nil, errors.New("daemon requires config and controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		ctrl:     ctrl,
		watcher:  newDeviceWatcher(cfg, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Run acquires the single-instance lock, starts hotplug monitoring, and
// blocks in the controller loop until ctx is cancelled or the controller
// hits a fatal error.
func (d *Daemon) Run(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another wdantiparkd instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	if err := d.watcher.Start(runCtx); err != nil {
		d.logger.Warn("device watcher unavailable", logging.Error(err))
	}
	defer d.watcher.Stop()

	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("wdantiparkd daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("pid", os.Getpid()))

	return d.ctrl.Run(runCtx)
}

// RequestShutdown cancels the running controller loop. Safe to call from
// IPC handler goroutines.
func (d *Daemon) RequestShutdown() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status returns the current daemon status, including the controller's
// latest published snapshot.
func (d *Daemon) Status() Status {
	return Status{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		LockPath:          d.lockPath,
		Device:            d.cfg.Disk.Device,
		TouchFile:         d.cfg.Disk.TouchFile,
		HotplugMonitoring: d.watcher.Running(),
		Controller:        d.ctrl.Status(),
	}
}
