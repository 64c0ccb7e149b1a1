package daemon

import (
	"context"
	"strings"
	"sync"

	"log/slog"

	"github.com/pilebones/go-udev/netlink"

	"github.com/soundsrc/wdantiparkd/internal/config"
	"github.com/soundsrc/wdantiparkd/internal/logging"
)

// deviceWatcher listens for udev netlink events affecting the monitored
// block device so operators can see hotplug churn in the logs. It observes
// only; the polling loop notices a vanished device on its own through stat
// read failures.
type deviceWatcher struct {
	logger *slog.Logger
	device string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newDeviceWatcher(cfg *config.Config, logger *slog.Logger) *deviceWatcher {
	return &deviceWatcher{
		logger: logging.NewComponentLogger(logger, "device-watcher"),
		device: cfg.Disk.Device,
	}
}

// Start begins listening for udev netlink events. Failure to connect is
// non-fatal; the daemon runs without hotplug visibility.
func (w *deviceWatcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; hotplug events will not be logged",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "device add/remove events invisible"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.monitorLoop(ctx, quit)

	w.logger.Info("device watcher started",
		logging.String(logging.FieldEventType, "device_watcher_started"),
		logging.String(logging.FieldDevice, w.device),
	)
	return nil
}

// Stop shuts down the watcher.
func (w *deviceWatcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
	w.running = false

	w.logger.Info("device watcher stopped",
		logging.String(logging.FieldEventType, "device_watcher_stopped"),
	)
}

// Running reports whether the watcher is active.
func (w *deviceWatcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *deviceWatcher) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	events := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(events, errs, w.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-events:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "hotplug events may be missed"),
			)
		}
	}
}

// buildMatcher restricts events to block-device add/remove actions.
func (w *deviceWatcher) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

func (w *deviceWatcher) handleEvent(uevent netlink.UEvent) {
	devname := extractDeviceName(uevent)
	if devname == "" {
		w.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	if devname != w.device {
		w.logger.Debug("ignoring event for non-monitored device",
			logging.String(logging.FieldDevice, devname),
			logging.String("monitored_device", w.device),
		)
		return
	}

	switch uevent.Action {
	case "remove":
		w.logger.Warn("monitored device removed",
			logging.String(logging.FieldEventType, "device_removed"),
			logging.String(logging.FieldDevice, devname),
			logging.String(logging.FieldImpact, "activity polling will fail until the device returns"),
		)
	case "add":
		w.logger.Info("monitored device added",
			logging.String(logging.FieldEventType, "device_added"),
			logging.String(logging.FieldDevice, devname),
		)
	default:
		w.logger.Debug("device event",
			logging.String(logging.FieldDevice, devname),
			logging.String("action", string(uevent.Action)),
		)
	}
}

// extractDeviceName gets the bare device name (e.g. "sda") from a uevent.
func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return strings.TrimPrefix(devname, "/dev/")
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
