// Package daemon runs the anti-park controller as a long-lived background
// process: it enforces single-instance execution with a file lock, watches
// udev netlink for hotplug events on the monitored device, and serves
// runtime status to the IPC layer.
package daemon
