package diskstats

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sector counter positions in /sys/block/<dev>/stat. The file is a single
// line of space-separated counters; sectors read is the 3rd field and
// sectors written the 7th.
const (
	readSectorsField  = 2
	writeSectorsField = 6
	minStatFields     = 7
)

// Activity reports whether the device saw reads or writes since the
// previous poll.
type Activity struct {
	Read  bool
	Write bool
}

// Any reports whether either counter moved.
func (a Activity) Any() bool { return a.Read || a.Write }

// Monitor tracks a block device's cumulative sector counters and reports
// per-poll deltas as boolean activity. The previous counters are owned by
// the instance; construct one Monitor per monitored device.
//
// Counters are monotonically increasing uint64 values; comparison is
// simple inequality, not delta magnitude.
type Monitor struct {
	device  string
	sysRoot string

	baselined        bool
	lastReadSectors  uint64
	lastWriteSectors uint64
}

// Option adjusts Monitor construction.
type Option func(*Monitor)

// WithSysRoot overrides the sysfs mount point. Tests point this at a
// temporary directory holding a fake block/<dev>/stat file.
func WithSysRoot(root string) Option {
	return func(m *Monitor) {
		m.sysRoot = root
	}
}

// NewMonitor creates a monitor for the named block device (e.g. "sda").
func NewMonitor(device string, opts ...Option) *Monitor {
	m := &Monitor{device: device, sysRoot: "/sys"}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Device returns the monitored device name.
func (m *Monitor) Device() string { return m.device }

// StatPath returns the sysfs stat file the monitor reads.
func (m *Monitor) StatPath() string {
	return filepath.Join(m.sysRoot, "block", m.device, "stat")
}

// Poll reads the device counters and compares them against the previous
// poll. The first successful call establishes the baseline and reports no
// activity. A failed read leaves the stored baseline untouched.
func (m *Monitor) Poll() (Activity, error) {
	readSectors, writeSectors, err := m.readCounters()
	if err != nil {
		return Activity{}, err
	}

	if !m.baselined {
		m.baselined = true
		m.lastReadSectors = readSectors
		m.lastWriteSectors = writeSectors
		return Activity{}, nil
	}

	activity := Activity{
		Read:  readSectors != m.lastReadSectors,
		Write: writeSectors != m.lastWriteSectors,
	}
	m.lastReadSectors = readSectors
	m.lastWriteSectors = writeSectors
	return activity, nil
}

// Rebaseline polls and discards the result so that activity the caller
// itself generated (touching, syncing) is not reported by the next Poll.
func (m *Monitor) Rebaseline() error {
	_, err := m.Poll()
	return err
}

func (m *Monitor) readCounters() (readSectors, writeSectors uint64, err error) {
	data, err := os.ReadFile(m.StatPath())
	if err != nil {
		return 0, 0, fmt.Errorf("read device stat for %q: %w", m.device, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < minStatFields {
		return 0, 0, fmt.Errorf("%w: %q has %d fields", ErrShortStat, m.StatPath(), len(fields))
	}

	readSectors, err = strconv.ParseUint(fields[readSectorsField], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: sectors read: %v", ErrMalformedStat, err)
	}
	writeSectors, err = strconv.ParseUint(fields[writeSectorsField], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: sectors written: %v", ErrMalformedStat, err)
	}
	return readSectors, writeSectors, nil
}
