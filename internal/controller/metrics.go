package controller

import (
	"fmt"
	"time"
)

// idlePercent returns floor(100 * idle / uptime), or 0 before any time has
// passed.
func idlePercent(idle, uptime time.Duration) int {
	if uptime <= 0 {
		return 0
	}
	return int(idle * 100 / uptime)
}

// cyclesPerHour estimates load cycles per hour. Below one hour of uptime
// the raw count is returned rather than extrapolating from noise.
func cyclesPerHour(cycles int, uptime time.Duration) int {
	hours := int(uptime / time.Hour)
	if hours < 1 {
		return cycles
	}
	return cycles / hours
}

// FormatDuration renders a duration the way the daemon reports time spans:
// "45s", "2m 5s", "1h 2m 3s", "1d 2h 3m 4s". Sub-second precision is
// dropped; the controller thinks in whole seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	case secs < 86400:
		return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs/60)%60, secs%60)
	default:
		return fmt.Sprintf("%dd %dh %dm %ds", secs/86400, (secs/3600)%24, (secs/60)%60, secs%60)
	}
}
