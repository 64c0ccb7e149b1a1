// Package diskstats reads cumulative sector counters for a block device
// from sysfs and reports per-poll read/write activity. It is the leaf
// component the anti-park controller polls every tick.
package diskstats
