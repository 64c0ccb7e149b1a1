package diskstats_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/soundsrc/wdantiparkd/internal/diskstats"
)

// writeStat writes a fake /sys/block/<dev>/stat line with the given
// sectors-read and sectors-written counters.
func writeStat(t *testing.T, sysRoot, device string, readSectors, writeSectors uint64) {
	t.Helper()
	dir := filepath.Join(sysRoot, "block", device)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	line := fmt.Sprintf("  100  20 %d 340  50  10 %d 120  0 400 460\n", readSectors, writeSectors)
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFirstPollEstablishesBaseline(t *testing.T) {
	sysRoot := t.TempDir()
	writeStat(t, sysRoot, "sda", 1000, 2000)

	m := diskstats.NewMonitor("sda", diskstats.WithSysRoot(sysRoot))
	activity, err := m.Poll()
	if err != nil {
		t.Fatalf("Poll returned error: %v", err)
	}
	if activity.Any() {
		t.Fatalf("first poll must report no activity, got %+v", activity)
	}
}

func TestPollDetectsReadAndWriteIndependently(t *testing.T) {
	sysRoot := t.TempDir()
	writeStat(t, sysRoot, "sda", 1000, 2000)

	m := diskstats.NewMonitor("sda", diskstats.WithSysRoot(sysRoot))
	if _, err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	writeStat(t, sysRoot, "sda", 1024, 2000)
	activity, err := m.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if !activity.Read || activity.Write {
		t.Fatalf("expected read-only activity, got %+v", activity)
	}

	writeStat(t, sysRoot, "sda", 1024, 2048)
	activity, err = m.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if activity.Read || !activity.Write {
		t.Fatalf("expected write-only activity, got %+v", activity)
	}

	activity, err = m.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if activity.Any() {
		t.Fatalf("unchanged counters must report no activity, got %+v", activity)
	}
}

func TestRebaselineSwallowsSelfInflictedActivity(t *testing.T) {
	sysRoot := t.TempDir()
	writeStat(t, sysRoot, "sda", 1000, 2000)

	m := diskstats.NewMonitor("sda", diskstats.WithSysRoot(sysRoot))
	if _, err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	// A touch+sync moved the write counter; rebaseline discards it.
	writeStat(t, sysRoot, "sda", 1000, 2100)
	if err := m.Rebaseline(); err != nil {
		t.Fatal(err)
	}

	activity, err := m.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if activity.Any() {
		t.Fatalf("activity should have been rebaselined away, got %+v", activity)
	}
}

func TestPollFailureKeepsBaseline(t *testing.T) {
	sysRoot := t.TempDir()
	writeStat(t, sysRoot, "sda", 1000, 2000)

	m := diskstats.NewMonitor("sda", diskstats.WithSysRoot(sysRoot))
	if _, err := m.Poll(); err != nil {
		t.Fatal(err)
	}

	statPath := m.StatPath()
	if err := os.Remove(statPath); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Poll(); err == nil {
		t.Fatal("expected error for missing stat file")
	}

	// Device comes back with unchanged counters: still no activity.
	writeStat(t, sysRoot, "sda", 1000, 2000)
	activity, err := m.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if activity.Any() {
		t.Fatalf("expected no activity after recovery, got %+v", activity)
	}
}

func TestPollRejectsMalformedStat(t *testing.T) {
	sysRoot := t.TempDir()
	dir := filepath.Join(sysRoot, "block", "sda")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := diskstats.NewMonitor("sda", diskstats.WithSysRoot(sysRoot))

	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte("1 2 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Poll(); !errors.Is(err, diskstats.ErrShortStat) {
		t.Fatalf("expected ErrShortStat, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte("1 2 x 4 5 6 7 8 9 10 11\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Poll(); !errors.Is(err, diskstats.ErrMalformedStat) {
		t.Fatalf("expected ErrMalformedStat, got %v", err)
	}
}
