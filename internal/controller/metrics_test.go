package controller

import (
	"testing"
	"time"
)

func TestIdlePercent(t *testing.T) {
	cases := []struct {
		idle, uptime time.Duration
		want         int
	}{
		{0, 0, 0}, // division-by-zero guard
		{time.Hour, 0, 0},
		{30 * time.Minute, time.Hour, 50},
		{time.Second, 3 * time.Second, 33}, // floor, not round
		{time.Hour, time.Hour, 100},
	}
	for _, tc := range cases {
		if got := idlePercent(tc.idle, tc.uptime); got != tc.want {
			t.Fatalf("idlePercent(%v, %v) = %d, want %d", tc.idle, tc.uptime, got, tc.want)
		}
	}
}

func TestCyclesPerHour(t *testing.T) {
	cases := []struct {
		cycles int
		uptime time.Duration
		want   int
	}{
		{5, 0, 5}, // below one hour: raw count
		{5, 30 * time.Minute, 5},
		{10, 2 * time.Hour, 5},
		{7, 90 * time.Minute, 7}, // 1 full hour elapsed
	}
	for _, tc := range cases {
		if got := cyclesPerHour(tc.cycles, tc.uptime); got != tc.want {
			t.Fatalf("cyclesPerHour(%d, %v) = %d, want %d", tc.cycles, tc.uptime, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{125 * time.Second, "2m 5s"},
		{3723 * time.Second, "1h 2m 3s"},
		{90061 * time.Second, "1d 1h 1m 1s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.d); got != tc.want {
			t.Fatalf("FormatDuration(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
