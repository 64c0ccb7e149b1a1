package controller_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soundsrc/wdantiparkd/internal/config"
	"github.com/soundsrc/wdantiparkd/internal/controller"
	"github.com/soundsrc/wdantiparkd/internal/diskstats"
	"github.com/soundsrc/wdantiparkd/internal/logging"
)

func testConfig(t *testing.T, mutate func(cfg *config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Timing.PollInterval = 1
	if mutate != nil {
		mutate(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

type fakeDisk struct {
	touches  int
	syncs    int
	touchErr error
}

func (d *fakeDisk) Touch() error {
	d.touches++
	return d.touchErr
}

func (d *fakeDisk) Sync() error {
	d.syncs++
	return nil
}

// scriptedSource feeds the controller activity decided by a callback and
// cancels the run context once the poll budget is exhausted.
type scriptedSource struct {
	cancel      context.CancelFunc
	next        func(poll int, at time.Time) (diskstats.Activity, error)
	clock       *fakeClock
	limit       int
	polls       int
	pollTimes   []time.Time
	rebaselines int
}

func (s *scriptedSource) Poll() (diskstats.Activity, error) {
	if s.polls >= s.limit {
		s.cancel()
		return diskstats.Activity{}, nil
	}
	n := s.polls
	s.polls++
	s.pollTimes = append(s.pollTimes, s.clock.now)
	if s.next == nil {
		return diskstats.Activity{}, nil
	}
	return s.next(n, s.clock.now)
}

func (s *scriptedSource) Rebaseline() error {
	s.rebaselines++
	return nil
}

type harness struct {
	cfg         *config.Config
	clock       *fakeClock
	disk        *fakeDisk
	source      *scriptedSource
	transitions []controller.Transition
	state       controller.State
	ctrl        *controller.Controller
	ctx         context.Context
}

func newHarness(t *testing.T, cfg *config.Config, pollLimit int,
	next func(h *harness, poll int, at time.Time) (diskstats.Activity, error)) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		cfg:   cfg,
		clock: newFakeClock(),
		disk:  &fakeDisk{},
		state: controller.StateAntiPark,
		ctx:   ctx,
	}
	h.source = &scriptedSource{cancel: cancel, clock: h.clock, limit: pollLimit}
	if next != nil {
		h.source.next = func(poll int, at time.Time) (diskstats.Activity, error) {
			return next(h, poll, at)
		}
	}

	h.ctrl = controller.New(cfg, h.source, h.disk, logging.NewNop(),
		controller.WithClock(h.clock),
		controller.WithTransitionHook(func(tr controller.Transition) {
			h.transitions = append(h.transitions, tr)
			h.state = tr.To
		}))
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Run(h.ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

func (h *harness) assertTimeoutBounds(t *testing.T) {
	t.Helper()
	base := h.cfg.AntiParkTimeout()
	max := h.cfg.AntiParkTimeoutMax()
	for i, tr := range h.transitions {
		if tr.Timeout < base || tr.Timeout > max {
			t.Fatalf("transition %d timeout %v outside [%v, %v]", i, tr.Timeout, base, max)
		}
	}
}

func TestQuietRunParksThenIdles(t *testing.T) {
	cfg := testConfig(t, nil) // antipark 60s, parked 300s, interval 1s
	h := newHarness(t, cfg, 400, nil)
	start := h.clock.now

	h.run(t)

	if len(h.transitions) != 2 {
		t.Fatalf("expected exactly 2 transitions, got %d: %+v", len(h.transitions), h.transitions)
	}

	park := h.transitions[0]
	if park.From != controller.StateAntiPark || park.To != controller.StateParked {
		t.Fatalf("unexpected first transition: %+v", park)
	}
	if got := park.At.Sub(start); got != 61*time.Second {
		t.Fatalf("parked after %v, want 61s", got)
	}
	if park.TimeInState != 61*time.Second {
		t.Fatalf("time in antipark %v, want 61s", park.TimeInState)
	}

	idle := h.transitions[1]
	if idle.From != controller.StateParked || idle.To != controller.StateIdle {
		t.Fatalf("unexpected second transition: %+v", idle)
	}
	if got := idle.At.Sub(park.At); got != 301*time.Second {
		t.Fatalf("idled %v after parking, want 301s", got)
	}

	// Entering PARKED counts one estimated load cycle; sync_before_idle
	// is off so IDLE does not add another.
	status := h.ctrl.Status()
	if status.LoadCycleEstimate != 1 {
		t.Fatalf("load cycle estimate %d, want 1", status.LoadCycleEstimate)
	}
	if status.State != "idle" {
		t.Fatalf("final state %q, want idle", status.State)
	}
	if h.source.rebaselines != 1 {
		t.Fatalf("rebaselines %d, want 1 (park transition only)", h.source.rebaselines)
	}
	h.assertTimeoutBounds(t)
}

func TestSyncBeforeIdleCountsACycle(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.Config) {
		cfg.Behavior.SyncBeforeIdle = true
	})
	h := newHarness(t, cfg, 400, nil)

	h.run(t)

	status := h.ctrl.Status()
	if status.LoadCycleEstimate != 2 {
		t.Fatalf("load cycle estimate %d, want 2 (park + sync-before-idle)", status.LoadCycleEstimate)
	}
	if h.source.rebaselines != 2 {
		t.Fatalf("rebaselines %d, want 2", h.source.rebaselines)
	}
}

func TestParkedInterruptsDoubleTimeoutClamped(t *testing.T) {
	cfg := testConfig(t, nil) // base 60s, max 300s
	interrupts := 0
	h := newHarness(t, cfg, 5000, func(h *harness, _ int, _ time.Time) (diskstats.Activity, error) {
		if h.state == controller.StateParked && interrupts < 4 {
			interrupts++
			return diskstats.Activity{Read: true, Write: true}, nil
		}
		return diskstats.Activity{}, nil
	})

	h.run(t)

	var timeouts []time.Duration
	for _, tr := range h.transitions {
		if tr.From == controller.StateParked && tr.To == controller.StateAntiPark {
			timeouts = append(timeouts, tr.Timeout)
		}
	}
	want := []time.Duration{120 * time.Second, 240 * time.Second, 300 * time.Second, 300 * time.Second}
	if len(timeouts) != len(want) {
		t.Fatalf("interrupt timeouts %v, want %v", timeouts, want)
	}
	for i := range want {
		if timeouts[i] != want[i] {
			t.Fatalf("interrupt %d timeout %v, want %v", i, timeouts[i], want[i])
		}
	}
	h.assertTimeoutBounds(t)
}

func TestIdleExitResetsTimeoutToBase(t *testing.T) {
	cfg := testConfig(t, nil)
	interrupted := false
	woke := false
	h := newHarness(t, cfg, 5000, func(h *harness, _ int, _ time.Time) (diskstats.Activity, error) {
		switch h.state {
		case controller.StateParked:
			// One interruption inflates the timeout to 120s.
			if !interrupted {
				interrupted = true
				return diskstats.Activity{Write: true}, nil
			}
		case controller.StateIdle:
			if !woke {
				woke = true
				return diskstats.Activity{Read: true}, nil
			}
		}
		return diskstats.Activity{}, nil
	})

	h.run(t)

	var idleExit *controller.Transition
	for i := range h.transitions {
		if h.transitions[i].From == controller.StateIdle {
			idleExit = &h.transitions[i]
			break
		}
	}
	if idleExit == nil {
		t.Fatalf("no transition out of idle: %+v", h.transitions)
	}
	if idleExit.To != controller.StateAntiPark {
		t.Fatalf("idle exit should return to antipark, got %+v", idleExit)
	}
	if idleExit.Timeout != cfg.AntiParkTimeout() {
		t.Fatalf("timeout after idle exit %v, want base %v", idleExit.Timeout, cfg.AntiParkTimeout())
	}
	h.assertTimeoutBounds(t)
}

func TestWriteActivityDoesNotDeferParking(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.Config) {
		cfg.Timing.AntiParkTimeout = 10
		cfg.Timing.AntiParkTimeoutMax = 10
	})
	h := newHarness(t, cfg, 60, func(h *harness, _ int, _ time.Time) (diskstats.Activity, error) {
		if h.state == controller.StateAntiPark {
			return diskstats.Activity{Write: true}, nil
		}
		return diskstats.Activity{}, nil
	})
	start := h.clock.now

	h.run(t)

	if len(h.transitions) == 0 {
		t.Fatal("expected the drive to park despite write activity")
	}
	if got := h.transitions[0].At.Sub(start); got != 11*time.Second {
		t.Fatalf("parked after %v, want 11s", got)
	}
}

func TestReadActivityDefersParking(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.Config) {
		cfg.Timing.AntiParkTimeout = 10
		cfg.Timing.AntiParkTimeoutMax = 10
	})
	h := newHarness(t, cfg, 100, func(_ *harness, poll int, _ time.Time) (diskstats.Activity, error) {
		if poll%5 == 0 {
			return diskstats.Activity{Read: true}, nil
		}
		return diskstats.Activity{}, nil
	})

	h.run(t)

	if len(h.transitions) != 0 {
		t.Fatalf("reads every 5s should defer a 10s park timeout forever, got %+v", h.transitions)
	}
}

func TestTransitionTicksSkipPacingSleep(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.Config) {
		cfg.Timing.PollInterval = 5
	})
	interrupted := false
	h := newHarness(t, cfg, 200, func(h *harness, _ int, _ time.Time) (diskstats.Activity, error) {
		if h.state == controller.StateParked && !interrupted {
			interrupted = true
			return diskstats.Activity{Read: true}, nil
		}
		return diskstats.Activity{}, nil
	})

	h.run(t)

	for i, d := range h.clock.sleeps {
		if d < 0 {
			t.Fatalf("sleep %d is negative: %v", i, d)
		}
		if d > 5*time.Second {
			t.Fatalf("sleep %d exceeds the interval: %v", i, d)
		}
	}

	// The interrupted PARKED tick re-runs the decision immediately: two
	// consecutive polls at the same simulated instant.
	immediate := false
	for i := 1; i < len(h.source.pollTimes); i++ {
		if h.source.pollTimes[i].Equal(h.source.pollTimes[i-1]) {
			immediate = true
			break
		}
	}
	if !immediate {
		t.Fatal("expected an immediate re-evaluation poll after the interrupted park")
	}

	// The AntiPark->Parked transition tick spends the 1s settle pause and
	// must shorten its pacing sleep accordingly.
	foundSettle := false
	for i := 0; i+1 < len(h.clock.sleeps); i++ {
		if h.clock.sleeps[i] == time.Second && h.clock.sleeps[i+1] == 4*time.Second {
			foundSettle = true
			break
		}
	}
	if !foundSettle {
		t.Fatal("expected a 1s settle sleep followed by a 4s shortened pacing sleep")
	}
}

func TestTouchFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, nil)
	h := newHarness(t, cfg, 10, nil)
	h.disk.touchErr = errors.New("read-only file system")

	err := h.ctrl.Run(h.ctx)
	if err == nil {
		t.Fatal("expected touch failure to abort the run")
	}
	if !strings.Contains(err.Error(), "read-only file system") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadFailureBudgetEscalates(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.Config) {
		cfg.Behavior.MaxReadFailures = 3
	})
	h := newHarness(t, cfg, 100, func(_ *harness, _ int, _ time.Time) (diskstats.Activity, error) {
		return diskstats.Activity{}, errors.New("no such device")
	})

	err := h.ctrl.Run(h.ctx)
	if err == nil {
		t.Fatal("expected persistent read failures to abort the run")
	}
	if !strings.Contains(err.Error(), "3 consecutive") {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.source.polls != 3 {
		t.Fatalf("expected exactly 3 polls before escalation, got %d", h.source.polls)
	}
}

func TestReadFailureCountResetsOnSuccess(t *testing.T) {
	cfg := testConfig(t, func(cfg *config.Config) {
		cfg.Behavior.MaxReadFailures = 3
	})
	h := newHarness(t, cfg, 50, func(_ *harness, poll int, _ time.Time) (diskstats.Activity, error) {
		// Two failures, a success, two failures: never three in a row.
		if poll%3 != 2 {
			return diskstats.Activity{}, errors.New("transient")
		}
		return diskstats.Activity{}, nil
	})

	h.run(t)

	if h.source.polls != 50 {
		t.Fatalf("expected the run to survive all %d polls, got %d", 50, h.source.polls)
	}
}
