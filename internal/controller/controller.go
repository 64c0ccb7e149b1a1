package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundsrc/wdantiparkd/internal/config"
	"github.com/soundsrc/wdantiparkd/internal/diskstats"
	"github.com/soundsrc/wdantiparkd/internal/logging"
)

const (
	// syncInterval throttles full filesystem syncs while anti-parking.
	syncInterval = 30 * time.Second
	// settleDelay lets a sync-heavy transition quiesce before the
	// activity counters are rebaselined.
	settleDelay = time.Second
)

// ActivitySource reports per-poll disk activity. diskstats.Monitor is the
// production implementation.
type ActivitySource interface {
	Poll() (diskstats.Activity, error)
	Rebaseline() error
}

// Transition describes a completed state change, for observers.
type Transition struct {
	From        State
	To          State
	At          time.Time
	TimeInState time.Duration
	// Timeout is the anti-park timeout in effect after the transition.
	Timeout time.Duration
}

// Status is a read-only snapshot of controller progress, served over IPC.
type Status struct {
	State             string        `json:"state"`
	CurrentTimeout    time.Duration `json:"current_timeout"`
	Uptime            time.Duration `json:"uptime"`
	IdleTime          time.Duration `json:"idle_time"`
	IdlePercent       int           `json:"idle_percent"`
	LoadCycleEstimate int           `json:"load_cycle_estimate"`
	CyclesPerHour     int           `json:"cycles_per_hour"`
}

// Controller owns the three-state anti-park loop. All state is mutated by
// the single Run goroutine; the only concurrent access is the published
// snapshot behind its own mutex.
type Controller struct {
	cfg    *config.Config
	source ActivitySource
	disk   Disk
	clock  Clock
	logger *slog.Logger

	onTransition func(Transition)

	state        State
	curTimeout   time.Duration
	timeoutStart time.Time
	stateStart   time.Time
	startedAt    time.Time
	idleAccum    time.Duration
	loadCycles   int
	lastSync     time.Time
	readFailures int

	mu       sync.Mutex
	snapshot Status
}

// Option adjusts Controller construction.
type Option func(*Controller)

// WithClock substitutes the wall clock, primarily for tests.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithTransitionHook registers a callback invoked synchronously after every
// state transition.
func WithTransitionHook(hook func(Transition)) Option {
	return func(c *Controller) { c.onTransition = hook }
}

// New constructs a controller. The config must already be validated.
func New(cfg *config.Config, source ActivitySource, disk Disk, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg,
		source: source,
		disk:   disk,
		clock:  NewClock(),
		logger: logging.NewComponentLogger(logger, "controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the latest published snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run executes the polling loop until ctx is cancelled (returns nil) or an
// unrecoverable I/O failure occurs (returns the error). The controller
// always starts fresh in the ANTI-PARK state; nothing persists across runs.
func (c *Controller) Run(ctx context.Context) error {
	now := c.clock.Now()
	c.state = StateAntiPark
	c.curTimeout = c.cfg.AntiParkTimeout()
	c.startedAt = now
	c.timeoutStart = now
	c.stateStart = now
	c.lastSync = now
	c.logStartup()
	c.publish(now)

	for {
		if ctx.Err() != nil {
			c.logger.Info("controller stopping",
				logging.String(logging.FieldEventType, "controller_stopped"),
				logging.Duration("uptime", c.clock.Now().Sub(c.startedAt)))
			return nil
		}

		tickStart := c.clock.Now()
		rerun, err := c.tick(ctx, tickStart)
		if err != nil {
			return err
		}
		c.publish(c.clock.Now())
		if rerun {
			// A state transition was taken; decide the next state
			// immediately instead of waiting out the interval.
			continue
		}

		elapsed := c.clock.Now().Sub(tickStart)
		if pause := c.cfg.PollInterval() - elapsed; pause > 0 {
			c.clock.Sleep(ctx, pause)
		}
	}
}

func (c *Controller) tick(ctx context.Context, now time.Time) (rerun bool, err error) {
	activity, err := c.pollActivity()
	if err != nil {
		return false, err
	}

	switch c.state {
	case StateAntiPark:
		return false, c.tickAntiPark(ctx, now, activity)
	case StateParked:
		return c.tickParked(ctx, now, activity), nil
	case StateIdle:
		return c.tickIdle(now, activity), nil
	}
	return false, nil
}

// pollActivity degrades a failed counter read to "no activity" so a
// transient sysfs hiccup does not wake or park the drive spuriously. The
// failure budget turns a persistent hiccup into a fatal error.
func (c *Controller) pollActivity() (diskstats.Activity, error) {
	activity, err := c.source.Poll()
	if err == nil {
		c.readFailures = 0
		return activity, nil
	}

	c.readFailures++
	if c.readFailures >= c.cfg.Behavior.MaxReadFailures {
		return diskstats.Activity{}, fmt.Errorf("device activity unreadable for %d consecutive polls: %w", c.readFailures, err)
	}
	c.logger.Warn("device activity read failed; treating tick as idle",
		logging.Error(err),
		logging.String(logging.FieldEventType, "activity_read_failed"),
		logging.String(logging.FieldDevice, c.cfg.Disk.Device),
		logging.Int("consecutive_failures", c.readFailures),
		logging.Int("failure_budget", c.cfg.Behavior.MaxReadFailures),
		logging.String(logging.FieldImpact, "daemon exits when the budget is exhausted"))
	return diskstats.Activity{}, nil
}

func (c *Controller) tickAntiPark(ctx context.Context, now time.Time, activity diskstats.Activity) error {
	// Only read activity defers parking. Writes may be buffered long
	// before they hit the platter; reads indicate real demand.
	if activity.Read {
		c.timeoutStart = now
	}

	if err := c.disk.Touch(); err != nil {
		return err
	}
	if now.Sub(c.lastSync) > syncInterval {
		c.syncDisks()
		c.lastSync = now
	}

	if now.Sub(c.timeoutStart) > c.curTimeout {
		spent := now.Sub(c.stateStart)
		c.setState(StateParked, now)
		c.syncDisks()
		c.lastSync = now
		c.settle(ctx)
		c.rebaseline()
		c.loadCycles++
		c.emitTransition(StateAntiPark, StateParked, now, spent,
			"letting the drive park")
	}
	return nil
}

func (c *Controller) tickParked(ctx context.Context, now time.Time, activity diskstats.Activity) bool {
	if activity.Any() {
		parked := now.Sub(c.stateStart)
		c.idleAccum += parked
		// Each interrupted park doubles the next anti-park window, so
		// bursty workloads stop cycling the head.
		c.curTimeout = minDuration(2*c.curTimeout, c.cfg.AntiParkTimeoutMax())
		c.setState(StateAntiPark, now)
		c.emitTransition(StateParked, StateAntiPark, now, parked,
			"disk activity detected while parked")
		return true
	}

	if now.Sub(c.timeoutStart) > c.cfg.ParkedTimeout() {
		parked := now.Sub(c.stateStart)
		c.idleAccum += parked
		c.setState(StateIdle, now)
		if c.cfg.Behavior.SyncBeforeIdle {
			c.syncDisks()
			c.lastSync = now
			c.settle(ctx)
			c.rebaseline()
			c.loadCycles++
		}
		c.emitTransition(StateParked, StateIdle, now, parked,
			"no activity while parked; allowing spindown")
		return true
	}
	return false
}

func (c *Controller) tickIdle(now time.Time, activity diskstats.Activity) bool {
	if !activity.Any() {
		// Deliberately no disk I/O here: this is what lets the OS spin
		// the drive down.
		return false
	}

	idle := now.Sub(c.stateStart)
	c.idleAccum += idle
	c.curTimeout = c.cfg.AntiParkTimeout()

	uptime := now.Sub(c.startedAt)
	c.logger.Log(context.Background(), c.eventLevel(), "idle period ended",
		logging.String(logging.FieldEventType, "idle_stats"),
		logging.Duration("uptime", uptime),
		logging.Duration("idle_time", c.idleAccum),
		logging.Int("idle_percent", idlePercent(c.idleAccum, uptime)),
		logging.Int("est_load_cycles_per_hour", cyclesPerHour(c.loadCycles, uptime)))

	c.setState(StateAntiPark, now)
	c.emitTransition(StateIdle, StateAntiPark, now, idle,
		"disk activity detected while idle")
	return true
}

func (c *Controller) setState(next State, now time.Time) {
	c.state = next
	c.timeoutStart = now
	c.stateStart = now
}

func (c *Controller) syncDisks() {
	if err := c.disk.Sync(); err != nil {
		// Sync is best effort; the next touch re-establishes durability.
		c.logger.Debug("sync failed", logging.Error(err))
	}
}

func (c *Controller) settle(ctx context.Context) {
	c.clock.Sleep(ctx, settleDelay)
}

func (c *Controller) rebaseline() {
	if err := c.source.Rebaseline(); err != nil {
		c.logger.Warn("failed to rebaseline activity counters",
			logging.Error(err),
			logging.String(logging.FieldEventType, "rebaseline_failed"),
			logging.String(logging.FieldImpact, "next poll may report self-inflicted activity"))
	}
}

func (c *Controller) emitTransition(from, to State, now time.Time, timeInState time.Duration, reason string) {
	c.logger.Log(context.Background(), c.eventLevel(), "state changed",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", from.String()),
		logging.String("to", to.String()),
		logging.String("reason", reason),
		logging.String("time_in_state", FormatDuration(timeInState)),
		logging.String("antipark_timeout", FormatDuration(c.curTimeout)))

	if c.onTransition != nil {
		c.onTransition(Transition{
			From:        from,
			To:          to,
			At:          now,
			TimeInState: timeInState,
			Timeout:     c.curTimeout,
		})
	}
}

func (c *Controller) eventLevel() slog.Level {
	if c.cfg.Logging.Verbose {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func (c *Controller) logStartup() {
	c.logger.Info("anti-park controller starting",
		logging.String(logging.FieldEventType, "controller_started"),
		logging.String(logging.FieldDevice, c.cfg.Disk.Device),
		logging.String("touch_file", c.cfg.Disk.TouchFile),
		logging.String("interval", FormatDuration(c.cfg.PollInterval())),
		logging.String("antipark_timeout", FormatDuration(c.cfg.AntiParkTimeout())),
		logging.String("antipark_timeout_max", FormatDuration(c.cfg.AntiParkTimeoutMax())),
		logging.String("parked_timeout", FormatDuration(c.cfg.ParkedTimeout())),
		logging.Bool("sync_before_idle", c.cfg.Behavior.SyncBeforeIdle))
}

func (c *Controller) publish(now time.Time) {
	uptime := now.Sub(c.startedAt)
	status := Status{
		State:             c.state.String(),
		CurrentTimeout:    c.curTimeout,
		Uptime:            uptime,
		IdleTime:          c.idleAccum,
		IdlePercent:       idlePercent(c.idleAccum, uptime),
		LoadCycleEstimate: c.loadCycles,
		CyclesPerHour:     cyclesPerHour(c.loadCycles, uptime),
	}
	c.mu.Lock()
	c.snapshot = status
	c.mu.Unlock()
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
