package power

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SnapshotFunc supplies the current power and thermal inputs.
type SnapshotFunc func() Snapshot

// ChangeFunc is invoked after every intensity transition.
type ChangeFunc func(old, new Intensity)

// Controller periodically evaluates the mining policy against live
// power and thermal inputs and publishes the resulting intensity. A
// manual override forces the decision until the next evaluation tick,
// at which point the policy reasserts itself.
type Controller struct {
	logger   *zap.Logger
	snap     SnapshotFunc
	interval time.Duration
	onChange ChangeFunc

	mu        sync.Mutex
	intensity Intensity
	last      Snapshot

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewController creates a policy controller. Evaluation does not start
// until Start is called; the initial intensity is DISABLED.
func NewController(logger *zap.Logger, snap SnapshotFunc, interval time.Duration, onChange ChangeFunc) *Controller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Controller{
		logger:    logger,
		snap:      snap,
		interval:  interval,
		onChange:  onChange,
		intensity: IntensityDisabled,
	}
}

// Start launches the background evaluation loop
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("policy controller already running")
	}
	c.running = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.evalLoop(c.stop, c.done)

	c.logger.Info("Power policy evaluation started",
		zap.Duration("interval", c.interval),
	)
	return nil
}

// Stop requests the evaluation loop to exit and waits for it
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	stop, done := c.stop, c.done
	c.mu.Unlock()

	close(stop)
	<-done

	c.logger.Info("Power policy evaluation stopped")
}

// Evaluate takes a fresh snapshot and applies the policy immediately.
// The loop calls it on every tick; callers may invoke it to force a
// re-evaluation between ticks.
func (c *Controller) Evaluate() Intensity {
	s := c.snap()
	return c.apply(s, Decide(s), "policy")
}

// SetMiningAllowed forces the decision manually. Passing false drives
// the intensity to DISABLED; passing true re-runs the policy table.
// Either way the next tick re-evaluates from live inputs.
func (c *Controller) SetMiningAllowed(allowed bool) Intensity {
	s := c.snap()
	next := Decide(s)
	if !allowed {
		next = IntensityDisabled
	}
	return c.apply(s, next, "manual override")
}

// Intensity returns the current published intensity
func (c *Controller) Intensity() Intensity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intensity
}

// LastSnapshot returns the inputs from the most recent evaluation
func (c *Controller) LastSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// CanStartMining reports whether a mining session may begin now
func (c *Controller) CanStartMining() bool {
	return CanMine(c.snap())
}

// ShouldStopMining reports whether an active session must halt now
func (c *Controller) ShouldStopMining() bool {
	return ShouldStop(c.snap())
}

func (c *Controller) evalLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Evaluate()
		}
	}
}

// apply publishes a decision and logs the transition exactly once per
// change. The callback runs outside the lock.
func (c *Controller) apply(s Snapshot, next Intensity, cause string) Intensity {
	c.mu.Lock()
	c.last = s
	old := c.intensity
	if next == old {
		c.mu.Unlock()
		return next
	}
	c.intensity = next

	c.logger.Info("Mining intensity changed",
		zap.String("old", old.String()),
		zap.String("new", next.String()),
		zap.String("cause", cause),
		zap.Int("battery_pct", s.BatteryPct),
		zap.Bool("charging", s.Charging),
		zap.Float64("temp_c", s.TempC),
	)
	onChange := c.onChange
	c.mu.Unlock()

	if onChange != nil {
		onChange(old, next)
	}
	return next
}
