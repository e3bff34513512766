package thermal

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the three-level thermal classification
type State int

const (
	StateNormal State = iota
	StateThrottle
	StateCritical
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateThrottle:
		return "THROTTLE"
	case StateCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

const maxHistorySize = 1000

// TempReader returns the current temperature readings across the
// available sensors. The monitor records the maximum.
type TempReader func() []float64

// Monitor polls device temperature on a fixed cadence and classifies it
// against the throttle and critical thresholds. Readers never block on
// sensor I/O; they observe the last completed poll under a mutex.
type Monitor struct {
	logger   *zap.Logger
	read     TempReader
	interval time.Duration

	mu           sync.Mutex
	currentTemp  float64
	throttleTemp float64
	maxTemp      float64
	state        State
	history      []float64

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewMonitor creates a thermal monitor. Polling does not start until
// Start is called.
func NewMonitor(logger *zap.Logger, read TempReader, throttleTemp, maxTemp float64, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		logger:       logger,
		read:         read,
		interval:     interval,
		currentTemp:  35.0,
		throttleTemp: throttleTemp,
		maxTemp:      maxTemp,
		state:        StateNormal,
	}
}

// Start launches the background polling task
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("thermal monitor already running")
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.pollLoop(m.stop, m.done)

	m.logger.Info("Thermal monitoring started",
		zap.Float64("throttle_temp_c", m.throttleTemp),
		zap.Float64("max_temp_c", m.maxTemp),
		zap.Duration("interval", m.interval),
	)
	return nil
}

// Stop requests the polling task to exit and waits for it
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done

	m.logger.Info("Thermal monitoring stopped")
}

// Poll takes a single temperature sample immediately. Used at startup
// and by tests; the background task calls it on every tick.
func (m *Monitor) Poll() {
	temps := m.read()

	var reading float64
	found := false
	for _, t := range temps {
		if !found || t > reading {
			reading, found = t, true
		}
	}
	if !found {
		return
	}

	m.mu.Lock()
	m.currentTemp = reading
	m.history = append(m.history, reading)
	if over := len(m.history) - maxHistorySize; over > 0 {
		m.history = m.history[over:]
	}
	m.updateStateLocked()
	m.mu.Unlock()
}

// CurrentTempC returns the most recent temperature reading
func (m *Monitor) CurrentTempC() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTemp
}

// CurrentState returns the current thermal classification
func (m *Monitor) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ShouldThrottle reports whether mining intensity should be reduced
func (m *Monitor) ShouldThrottle() bool {
	return m.CurrentState() >= StateThrottle
}

// ShouldStop reports whether mining should halt entirely
func (m *Monitor) ShouldStop() bool {
	return m.CurrentState() >= StateCritical
}

// SetLimits atomically updates the thresholds and re-evaluates state
func (m *Monitor) SetLimits(throttleTemp, maxTemp float64) {
	m.mu.Lock()
	m.throttleTemp = throttleTemp
	m.maxTemp = maxTemp
	m.updateStateLocked()
	m.mu.Unlock()

	m.logger.Info("Thermal limits updated",
		zap.Float64("throttle_temp_c", throttleTemp),
		zap.Float64("max_temp_c", maxTemp),
	)
}

// History returns a copy of the bounded temperature history
func (m *Monitor) History() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.history))
	copy(out, m.history)
	return out
}

func (m *Monitor) pollLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Poll()
		}
	}
}

// updateStateLocked recomputes the thermal state. The boundary at
// exactly throttleTemp classifies as THROTTLE.
func (m *Monitor) updateStateLocked() {
	var newState State
	switch {
	case m.currentTemp >= m.maxTemp:
		newState = StateCritical
	case m.currentTemp >= m.throttleTemp:
		newState = StateThrottle
	default:
		newState = StateNormal
	}

	if newState == m.state {
		return
	}

	oldState := m.state
	m.state = newState

	m.logger.Info("Thermal state changed",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.Float64("temp_c", m.currentTemp),
	)
}
