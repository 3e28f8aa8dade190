package clock

import (
	"context"
	"sync"
	"time"
)

// TickReason identifies why a tick was fired.
type TickReason string

const (
	// ReasonInterval marks a regular periodic tick.
	ReasonInterval TickReason = "interval"

	// ReasonCatchup marks a compensation tick fired after a delayed one.
	ReasonCatchup TickReason = "catchup"

	// ReasonManual marks a tick produced by the test clock.
	ReasonManual TickReason = "manual"

	// ReasonBridge marks a tick produced by an external push.
	ReasonBridge TickReason = "bridge"
)

// Tick is a single timing event produced by a clock.
type Tick struct {
	// TS is the tick time in Unix milliseconds. Real clocks report wall-clock
	// time; the test clock reports virtual time starting at zero.
	TS int64 `json:"ts"`

	// Seq is a monotonic counter starting at zero for each start epoch.
	Seq uint64 `json:"seq"`

	// Reason identifies why the tick fired.
	Reason TickReason `json:"reason"`

	// Drift is the signed deviation of the actual fire time from the ideal
	// fire time. Meaningful only for interval and catchup ticks.
	Drift time.Duration `json:"drift,omitempty"`
}

// TickHandler consumes ticks. The interval clock runs it on goroutines it
// owns, and a slow handler is subject to its back-pressure policy; the test
// and bridge clocks run it in the goroutine of the caller that advances or
// pushes.
type TickHandler func(ctx context.Context, tick Tick) error

// TickStats provides observability metrics for a clock.
// All values are zeroed at every Start.
type TickStats struct {
	TickCount    int64
	DroppedTicks int64
	Errors       int64
	LastTickAt   time.Time
	MaxHandler   time.Duration
	AvgHandler   time.Duration
	AvgDrift     time.Duration
}

// tickStats accumulates clock metrics behind a mutex. Clocks expose
// read-only snapshots via Stats().
type tickStats struct {
	mu           sync.Mutex
	tickCount    int64
	droppedTicks int64
	errors       int64
	lastTickAt   time.Time
	maxHandler   time.Duration
	totalHandler time.Duration
	handlerRuns  int64
	totalDrift   time.Duration
	driftTicks   int64
}

func (s *tickStats) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickCount = 0
	s.droppedTicks = 0
	s.errors = 0
	s.lastTickAt = time.Time{}
	s.maxHandler = 0
	s.totalHandler = 0
	s.handlerRuns = 0
	s.totalDrift = 0
	s.driftTicks = 0
}

func (s *tickStats) recordTick(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickCount++
	s.lastTickAt = at
}

func (s *tickStats) recordDrift(drift time.Duration) {
	if drift < 0 {
		drift = -drift
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalDrift += drift
	s.driftTicks++
}

func (s *tickStats) recordHandler(elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlerRuns++
	s.totalHandler += elapsed
	if elapsed > s.maxHandler {
		s.maxHandler = elapsed
	}
	if err != nil {
		s.errors++
	}
}

func (s *tickStats) addDropped(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.droppedTicks += n
}

func (s *tickStats) snapshot() TickStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := TickStats{
		TickCount:    s.tickCount,
		DroppedTicks: s.droppedTicks,
		Errors:       s.errors,
		LastTickAt:   s.lastTickAt,
		MaxHandler:   s.maxHandler,
	}
	if s.handlerRuns > 0 {
		out.AvgHandler = s.totalHandler / time.Duration(s.handlerRuns)
	}
	if s.driftTicks > 0 {
		out.AvgDrift = s.totalDrift / time.Duration(s.driftTicks)
	}
	return out
}
