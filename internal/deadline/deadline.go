// Package deadline counts an exam attempt down against the wall clock.
package deadline

import (
	"errors"
	"sync"
	"time"

	"github.com/verte-zerg/tuiexam/internal/clock"
)

// DefaultRefresh is how often the timer re-reads the clock.
const DefaultRefresh = time.Second

// ErrAlreadyStarted is returned when Start is called twice on one Timer.
var ErrAlreadyStarted = errors.New("deadline timer already started")

// Timer fires a callback once when its deadline passes. Time is read from
// the wall clock on every refresh rather than accumulated from ticks, so a
// host that sleeps or is suspended still expires on time when it wakes.
//
// onExpire runs on the timer's own goroutine. Cancel never blocks, so it is
// safe to call while holding a lock that onExpire also takes, but a Cancel
// that returns false may race with a callback still running. Stop closes
// that gap by waiting for the callback to return.
type Timer struct {
	clock   clock.Clock
	refresh time.Duration

	mu       sync.Mutex
	started  bool
	done     bool
	deadline time.Time
	onExpire func()
	stop     chan struct{}
	exited   chan struct{}
}

// New returns an idle timer. A nil clock uses the system clock; a
// non-positive refresh uses DefaultRefresh.
func New(clk clock.Clock, refresh time.Duration) *Timer {
	if clk == nil {
		clk = clock.System{}
	}
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Timer{clock: clk, refresh: refresh}
}

// Start counts d down from now.
func (t *Timer) Start(d time.Duration, onExpire func()) error {
	return t.StartAt(t.clock.Now(), d, onExpire)
}

// StartAt counts d down from start. A deadline already in the past expires
// on the first refresh.
func (t *Timer) StartAt(start time.Time, d time.Duration, onExpire func()) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	// Round(0) drops the monotonic reading so comparisons use wall time.
	t.deadline = start.Round(0).Add(d)
	t.onExpire = onExpire
	t.stop = make(chan struct{})
	t.exited = make(chan struct{})
	stop, exited := t.stop, t.exited
	t.mu.Unlock()

	go func() {
		defer close(exited)
		t.run(stop)
	}()
	return nil
}

// Cancel stops the timer. It reports whether it prevented the expiry; false
// means the timer was never started, already canceled, or had already
// committed to firing.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.done {
		return false
	}
	t.done = true
	close(t.stop)
	return true
}

// Stop cancels the timer and waits until a callback already in progress has
// returned, so onExpire never runs after Stop returns. It reports the same
// result as Cancel. Calling Stop from inside onExpire deadlocks.
func (t *Timer) Stop() bool {
	prevented := t.Cancel()
	t.mu.Lock()
	exited := t.exited
	t.mu.Unlock()
	if exited != nil {
		<-exited
	}
	return prevented
}

// Deadline returns the absolute expiry time, zero before Start.
func (t *Timer) Deadline() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deadline
}

// Remaining returns the time left, never negative. Before Start it is zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	deadline, started := t.deadline, t.started
	t.mu.Unlock()
	if !started {
		return 0
	}
	left := deadline.Sub(t.clock.Now().Round(0))
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the deadline has passed.
func (t *Timer) Expired() bool {
	t.mu.Lock()
	deadline, started := t.deadline, t.started
	t.mu.Unlock()
	return started && !t.clock.Now().Round(0).Before(deadline)
}

func (t *Timer) run(stop <-chan struct{}) {
	ticker := time.NewTicker(t.refresh)
	defer ticker.Stop()
	for {
		if t.tryExpire() {
			return
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// tryExpire fires the callback if due and reports whether the loop should
// exit.
func (t *Timer) tryExpire() bool {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return true
	}
	if t.clock.Now().Round(0).Before(t.deadline) {
		t.mu.Unlock()
		return false
	}
	t.done = true
	fn := t.onExpire
	t.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}
