package usecase

import (
	"sync"
	"time"

	"session-hub/app/port"
)

// fakeClock hands out manually fired timers and tickers so the run loops
// can be driven deterministically.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTimer(d time.Duration) port.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{ch: make(chan time.Time, 1)}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) NewTicker(d time.Duration) port.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// FireTimer fires the most recently created timer.
func (c *fakeClock) FireTimer() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		return false
	}
	c.timers[len(c.timers)-1].fire(c.now)
	return true
}

// TimerCount reports how many timers have been created.
func (c *fakeClock) TimerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Tick fires the most recently created ticker once.
func (c *fakeClock) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.tickers) == 0 {
		return false
	}
	c.tickers[len(c.tickers)-1].fire(c.now)
	return true
}

type fakeTimer struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := t.stopped
	t.stopped = true
	return !was
}

func (t *fakeTimer) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

func (t *fakeTicker) fire(now time.Time) {
	select {
	case t.ch <- now:
	default:
	}
}
