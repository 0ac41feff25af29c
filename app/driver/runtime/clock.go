// Package runtime provides the real-world implementations of the clock and
// visibility ports.
package runtime

import (
	"time"

	"session-hub/app/port"
)

// SystemClock implements port.Clock with the standard library.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTimer(d time.Duration) port.Timer {
	return systemTimer{time.NewTimer(d)}
}

func (SystemClock) NewTicker(d time.Duration) port.Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) C() <-chan time.Time { return s.t.C }
func (s systemTimer) Stop() bool          { return s.t.Stop() }

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }
