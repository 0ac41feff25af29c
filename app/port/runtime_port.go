package port

import "time"

// Clock abstracts time so the controller and the refresh coordinator can be
// driven deterministically in tests.
type Clock interface {
	Now() time.Time

	// NewTimer returns a one-shot timer firing after d.
	NewTimer(d time.Duration) Timer

	// NewTicker returns a periodic ticker firing every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a stoppable one-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker is a stoppable periodic ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// VisibilityObserver reports host-visibility transitions: each receive on
// Visible means the host just became visible again and a near-expiry token
// should be refreshed.
type VisibilityObserver interface {
	Visible() <-chan struct{}
}
