package domain

import "time"

// RetryPolicy describes how transient profile-fetch failures are retried.
// The policy is a plain value so it can be swapped and tested independently
// of the controller.
type RetryPolicy struct {
	// Attempts is the number of retries after the initial attempt.
	Attempts int

	// Backoff is the fixed delay before each retry.
	Backoff time.Duration
}

// DefaultRetryPolicy retries a transient failure exactly once after a fixed
// two second delay, then gives up without disturbing prior state.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 1,
		Backoff:  2 * time.Second,
	}
}
