package domain

// FetchOutcome classifies the result of one profile fetch attempt. Only two
// outcomes are fatal: a backend-confirmed absent account and a
// backend-confirmed disabled account. Every other failure mode collapses
// into OutcomeTransient so a network hiccup can never be mistaken for a
// confirmed-gone user.
type FetchOutcome string

const (
	// OutcomeNone is the zero value before any fetch has settled.
	OutcomeNone FetchOutcome = ""

	// OutcomeSuccess carries an active user payload.
	OutcomeSuccess FetchOutcome = "success"

	// OutcomeNotFound means the backend confirmed the account does not exist.
	OutcomeNotFound FetchOutcome = "not_found"

	// OutcomeInactive means the backend confirmed the account is disabled.
	OutcomeInactive FetchOutcome = "inactive"

	// OutcomeTransient covers network errors, timeouts, cancellations,
	// unexpected HTTP statuses and malformed bodies.
	OutcomeTransient FetchOutcome = "transient"
)

// Fatal reports whether the outcome must destroy the local session.
func (o FetchOutcome) Fatal() bool {
	return o == OutcomeNotFound || o == OutcomeInactive
}

// FetchResult is the settled result of a profile fetch attempt. User is
// non-nil only for OutcomeSuccess. FetchResult is never persisted; it is
// produced per attempt and consumed immediately.
type FetchResult struct {
	Outcome FetchOutcome
	User    *AuthUser
}
