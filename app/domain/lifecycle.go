package domain

// LifecyclePhase names the coarse state of the session lifecycle machine.
type LifecyclePhase string

const (
	// PhaseNoSession means the provider confirmed no session exists.
	PhaseNoSession LifecyclePhase = "no_session"

	// PhaseHydrating means a session exists (or is being resolved) and the
	// matching user profile has not settled yet.
	PhaseHydrating LifecyclePhase = "hydrating"

	// PhaseAuthenticated means a session and an active user are both held.
	PhaseAuthenticated LifecyclePhase = "authenticated"

	// PhaseAwaitingRetry means the last fetch was transient; either a
	// one-shot retry is pending or the retry budget is exhausted and prior
	// state is preserved.
	PhaseAwaitingRetry LifecyclePhase = "awaiting_retry"

	// PhaseLoggedOut means a fatal outcome or a sign-out destroyed the
	// session; consumers should navigate to the unauthenticated entry point.
	PhaseLoggedOut LifecyclePhase = "logged_out"
)

// LifecycleState is a point-in-time snapshot of the controller's reactive
// state. IsLoading is true from start until the first resolution (cache hit,
// fetch settle, or confirmed absence of a session); IsFetchingUser is true
// only while a profile fetch is outstanding.
type LifecycleState struct {
	Phase          LifecyclePhase   `json:"phase"`
	Session        *IdentitySession `json:"session"`
	User           *AuthUser        `json:"user"`
	IsLoading      bool             `json:"isLoading"`
	IsFetchingUser bool             `json:"isFetchingUser"`
	LastOutcome    FetchOutcome     `json:"lastFetchOutcome"`
}

// IsAuthenticated reports whether the snapshot represents an authenticated
// principal: a user is held and that user is active.
func (s LifecycleState) IsAuthenticated() bool {
	return Authenticated(s.User)
}

// ForcedLogoutAllowed is the guard for system-initiated logout. It holds
// only when every condition is met at once: nothing is loading, no fetch is
// outstanding, a session exists, no user is held, and the most recent fetch
// outcome was fatal. A transient outcome never satisfies the guard, so a
// network blip cannot log out an otherwise-valid session.
func (s LifecycleState) ForcedLogoutAllowed() bool {
	if s.IsLoading || s.IsFetchingUser {
		return false
	}

	if s.Session == nil || s.User != nil {
		return false
	}

	return s.LastOutcome.Fatal()
}
