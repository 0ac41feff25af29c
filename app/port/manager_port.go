package port

//go:generate mockgen -source=manager_port.go -destination=../mocks/mock_manager_port.go

import (
	"context"

	"session-hub/app/domain"
)

// SessionManager is the consumer-facing surface of the session lifecycle
// controller.
type SessionManager interface {
	// Run hydrates the session and processes identity events until ctx is
	// cancelled. Events are handled strictly in arrival order.
	Run(ctx context.Context) error

	// State returns a snapshot of the current lifecycle state.
	State() domain.LifecycleState

	// SignInWithGoogle initiates the OAuth redirect and returns the URL to
	// send the user to. This is the one operation whose failures propagate
	// to the caller; surfacing them is the consumer's responsibility.
	SignInWithGoogle(ctx context.Context, returnTo string) (string, error)

	// SignOut clears local state first, then revokes the provider session
	// and the server-held cookies. It never fails: every error path still
	// completes the local clear.
	SignOut(ctx context.Context)

	// RefreshSession manually triggers a token refresh.
	RefreshSession(ctx context.Context)

	// Close cancels any outstanding fetch and releases timers.
	Close()
}
