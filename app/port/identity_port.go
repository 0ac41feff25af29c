package port

//go:generate mockgen -source=identity_port.go -destination=../mocks/mock_identity_port.go

import (
	"context"

	"session-hub/app/domain"
)

// SignOutScope selects how far a sign-out reaches.
type SignOutScope string

const (
	// SignOutLocal revokes only the current device's session.
	SignOutLocal SignOutScope = "local"

	// SignOutGlobal revokes every session of the identity.
	SignOutGlobal SignOutScope = "global"
)

// IdentityProvider is the external identity collaborator. It owns the
// session; the lifecycle controller only reads it, subscribes to its change
// stream, and asks for refreshes and sign-outs.
type IdentityProvider interface {
	// GetSession returns the current session, or domain.ErrNoSession when
	// the provider confirms none exists. Any other error means the provider
	// could not be reached and the session state is unknown.
	GetSession(ctx context.Context) (*domain.IdentitySession, error)

	// Events returns the session change stream. Events are delivered in
	// order and the channel is closed when the provider shuts down.
	Events() <-chan domain.SessionEvent

	// Refresh exchanges the current session for one with a later expiry.
	Refresh(ctx context.Context) (*domain.IdentitySession, error)

	// SignOut revokes the session within the given scope.
	SignOut(ctx context.Context, scope SignOutScope) error

	// OAuthRedirectURL initiates an OAuth sign-in with the named provider
	// and returns the URL the consumer must redirect to.
	OAuthRedirectURL(ctx context.Context, provider, returnTo string) (string, error)
}
