package port

//go:generate mockgen -source=profile_port.go -destination=../mocks/mock_profile_port.go

import (
	"context"

	"session-hub/app/domain"
)

// ProfileGateway is the backend profile collaborator. FetchProfile never
// returns an error: every path settles into one of the four outcomes, and
// call sites branch on the taxonomy instead of unwrapping error chains.
type ProfileGateway interface {
	// FetchProfile resolves an email address to an application-user record
	// under the configured timeout. It only classifies; on a fatal outcome
	// (NotFound, Inactive) revoking the identity session is the caller's
	// job, and the lifecycle controller performs it exactly once.
	FetchProfile(ctx context.Context, email string) domain.FetchResult

	// SignOutServer clears server-held cookies. Best effort: failure must
	// not block a local sign-out.
	SignOutServer(ctx context.Context) error
}
