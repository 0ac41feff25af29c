package domain

// SessionEventType classifies notifications from the identity provider's
// change stream.
type SessionEventType string

const (
	// EventInitial reports the session found at watcher start.
	EventInitial SessionEventType = "initial"

	// EventChanged reports a replaced session: a refresh (same subject, new
	// token) or a different user signing in (new subject).
	EventChanged SessionEventType = "changed"

	// EventNone reports that no session exists anymore.
	EventNone SessionEventType = "none"
)

// SessionEvent is one notification from the identity provider. Events must
// be processed strictly in arrival order: a later EventNone may represent a
// sign-out that has to override an in-flight fetch from an earlier sign-in.
type SessionEvent struct {
	Type    SessionEventType
	Session *IdentitySession
}
