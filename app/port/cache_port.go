package port

//go:generate mockgen -source=cache_port.go -destination=../mocks/mock_cache_port.go

import (
	"context"

	"session-hub/app/domain"
)

// ProfileCache is the durable last-known-user store. It has no side effects
// beyond the underlying storage and never performs network access.
type ProfileCache interface {
	// Load returns a parsed, structurally valid, non-expired entry fetched
	// for the given subject, or nil on any parse or validation failure.
	// An empty subjectID skips the subject check; it is used only for the
	// optimistic paint before the current session is known. Load never
	// panics and never returns an error.
	Load(ctx context.Context, subjectID string) *domain.CacheEntry

	// Save persists the entry best-effort; storage failures are swallowed.
	Save(ctx context.Context, entry *domain.CacheEntry)

	// Clear removes the entry. Idempotent.
	Clear(ctx context.Context)
}

// Storage is a small durable key/value store backing the profile cache.
// Implementations exist for the local filesystem and for redis.
type Storage interface {
	// Get returns the stored value or domain.ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
