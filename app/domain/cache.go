package domain

import "time"

// CacheKey is the durable-storage key under which the profile cache entry
// is persisted.
const CacheKey = "lia-user-cache"

// CacheTTL is the window after which a cached profile is considered stale
// and must be re-fetched.
const CacheTTL = 10 * time.Minute

// CacheEntry is the last-known application-user record persisted across
// restarts, together with the instant it was fetched and the identity
// subject it was fetched for.
type CacheEntry struct {
	User             AuthUser  `json:"user"`
	CachedAt         time.Time `json:"timestamp"`
	SessionSubjectID string    `json:"sessionId"`
}

// NewCacheEntry creates a cache entry for a freshly fetched user.
func NewCacheEntry(user AuthUser, now time.Time, subjectID string) *CacheEntry {
	return &CacheEntry{
		User:             user,
		CachedAt:         now,
		SessionSubjectID: subjectID,
	}
}

// Valid reports whether the entry may still be used: it must be structurally
// sound, younger than the TTL, and fetched for the given subject. An entry
// that fails any of these must be discarded before use.
func (e *CacheEntry) Valid(now time.Time, ttl time.Duration, subjectID string) bool {
	if !e.WellFormed() {
		return false
	}

	if now.Sub(e.CachedAt) >= ttl {
		return false
	}

	if subjectID != "" && e.SessionSubjectID != subjectID {
		return false
	}

	return true
}

// WellFormed checks the structural invariants of a deserialized entry.
func (e *CacheEntry) WellFormed() bool {
	if e.User.ID == "" || e.User.Email == "" {
		return false
	}

	if e.CachedAt.IsZero() {
		return false
	}

	return e.SessionSubjectID != ""
}
