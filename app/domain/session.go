package domain

import (
	"fmt"
	"time"
)

// IdentitySession is the identity provider's proof of authentication. It is
// an opaque token bundle owned by the provider; the lifecycle controller
// holds a read-only reference. The ID changes on every token refresh, the
// SubjectID is stable for the lifetime of the identity.
type IdentitySession struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	Active    bool      `json:"active"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewIdentitySession creates a session reference with validation.
func NewIdentitySession(id, subjectID, email string, expiresAt time.Time) (*IdentitySession, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	if subjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}

	return &IdentitySession{
		ID:        id,
		SubjectID: subjectID,
		Email:     email,
		Active:    true,
		IssuedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}, nil
}

// IsExpired returns true if the session has expired at the given instant.
func (s *IdentitySession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// TimeToExpiry returns the remaining lifetime of the session.
func (s *IdentitySession) TimeToExpiry(now time.Time) time.Duration {
	if s.IsExpired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// NeedsRefresh reports whether the session is within the early-refresh
// window and should be refreshed before it expires.
func (s *IdentitySession) NeedsRefresh(now time.Time, threshold time.Duration) bool {
	return s.TimeToExpiry(now) <= threshold
}

// SameSubject reports whether two sessions belong to the same identity.
// A refresh replaces the session ID but never the subject; a subject change
// means a different user signed in.
func (s *IdentitySession) SameSubject(other *IdentitySession) bool {
	if other == nil {
		return false
	}
	return s.SubjectID == other.SubjectID
}
