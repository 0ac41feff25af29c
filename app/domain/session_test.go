package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentitySession(t *testing.T) {
	expires := time.Now().Add(time.Hour)

	sess, err := NewIdentitySession("sess-1", "subject-1", "alice@example.com", expires)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "subject-1", sess.SubjectID)
	assert.True(t, sess.Active)

	_, err = NewIdentitySession("", "subject-1", "alice@example.com", expires)
	assert.Error(t, err)

	_, err = NewIdentitySession("sess-1", "", "alice@example.com", expires)
	assert.Error(t, err)
}

func TestIdentitySession_NeedsRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	threshold := 5 * time.Minute

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "well outside the window",
			expiresAt: now.Add(time.Hour),
			want:      false,
		},
		{
			name:      "inside the window",
			expiresAt: now.Add(2 * time.Minute),
			want:      true,
		},
		{
			name:      "exactly at the window boundary",
			expiresAt: now.Add(threshold),
			want:      true,
		},
		{
			name:      "already expired",
			expiresAt: now.Add(-time.Minute),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &IdentitySession{ID: "s", SubjectID: "sub", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, sess.NeedsRefresh(now, threshold))
		})
	}
}

func TestIdentitySession_SameSubject(t *testing.T) {
	a := &IdentitySession{ID: "s1", SubjectID: "sub-1"}
	refreshed := &IdentitySession{ID: "s2", SubjectID: "sub-1"}
	other := &IdentitySession{ID: "s3", SubjectID: "sub-2"}

	assert.True(t, a.SameSubject(refreshed))
	assert.False(t, a.SameSubject(other))
	assert.False(t, a.SameSubject(nil))
}

func TestIdentitySession_TimeToExpiry(t *testing.T) {
	now := time.Now()

	sess := &IdentitySession{ID: "s", SubjectID: "sub", ExpiresAt: now.Add(time.Minute)}
	assert.Equal(t, time.Minute, sess.TimeToExpiry(now))

	expired := &IdentitySession{ID: "s", SubjectID: "sub", ExpiresAt: now.Add(-time.Minute)}
	assert.Equal(t, time.Duration(0), expired.TimeToExpiry(now))
}
