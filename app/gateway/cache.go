package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"session-hub/app/domain"
	"session-hub/app/port"
)

// ProfileCache persists the last-known user profile in a small durable
// key/value store so it survives restarts. It implements port.ProfileCache.
//
// The contract is deliberately forgiving: Load answers nil instead of
// erroring on any corruption, Save swallows storage failures, Clear is
// idempotent. The cache is an optimization, never a source of truth.
type ProfileCache struct {
	storage port.Storage
	clock   port.Clock
	ttl     time.Duration
	key     string
	logger  *slog.Logger
}

// NewProfileCache creates a cache over the given durable storage.
func NewProfileCache(storage port.Storage, clock port.Clock, ttl time.Duration, logger *slog.Logger) *ProfileCache {
	if ttl <= 0 {
		ttl = domain.CacheTTL
	}

	return &ProfileCache{
		storage: storage,
		clock:   clock,
		ttl:     ttl,
		key:     domain.CacheKey,
		logger:  logger.With("component", "profile_cache"),
	}
}

// Load returns a valid, non-expired entry for the given subject, or nil.
// Invalid entries are removed so they cannot be half-trusted later.
func (c *ProfileCache) Load(ctx context.Context, subjectID string) *domain.CacheEntry {
	raw, err := c.storage.Get(ctx, c.key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			c.logger.Debug("cache read failed", "error", err)
		}
		return nil
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("discarding unparsable cache entry", "error", err)
		c.Clear(ctx)
		return nil
	}

	if !entry.Valid(c.clock.Now(), c.ttl, subjectID) {
		c.logger.Debug("discarding invalid cache entry",
			"cached_at", entry.CachedAt,
			"cached_subject", entry.SessionSubjectID,
			"current_subject", subjectID)
		c.Clear(ctx)
		return nil
	}

	return &entry
}

// Save persists the entry. Best effort: a full store or an unreachable
// backend only costs the next start a profile fetch.
func (c *ProfileCache) Save(ctx context.Context, entry *domain.CacheEntry) {
	if entry == nil {
		return
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "error", err)
		return
	}

	if err := c.storage.Set(ctx, c.key, raw); err != nil {
		c.logger.Debug("cache write failed", "error", err)
	}
}

// Clear removes the entry. Removing a missing entry is not an error.
func (c *ProfileCache) Clear(ctx context.Context) {
	if err := c.storage.Delete(ctx, c.key); err != nil {
		c.logger.Debug("cache delete failed", "error", err)
	}
}
