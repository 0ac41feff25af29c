package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"session-hub/app/domain"
	"session-hub/app/port"
)

// SessionSink is the slice of the lifecycle controller the refresh
// coordinator talks back to.
type SessionSink interface {
	CurrentSession() *domain.IdentitySession
	AdoptSession(sess *domain.IdentitySession)
	RequestForcedLogout()
}

// RefreshUsecase keeps the identity token fresh. It guarantees at most one
// in-flight refresh at a time and triggers refreshes from two sources: a
// periodic timer while a session exists, and host-visibility transitions.
// Both funnel through RefreshIfNeeded.
type RefreshUsecase struct {
	identity   port.IdentityProvider
	cache      port.ProfileCache
	clock      port.Clock
	visibility port.VisibilityObserver
	sink       SessionSink
	interval   time.Duration
	threshold  time.Duration
	logger     *slog.Logger

	inFlight atomic.Bool
}

// NewRefreshUsecase creates the coordinator. interval is the periodic
// trigger cadence; threshold is the early-refresh window: a session whose
// remaining lifetime exceeds it is left alone.
func NewRefreshUsecase(
	identity port.IdentityProvider,
	cache port.ProfileCache,
	clock port.Clock,
	visibility port.VisibilityObserver,
	sink SessionSink,
	interval, threshold time.Duration,
	logger *slog.Logger,
) *RefreshUsecase {
	return &RefreshUsecase{
		identity:   identity,
		cache:      cache,
		clock:      clock,
		visibility: visibility,
		sink:       sink,
		interval:   interval,
		threshold:  threshold,
		logger:     logger.With("component", "refresh_usecase"),
	}
}

// Run drives the two trigger sources until ctx is cancelled.
func (u *RefreshUsecase) Run(ctx context.Context) error {
	ticker := u.clock.NewTicker(u.interval)
	defer ticker.Stop()

	var visible <-chan struct{}
	if u.visibility != nil {
		visible = u.visibility.Visible()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if u.sink.CurrentSession() != nil {
				u.RefreshIfNeeded(ctx)
			}
		case <-visible:
			u.RefreshIfNeeded(ctx)
		}
	}
}

// RefreshIfNeeded refreshes the session if it is inside the early-refresh
// window. Callers arriving while a refresh is in flight return immediately:
// cooperative de-duplication, not a guarantee of eventual execution.
func (u *RefreshUsecase) RefreshIfNeeded(ctx context.Context) {
	u.refresh(ctx, false)
}

// ForceRefresh refreshes regardless of remaining session lifetime. Used by
// the controller's manual refresh operation.
func (u *RefreshUsecase) ForceRefresh(ctx context.Context) {
	u.refresh(ctx, true)
}

func (u *RefreshUsecase) refresh(ctx context.Context, force bool) {
	if !u.inFlight.CompareAndSwap(false, true) {
		return
	}
	// Released on every exit path; a panic below must not leave the flag
	// held forever.
	defer u.inFlight.Store(false)

	sess := u.sink.CurrentSession()
	if sess == nil {
		return
	}

	if !force && !sess.NeedsRefresh(u.clock.Now(), u.threshold) {
		return
	}

	refreshed, err := u.identity.Refresh(ctx)
	if err != nil {
		u.handleFailure(ctx, err)
		return
	}

	u.sink.AdoptSession(refreshed)

	// A token refresh does not change user data; only re-stamp the subject
	// binding on the cached entry.
	if entry := u.cache.Load(ctx, refreshed.SubjectID); entry != nil {
		entry.SessionSubjectID = refreshed.SubjectID
		u.cache.Save(ctx, entry)
	}

	u.logger.Info("session refreshed",
		"session_id", refreshed.ID,
		"expires_at", refreshed.ExpiresAt)
}

// handleFailure decides whether a failed refresh escalates. Only a
// provider-confirmed absent session may trigger the forced-logout path; as
// long as a session exists (or its state is unknown) it remains
// authoritative until it actually expires.
func (u *RefreshUsecase) handleFailure(ctx context.Context, refreshErr error) {
	cur, err := u.identity.GetSession(ctx)
	if errors.Is(err, domain.ErrNoSession) || (err == nil && cur == nil) {
		u.logger.Warn("refresh failed and no session remains",
			"error", refreshErr)
		u.sink.RequestForcedLogout()
		return
	}

	u.logger.Warn("session refresh failed, existing session stays authoritative",
		"error", refreshErr)
}
