package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"session-hub/app/domain"
	"session-hub/app/port"
)

// fetchSettled carries a settled profile fetch back into the run loop. The
// sequence number identifies the attempt; results from superseded attempts
// are dropped without touching state.
type fetchSettled struct {
	seq    uint64
	result domain.FetchResult
}

// Refresher is the slice of the refresh coordinator the controller needs
// for its manual refresh operation.
type Refresher interface {
	ForceRefresh(ctx context.Context)
}

// LifecycleUsecase is the session lifecycle controller. It owns the
// reactive state, reacts to identity-provider events by consulting the
// cache and the profile gateway, and decides when a forced logout may fire.
// It implements port.SessionManager.
//
// All identity events, fetch results, retry ticks and refresh callbacks are
// funneled through a single run loop, so they are applied strictly in
// arrival order; a later sign-out always overrides an in-flight fetch from
// an earlier sign-in.
type LifecycleUsecase struct {
	identity  port.IdentityProvider
	profile   port.ProfileGateway
	cache     port.ProfileCache
	clock     port.Clock
	policy    domain.RetryPolicy
	refresher Refresher
	logger    *slog.Logger

	mu          sync.RWMutex
	st          domain.LifecycleState
	fetchSeq    uint64
	fetchCancel context.CancelFunc
	retriesUsed int

	fetchResults chan fetchSettled
	refreshedCh  chan *domain.IdentitySession
	logoutCheck  chan struct{}

	// run-loop only
	retryTimer port.Timer
	retryC     <-chan time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// NewLifecycleUsecase creates the controller with its collaborators
// injected.
func NewLifecycleUsecase(
	identity port.IdentityProvider,
	profile port.ProfileGateway,
	cache port.ProfileCache,
	clock port.Clock,
	policy domain.RetryPolicy,
	logger *slog.Logger,
) *LifecycleUsecase {
	return &LifecycleUsecase{
		identity:     identity,
		profile:      profile,
		cache:        cache,
		clock:        clock,
		policy:       policy,
		logger:       logger.With("component", "lifecycle_usecase"),
		st:           domain.LifecycleState{Phase: domain.PhaseNoSession},
		fetchResults: make(chan fetchSettled, 1),
		refreshedCh:  make(chan *domain.IdentitySession, 1),
		logoutCheck:  make(chan struct{}, 1),
		closed:       make(chan struct{}),
	}
}

// BindRefresher wires the refresh coordinator after construction; the
// coordinator needs the controller as its session sink, so the two are
// created first and bound second.
func (u *LifecycleUsecase) BindRefresher(r Refresher) {
	u.refresher = r
}

// State returns a snapshot of the current lifecycle state. The contained
// session and user are copies; mutating them does not affect the
// controller.
func (u *LifecycleUsecase) State() domain.LifecycleState {
	u.mu.RLock()
	defer u.mu.RUnlock()

	st := u.st
	if u.st.Session != nil {
		sess := *u.st.Session
		st.Session = &sess
	}
	if u.st.User != nil {
		user := *u.st.User
		st.User = &user
	}
	return st
}

// CurrentSession returns the session reference held right now, or nil.
func (u *LifecycleUsecase) CurrentSession() *domain.IdentitySession {
	return u.State().Session
}

// AdoptSession hands a refreshed session to the run loop. Called by the
// refresh coordinator; non-blocking, a pending hand-off is replaced.
func (u *LifecycleUsecase) AdoptSession(sess *domain.IdentitySession) {
	for {
		select {
		case u.refreshedCh <- sess:
			return
		default:
		}
		select {
		case <-u.refreshedCh:
		default:
		}
	}
}

// RequestForcedLogout asks the run loop to re-evaluate the forced-logout
// guard. The guard itself decides whether anything happens.
func (u *LifecycleUsecase) RequestForcedLogout() {
	select {
	case u.logoutCheck <- struct{}{}:
	default:
	}
}

// Run hydrates the session and then processes events until ctx is
// cancelled or Close is called.
func (u *LifecycleUsecase) Run(ctx context.Context) error {
	u.hydrate(ctx)

	events := u.identity.Events()
	for {
		select {
		case <-ctx.Done():
			u.cancelFetch()
			return ctx.Err()
		case <-u.closed:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			u.handleEvent(ctx, ev)
		case res := <-u.fetchResults:
			u.handleFetchResult(ctx, res)
		case <-u.retryC:
			u.handleRetry(ctx)
		case sess := <-u.refreshedCh:
			u.adoptRefreshed(sess)
		case <-u.logoutCheck:
			u.maybeForceLogout(ctx)
		}
	}
}

// hydrate performs the mount sequence: paint the cached user optimistically
// while asking the provider for the current session, then reconcile.
func (u *LifecycleUsecase) hydrate(ctx context.Context) {
	u.setState(func(st *domain.LifecycleState) {
		st.Phase = domain.PhaseHydrating
		st.IsLoading = true
	})

	// Optimistic paint. The subject is unknown until the provider answers,
	// so only TTL and structure are checked here.
	paintedSubject := ""
	if entry := u.cache.Load(ctx, ""); entry != nil {
		user := entry.User
		paintedSubject = entry.SessionSubjectID
		u.setState(func(st *domain.LifecycleState) {
			st.User = &user
		})
		u.logger.Debug("painted cached user", "user_id", user.ID)
	}

	sess, err := u.identity.GetSession(ctx)
	switch {
	case errors.Is(err, domain.ErrNoSession):
		// Confirmed absence resolves the initial load.
		u.logger.Info("no session at start")
		u.cache.Clear(ctx)
		u.setState(func(st *domain.LifecycleState) {
			st.Phase = domain.PhaseNoSession
			st.User = nil
			st.IsLoading = false
		})
	case err != nil:
		// Provider unreachable: session state unknown. Keep whatever was
		// painted; destroying state on an unreachable provider would
		// conflate a network failure with a confirmed sign-out.
		u.logger.Warn("could not read session at start", "error", err)
		u.setState(func(st *domain.LifecycleState) {
			st.IsLoading = false
			if st.User == nil {
				st.Phase = domain.PhaseNoSession
			} else {
				st.Phase = domain.PhaseAuthenticated
			}
		})
	default:
		u.adoptInitialSession(ctx, sess, paintedSubject)
	}
}

func (u *LifecycleUsecase) adoptInitialSession(ctx context.Context, sess *domain.IdentitySession, paintedSubject string) {
	u.setState(func(st *domain.LifecycleState) {
		st.Session = sess
	})

	if paintedSubject != "" && paintedSubject == sess.SubjectID {
		// Cache accepted; no fetch.
		u.logger.Info("cache hit for current subject, skipping fetch",
			"subject_id", sess.SubjectID)
		u.setState(func(st *domain.LifecycleState) {
			st.Phase = domain.PhaseAuthenticated
			st.IsLoading = false
		})
		return
	}

	if paintedSubject != "" {
		// The painted user belongs to someone else. Clear before any fetch
		// so cross-user data is never observable.
		u.logger.Warn("cached user belongs to a different subject, discarding",
			"cached_subject", paintedSubject,
			"current_subject", sess.SubjectID)
		u.cache.Clear(ctx)
		u.setState(func(st *domain.LifecycleState) {
			st.User = nil
		})
	}

	u.startFetch(ctx, sess)
}

// handleEvent applies one identity-provider notification.
func (u *LifecycleUsecase) handleEvent(ctx context.Context, ev domain.SessionEvent) {
	if ev.Type == domain.EventNone || ev.Session == nil {
		u.handleSessionGone(ctx)
		return
	}

	cur := u.State().Session
	if cur != nil && cur.SameSubject(ev.Session) {
		// Same subject, new token bundle: update the reference only.
		u.setState(func(st *domain.LifecycleState) {
			st.Session = ev.Session
		})
		return
	}

	// A different user signed in, or a session appeared where there was
	// none. Cancel whatever was in flight and clear synchronously before
	// any new fetch, so no cross-user state is ever observable.
	u.cancelFetch()
	u.stopRetry()

	if cur != nil {
		u.logger.Info("session subject changed",
			"old_subject", cur.SubjectID,
			"new_subject", ev.Session.SubjectID)
		u.cache.Clear(ctx)
	}

	u.setState(func(st *domain.LifecycleState) {
		st.Session = ev.Session
		st.User = nil
		st.Phase = domain.PhaseHydrating
		st.IsLoading = true
		st.LastOutcome = domain.OutcomeNone
	})
	u.mu.Lock()
	u.retriesUsed = 0
	u.mu.Unlock()

	if entry := u.cache.Load(ctx, ev.Session.SubjectID); entry != nil {
		user := entry.User
		u.setState(func(st *domain.LifecycleState) {
			st.User = &user
			st.Phase = domain.PhaseAuthenticated
			st.IsLoading = false
		})
		return
	}

	u.startFetch(ctx, ev.Session)
}

// handleSessionGone reacts to the provider reporting no session. A later
// none-event must override an in-flight fetch from an earlier sign-in.
func (u *LifecycleUsecase) handleSessionGone(ctx context.Context) {
	st := u.State()
	if st.Session == nil && st.User == nil {
		u.setState(func(s *domain.LifecycleState) {
			s.Phase = domain.PhaseNoSession
			s.IsLoading = false
		})
		return
	}

	u.logger.Info("identity provider reports no session")
	u.stopRetry()
	u.performLogout(ctx)
}

// startFetch begins a profile fetch for the session's email, superseding
// any fetch already in flight. Supersede, not queue: the previous attempt
// is cancelled and its eventual result discarded by sequence number.
func (u *LifecycleUsecase) startFetch(ctx context.Context, sess *domain.IdentitySession) {
	u.mu.Lock()
	u.fetchSeq++
	seq := u.fetchSeq
	if u.fetchCancel != nil {
		u.fetchCancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	u.fetchCancel = cancel
	u.st.IsFetchingUser = true
	email := sess.Email
	u.mu.Unlock()

	go func() {
		res := u.profile.FetchProfile(fctx, email)
		select {
		case u.fetchResults <- fetchSettled{seq: seq, result: res}:
		case <-u.closed:
		}
	}()
}

func (u *LifecycleUsecase) handleFetchResult(ctx context.Context, settled fetchSettled) {
	u.mu.Lock()
	if settled.seq != u.fetchSeq {
		// Superseded or cancelled; state must not be touched.
		u.mu.Unlock()
		return
	}
	u.st.IsFetchingUser = false
	u.fetchCancel = nil
	sess := u.st.Session
	u.mu.Unlock()

	if sess == nil {
		return
	}

	switch settled.result.Outcome {
	case domain.OutcomeSuccess:
		user := settled.result.User
		u.setState(func(st *domain.LifecycleState) {
			st.User = user
			st.Phase = domain.PhaseAuthenticated
			st.IsLoading = false
			st.LastOutcome = domain.OutcomeSuccess
		})
		u.mu.Lock()
		u.retriesUsed = 0
		u.mu.Unlock()
		u.cache.Save(ctx, domain.NewCacheEntry(*user, u.clock.Now(), sess.SubjectID))
		u.logger.Info("profile fetch succeeded", "user_id", user.ID)

	case domain.OutcomeNotFound, domain.OutcomeInactive:
		u.logger.Warn("fatal profile outcome", "outcome", settled.result.Outcome)
		u.cache.Clear(ctx)
		u.setState(func(st *domain.LifecycleState) {
			st.User = nil
			st.IsLoading = false
			st.LastOutcome = settled.result.Outcome
		})
		u.maybeForceLogout(ctx)

	case domain.OutcomeTransient:
		u.handleTransient(settled.result.Outcome)
	}
}

func (u *LifecycleUsecase) handleTransient(outcome domain.FetchOutcome) {
	u.mu.Lock()
	retriesLeft := u.retriesUsed < u.policy.Attempts
	if retriesLeft {
		u.retriesUsed++
	}
	u.mu.Unlock()

	u.setState(func(st *domain.LifecycleState) {
		st.LastOutcome = outcome
	})

	if retriesLeft {
		u.logger.Info("transient profile outcome, scheduling retry",
			"backoff", u.policy.Backoff)
		u.setState(func(st *domain.LifecycleState) {
			st.Phase = domain.PhaseAwaitingRetry
		})
		u.retryTimer = u.clock.NewTimer(u.policy.Backoff)
		u.retryC = u.retryTimer.C()
		return
	}

	// Retry budget exhausted: stop waiting but preserve whatever user was
	// held before. A transient failure never destroys authenticated state.
	u.logger.Warn("transient profile outcome, retry budget exhausted")
	u.setState(func(st *domain.LifecycleState) {
		st.IsLoading = false
		if st.User != nil {
			st.Phase = domain.PhaseAuthenticated
		}
	})
}

func (u *LifecycleUsecase) handleRetry(ctx context.Context) {
	u.retryTimer = nil
	u.retryC = nil

	st := u.State()
	if st.Session == nil || st.IsFetchingUser {
		return
	}

	u.logger.Info("retrying profile fetch")
	u.startFetch(ctx, st.Session)
}

// adoptRefreshed installs a session delivered by the refresh coordinator.
// A refresh never changes the subject; if the held session is gone or
// belongs to someone else the hand-off is stale and dropped.
func (u *LifecycleUsecase) adoptRefreshed(sess *domain.IdentitySession) {
	u.setState(func(st *domain.LifecycleState) {
		if st.Session != nil && st.Session.SameSubject(sess) {
			st.Session = sess
		}
	})
}

// maybeForceLogout fires the system-initiated logout if and only if the
// guard holds. The guard is the single most failure-sensitive rule here:
// it is what keeps a network blip from logging out a valid session.
func (u *LifecycleUsecase) maybeForceLogout(ctx context.Context) {
	st := u.State()
	if !st.ForcedLogoutAllowed() {
		return
	}

	u.logger.Warn("forced logout", "last_outcome", st.LastOutcome)
	u.stopRetry()
	u.performLogout(ctx)
}

// performLogout destroys local state, then revokes the provider session and
// the server-held cookies. Local state goes first so consumers observe the
// logged-out state even if the network calls are slow or fail. Safe to call
// from outside the run loop; the retry timer is loop-owned, and a retry
// firing after this finds no session and does nothing.
func (u *LifecycleUsecase) performLogout(ctx context.Context) {
	u.cancelFetch()

	u.setState(func(st *domain.LifecycleState) {
		st.Session = nil
		st.User = nil
		st.IsLoading = false
		st.IsFetchingUser = false
		st.Phase = domain.PhaseLoggedOut
	})
	u.cache.Clear(ctx)

	if err := u.identity.SignOut(ctx, port.SignOutLocal); err != nil {
		u.logger.Warn("provider sign-out failed", "error", err)
	}
	if err := u.profile.SignOutServer(ctx); err != nil {
		u.logger.Warn("server sign-out failed", "error", err)
	}
}

// SignInWithGoogle requests the provider's OAuth redirect. Failures
// propagate: initiating sign-in has no safe local fallback.
func (u *LifecycleUsecase) SignInWithGoogle(ctx context.Context, returnTo string) (string, error) {
	return u.identity.OAuthRedirectURL(ctx, "google", returnTo)
}

// SignOut is the user-initiated sign-out. It never fails: local state is
// cleared before any network call so the consumer can navigate away
// immediately.
func (u *LifecycleUsecase) SignOut(ctx context.Context) {
	u.logger.Info("user sign-out")
	u.performLogout(ctx)
}

// RefreshSession manually triggers a token refresh via the coordinator.
func (u *LifecycleUsecase) RefreshSession(ctx context.Context) {
	if u.refresher == nil {
		return
	}
	u.refresher.ForceRefresh(ctx)
}

// Close cancels any outstanding fetch and stops the run loop.
func (u *LifecycleUsecase) Close() {
	u.closeOnce.Do(func() {
		close(u.closed)
		u.cancelFetch()
	})
}

func (u *LifecycleUsecase) cancelFetch() {
	u.mu.Lock()
	defer u.mu.Unlock()

	// Bump the sequence so a result that already settled is dropped too.
	u.fetchSeq++
	if u.fetchCancel != nil {
		u.fetchCancel()
		u.fetchCancel = nil
	}
	u.st.IsFetchingUser = false
}

func (u *LifecycleUsecase) stopRetry() {
	if u.retryTimer != nil {
		u.retryTimer.Stop()
		u.retryTimer = nil
		u.retryC = nil
	}
}

func (u *LifecycleUsecase) setState(mutate func(*domain.LifecycleState)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	mutate(&u.st)
}
