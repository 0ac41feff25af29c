package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"session-hub/app/domain"
	mock_port "session-hub/app/mocks"
	"session-hub/app/port"
	"session-hub/app/utils/logger"
)

const (
	waitFor  = 2 * time.Second
	pollTick = 5 * time.Millisecond
)

func activeUser() *domain.AuthUser {
	return &domain.AuthUser{
		ID:       "user-1",
		Email:    "alice@example.com",
		Name:     "Alice",
		Role:     domain.UserRoleUser,
		IsActive: true,
	}
}

func session(id, subject string) *domain.IdentitySession {
	return &domain.IdentitySession{
		ID:        id,
		SubjectID: subject,
		Email:     "alice@example.com",
		Active:    true,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

type lifecycleFixture struct {
	identity *mock_port.MockIdentityProvider
	profile  *mock_port.MockProfileGateway
	cache    *mock_port.MockProfileCache
	clock    *fakeClock
	events   chan domain.SessionEvent
	usecase  *LifecycleUsecase
}

func newLifecycleFixture(t *testing.T, ctrl *gomock.Controller, policy domain.RetryPolicy) *lifecycleFixture {
	t.Helper()

	log, err := logger.New("error")
	require.NoError(t, err)

	f := &lifecycleFixture{
		identity: mock_port.NewMockIdentityProvider(ctrl),
		profile:  mock_port.NewMockProfileGateway(ctrl),
		cache:    mock_port.NewMockProfileCache(ctrl),
		clock:    newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		events:   make(chan domain.SessionEvent, 8),
	}

	f.identity.EXPECT().Events().Return((<-chan domain.SessionEvent)(f.events)).AnyTimes()

	f.usecase = NewLifecycleUsecase(f.identity, f.profile, f.cache, f.clock, policy, log)
	return f
}

func (f *lifecycleFixture) run(t *testing.T) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go f.usecase.Run(ctx)
	t.Cleanup(func() {
		cancel()
		f.usecase.Close()
	})
	return cancel
}

func TestLifecycle_HydrateFetchSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: activeUser()})
	f.cache.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, entry *domain.CacheEntry) {
			assert.Equal(t, "subject-1", entry.SessionSubjectID)
			assert.Equal(t, "user-1", entry.User.ID)
		})

	f.run(t)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseAuthenticated &&
			st.User != nil &&
			!st.IsLoading &&
			!st.IsFetchingUser
	}, waitFor, pollTick)

	st := f.usecase.State()
	assert.Equal(t, domain.OutcomeSuccess, st.LastOutcome)
	assert.True(t, st.IsAuthenticated())
}

func TestLifecycle_HydrateCacheHitSkipsFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-1")
	entry := domain.NewCacheEntry(*activeUser(), f.clock.Now().Add(-time.Minute), "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(entry)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	// No FetchProfile expectation: a call would fail the test.

	f.run(t)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseAuthenticated && !st.IsLoading
	}, waitFor, pollTick)

	st := f.usecase.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "user-1", st.User.ID)
}

func TestLifecycle_HydrateNoSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(nil, domain.ErrNoSession)
	f.cache.EXPECT().Clear(gomock.Any())

	f.run(t)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseNoSession && !st.IsLoading
	}, waitFor, pollTick)
}

func TestLifecycle_HydrateProviderUnreachableKeepsPaintedUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	entry := domain.NewCacheEntry(*activeUser(), f.clock.Now().Add(-time.Minute), "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(entry)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(nil, errors.New("connection refused"))

	f.run(t)

	require.Eventually(t, func() bool {
		return !f.usecase.State().IsLoading
	}, waitFor, pollTick)

	st := f.usecase.State()
	require.NotNil(t, st.User)
	assert.Equal(t, domain.PhaseAuthenticated, st.Phase)
}

func TestLifecycle_HydrateCacheSubjectMismatchClearsBeforeFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-2")
	entry := domain.NewCacheEntry(*activeUser(), f.clock.Now().Add(-time.Minute), "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(entry)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.cache.EXPECT().Clear(gomock.Any())

	other := activeUser()
	other.ID = "user-2"
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: other})
	f.cache.EXPECT().Save(gomock.Any(), gomock.Any())

	f.run(t)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseAuthenticated && st.User != nil && st.User.ID == "user-2"
	}, waitFor, pollTick)
}

func TestLifecycle_NotFoundTriggersForcedLogout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeNotFound})

	// Once on the fatal outcome, once in the logout itself.
	f.cache.EXPECT().Clear(gomock.Any()).Times(2)
	// The local revoke happens here and nowhere else: exactly one call.
	f.identity.EXPECT().SignOut(gomock.Any(), port.SignOutLocal).Return(nil).Times(1)
	f.profile.EXPECT().SignOutServer(gomock.Any()).Return(nil).Times(1)

	f.run(t)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseLoggedOut && st.Session == nil && st.User == nil
	}, waitFor, pollTick)

	assert.Equal(t, domain.OutcomeNotFound, f.usecase.State().LastOutcome)
}

func TestLifecycle_TransientRetriesThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.RetryPolicy{Attempts: 1, Backoff: 2 * time.Second})
	sess := session("sess-1", "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)

	gomock.InOrder(
		f.profile.EXPECT().
			FetchProfile(gomock.Any(), "alice@example.com").
			Return(domain.FetchResult{Outcome: domain.OutcomeTransient}),
		f.profile.EXPECT().
			FetchProfile(gomock.Any(), "alice@example.com").
			Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: activeUser()}),
	)
	f.cache.EXPECT().Save(gomock.Any(), gomock.Any())

	f.run(t)

	require.Eventually(t, func() bool {
		return f.usecase.State().Phase == domain.PhaseAwaitingRetry
	}, waitFor, pollTick)

	// Loading must survive the wait; the initial load has not resolved.
	assert.True(t, f.usecase.State().IsLoading)

	require.Eventually(t, func() bool {
		return f.clock.FireTimer()
	}, waitFor, pollTick)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseAuthenticated && st.User != nil && !st.IsLoading
	}, waitFor, pollTick)
}

func TestLifecycle_TransientBudgetExhaustedNeverLogsOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.RetryPolicy{Attempts: 1, Backoff: 2 * time.Second})
	sess := session("sess-1", "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeTransient}).
		Times(2)
	// No SignOut expectations: a forced logout would fail the test.

	f.run(t)

	require.Eventually(t, func() bool {
		return f.usecase.State().Phase == domain.PhaseAwaitingRetry
	}, waitFor, pollTick)

	require.Eventually(t, func() bool {
		return f.clock.FireTimer()
	}, waitFor, pollTick)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return !st.IsLoading && !st.IsFetchingUser
	}, waitFor, pollTick)

	st := f.usecase.State()
	assert.Equal(t, domain.OutcomeTransient, st.LastOutcome)
	assert.NotNil(t, st.Session)
	assert.Nil(t, st.User)
	assert.False(t, st.ForcedLogoutAllowed())
}

func TestLifecycle_TransientBudgetExhaustedPreservesPaintedUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.RetryPolicy{Attempts: 1, Backoff: 2 * time.Second})
	sess := session("sess-1", "subject-1")

	// An entry without a recorded subject is painted but cannot satisfy the
	// cache hit, so a fetch still runs with the user already in place.
	entry := domain.NewCacheEntry(*activeUser(), f.clock.Now().Add(-time.Minute), "")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(entry)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeTransient}).
		Times(2)
	// No Clear and no SignOut expectations: either call would fail the test.

	f.run(t)

	require.Eventually(t, func() bool {
		return f.usecase.State().Phase == domain.PhaseAwaitingRetry
	}, waitFor, pollTick)

	require.Eventually(t, func() bool {
		return f.clock.FireTimer()
	}, waitFor, pollTick)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return !st.IsLoading && !st.IsFetchingUser
	}, waitFor, pollTick)

	st := f.usecase.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "user-1", st.User.ID)
	assert.Equal(t, domain.PhaseAuthenticated, st.Phase)
	assert.Equal(t, domain.OutcomeTransient, st.LastOutcome)
	assert.False(t, st.ForcedLogoutAllowed())
}

func TestLifecycle_SessionGoneOverridesInFlightFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-1")

	fetchStarted := make(chan struct{})
	releaseFetch := make(chan struct{})

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		DoAndReturn(func(ctx context.Context, _ string) domain.FetchResult {
			close(fetchStarted)
			<-releaseFetch
			return domain.FetchResult{Outcome: domain.OutcomeSuccess, User: activeUser()}
		})

	f.cache.EXPECT().Clear(gomock.Any())
	f.identity.EXPECT().SignOut(gomock.Any(), port.SignOutLocal).Return(nil)
	f.profile.EXPECT().SignOutServer(gomock.Any()).Return(nil)

	f.run(t)

	<-fetchStarted
	f.events <- domain.SessionEvent{Type: domain.EventNone}

	require.Eventually(t, func() bool {
		return f.usecase.State().Phase == domain.PhaseLoggedOut
	}, waitFor, pollTick)

	// Releasing the stale fetch must not resurrect the user.
	close(releaseFetch)
	time.Sleep(50 * time.Millisecond)

	st := f.usecase.State()
	assert.Equal(t, domain.PhaseLoggedOut, st.Phase)
	assert.Nil(t, st.User)
	assert.Nil(t, st.Session)
}

func TestLifecycle_SubjectChangeClearsBeforeNewFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	first := session("sess-1", "subject-1")
	second := session("sess-2", "subject-2")
	second.Email = "bob@example.com"

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(first, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: activeUser()})
	f.cache.EXPECT().Save(gomock.Any(), gomock.Any()).AnyTimes()

	f.run(t)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Phase == domain.PhaseAuthenticated && st.User != nil
	}, waitFor, pollTick)

	bob := &domain.AuthUser{
		ID:       "user-2",
		Email:    "bob@example.com",
		Role:     domain.UserRoleUser,
		IsActive: true,
	}
	f.cache.EXPECT().Clear(gomock.Any())
	f.cache.EXPECT().Load(gomock.Any(), "subject-2").Return(nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "bob@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: bob})

	f.events <- domain.SessionEvent{Type: domain.EventChanged, Session: second}

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.User != nil && st.User.ID == "user-2"
	}, waitFor, pollTick)
}

func TestLifecycle_RefreshedSessionAdoptedForSameSubject(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: activeUser()})
	f.cache.EXPECT().Save(gomock.Any(), gomock.Any())

	f.run(t)

	require.Eventually(t, func() bool {
		return f.usecase.State().Phase == domain.PhaseAuthenticated
	}, waitFor, pollTick)

	refreshed := session("sess-2", "subject-1")
	f.usecase.AdoptSession(refreshed)

	require.Eventually(t, func() bool {
		st := f.usecase.State()
		return st.Session != nil && st.Session.ID == "sess-2"
	}, waitFor, pollTick)

	// A hand-off for a different subject is stale and must be dropped.
	stranger := session("sess-3", "subject-9")
	f.usecase.AdoptSession(stranger)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, "sess-2", f.usecase.State().Session.ID)
}

func TestLifecycle_SignOutNeverFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())
	sess := session("sess-1", "subject-1")

	f.cache.EXPECT().Load(gomock.Any(), "").Return(nil)
	f.identity.EXPECT().GetSession(gomock.Any()).Return(sess, nil)
	f.profile.EXPECT().
		FetchProfile(gomock.Any(), "alice@example.com").
		Return(domain.FetchResult{Outcome: domain.OutcomeSuccess, User: activeUser()})
	f.cache.EXPECT().Save(gomock.Any(), gomock.Any())

	f.run(t)

	require.Eventually(t, func() bool {
		return f.usecase.State().Phase == domain.PhaseAuthenticated
	}, waitFor, pollTick)

	// Both network calls fail; the local clear must happen regardless.
	f.cache.EXPECT().Clear(gomock.Any())
	f.identity.EXPECT().
		SignOut(gomock.Any(), port.SignOutLocal).
		Return(errors.New("kratos down"))
	f.profile.EXPECT().
		SignOutServer(gomock.Any()).
		Return(errors.New("backend down"))

	f.usecase.SignOut(context.Background())

	st := f.usecase.State()
	assert.Equal(t, domain.PhaseLoggedOut, st.Phase)
	assert.Nil(t, st.Session)
	assert.Nil(t, st.User)
}

func TestLifecycle_SignInWithGoogle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newLifecycleFixture(t, ctrl, domain.DefaultRetryPolicy())

	f.identity.EXPECT().
		OAuthRedirectURL(gomock.Any(), "google", "/dashboard").
		Return("https://accounts.example.com/oauth", nil)

	url, err := f.usecase.SignInWithGoogle(context.Background(), "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, "https://accounts.example.com/oauth", url)

	f.identity.EXPECT().
		OAuthRedirectURL(gomock.Any(), "google", "/").
		Return("", errors.New("flow creation failed"))

	_, err = f.usecase.SignInWithGoogle(context.Background(), "/")
	assert.Error(t, err)
}
