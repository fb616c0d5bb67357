package token_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/session/memstore"
	"github.com/jrsteele09/go-auth-client/token"
)

// fakeRefresher counts exchange calls and can be made slow, or held open on
// a channel, so concurrent callers really overlap.
type fakeRefresher struct {
	calls   int32
	delay   time.Duration
	entered chan struct{}
	release chan struct{}
	ctxErr  error
	pair    session.Pair
	err     error
}

func (f *fakeRefresher) Refresh(ctx context.Context, _ string) (session.Pair, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.entered != nil {
		close(f.entered)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.release != nil {
		<-f.release
	}
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return session.Pair{}, f.err
	}
	return f.pair, nil
}

type fakeLogoutHandler struct {
	mu    sync.Mutex
	calls int
	store session.Store
}

func (f *fakeLogoutHandler) ForceLogout(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.store != nil {
		_ = session.ClearPair(ctx, f.store)
	}
}

func (f *fakeLogoutHandler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newManager(t *testing.T, store session.Store, refresher token.Refresher, logout token.LogoutHandler, options ...token.Option) *token.Manager {
	t.Helper()
	m, err := token.New(store, refresher, logout, options...)
	require.NoError(t, err)
	return m
}

func TestValidateFreshToken(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, memstore.New(), &fakeRefresher{}, &fakeLogoutHandler{},
		token.WithNowFunc(func() time.Time { return now }))

	fresh := mintToken(t, "user-1", now, now.Add(time.Hour))
	require.True(t, m.Validate(fresh))
}

func TestValidateExpiredToken(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, memstore.New(), &fakeRefresher{}, &fakeLogoutHandler{},
		token.WithNowFunc(func() time.Time { return now }))

	expired := mintToken(t, "user-1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.False(t, m.Validate(expired))
}

func TestValidateRefreshThresholdBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m := newManager(t, memstore.New(), &fakeRefresher{}, &fakeLogoutHandler{},
		token.WithNowFunc(func() time.Time { return now }))

	// Exactly at the threshold is already invalid.
	atThreshold := mintToken(t, "user-1", now.Add(-time.Hour), now.Add(token.DefaultRefreshThreshold))
	require.False(t, m.Validate(atThreshold))

	justOutside := mintToken(t, "user-1", now.Add(-time.Hour), now.Add(token.DefaultRefreshThreshold+time.Second))
	require.True(t, m.Validate(justOutside))
}

func TestValidateUnparsableToken(t *testing.T) {
	m := newManager(t, memstore.New(), &fakeRefresher{}, &fakeLogoutHandler{})
	require.False(t, m.Validate("garbage"))
}

func TestRefreshPersistsBeforeResolving(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SetMany(ctx, map[string]string{
		session.AccessTokenKey:  "stale",
		session.RefreshTokenKey: "R1",
	}))

	refresher := &fakeRefresher{pair: session.Pair{AccessToken: "T2", RefreshToken: "R2"}}
	m := newManager(t, store, refresher, &fakeLogoutHandler{})

	newToken, err := m.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, "T2", newToken)

	accessToken, ok, err := store.Get(ctx, session.AccessTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "T2", accessToken)

	refreshToken, ok, err := store.Get(ctx, session.RefreshTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "R2", refreshToken)
}

func TestRefreshSingleFlight(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SetMany(ctx, map[string]string{session.RefreshTokenKey: "R1"}))

	refresher := &fakeRefresher{
		delay: 50 * time.Millisecond,
		pair:  session.Pair{AccessToken: "T2", RefreshToken: "R2"},
	}
	m := newManager(t, store, refresher, &fakeLogoutHandler{store: store})

	const callers = 25
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Refresh(ctx)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls), "exactly one network refresh for all concurrent callers")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "T2", results[i], "every caller observes the same outcome")
	}
}

func TestRefreshFailureSharedByAllCallers(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SetMany(ctx, map[string]string{
		session.AccessTokenKey:  "stale",
		session.RefreshTokenKey: "R1",
	}))

	refresher := &fakeRefresher{delay: 50 * time.Millisecond, err: errors.New("boom")}
	logout := &fakeLogoutHandler{store: store}
	m := newManager(t, store, refresher, logout)

	const callers = 10
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Refresh(ctx)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&refresher.calls))
	for i := 0; i < callers; i++ {
		require.ErrorIs(t, errs[i], token.ErrRefreshFailed)
	}

	require.Equal(t, 1, logout.count(), "forced logout runs once for the shared failure")

	_, ok, err := store.Get(ctx, session.AccessTokenKey)
	require.NoError(t, err)
	require.False(t, ok, "forced logout cleared the persisted pair")
}

func TestRefreshWithoutStoredRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	logout := &fakeLogoutHandler{store: store}
	refresher := &fakeRefresher{}
	m := newManager(t, store, refresher, logout)

	_, err := m.Refresh(ctx)
	require.ErrorIs(t, err, token.ErrRefreshFailed)
	require.EqualValues(t, 0, atomic.LoadInt32(&refresher.calls), "no network call without a refresh token")
	require.Equal(t, 1, logout.count())
}

func TestRefreshSurvivesInitiatorCancellation(t *testing.T) {
	store := memstore.New()
	require.NoError(t, store.SetMany(context.Background(), map[string]string{session.RefreshTokenKey: "R1"}))

	refresher := &fakeRefresher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		pair:    session.Pair{AccessToken: "T2", RefreshToken: "R2"},
	}
	logout := &fakeLogoutHandler{store: store}
	m := newManager(t, store, refresher, logout)

	initiatorCtx, cancel := context.WithCancel(context.Background())

	type outcome struct {
		token string
		err   error
	}
	initiatorDone := make(chan outcome, 1)
	go func() {
		tok, err := m.Refresh(initiatorCtx)
		initiatorDone <- outcome{tok, err}
	}()

	<-refresher.entered

	// A second caller joins the in-flight exchange with a live context.
	joinerDone := make(chan outcome, 1)
	go func() {
		tok, err := m.Refresh(context.Background())
		joinerDone <- outcome{tok, err}
	}()

	// The initiator walks away mid-flight; the exchange must still complete.
	cancel()
	close(refresher.release)

	joiner := <-joinerDone
	require.NoError(t, joiner.err, "the joined caller gets the refresh outcome, not the initiator's cancellation")
	require.Equal(t, "T2", joiner.token)

	initiator := <-initiatorDone
	require.NoError(t, initiator.err)
	require.Equal(t, "T2", initiator.token)

	require.NoError(t, refresher.ctxErr, "the exchange runs on a context detached from the initiator")
	require.Equal(t, 0, logout.count())

	refreshToken, ok, err := store.Get(context.Background(), session.RefreshTokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "R2", refreshToken, "the session survived and the rotated pair was persisted")
}

// failingGetStore errors on every read.
type failingGetStore struct {
	session.Store
}

func (f *failingGetStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk read failed")
}

func TestRefreshStorageReadFailure(t *testing.T) {
	refresher := &fakeRefresher{}
	logout := &fakeLogoutHandler{}
	m := newManager(t, &failingGetStore{Store: memstore.New()}, refresher, logout)

	_, err := m.Refresh(context.Background())
	require.ErrorIs(t, err, token.ErrRefreshFailed, "a storage read failure is a refresh failure like any other")
	require.EqualValues(t, 0, atomic.LoadInt32(&refresher.calls))
	require.Equal(t, 1, logout.count())
}

func TestSequentialRefreshesAreSeparateFlights(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SetMany(ctx, map[string]string{session.RefreshTokenKey: "R1"}))

	refresher := &fakeRefresher{pair: session.Pair{AccessToken: "T2", RefreshToken: "R2"}}
	m := newManager(t, store, refresher, &fakeLogoutHandler{})

	_, err := m.Refresh(ctx)
	require.NoError(t, err)
	_, err = m.Refresh(ctx)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&refresher.calls), "a settled flight does not absorb later refreshes")
}
