// Package token keeps a bearer-token session fresh on the client side:
// it decides when an access token is too close to expiry to be trusted for
// another request and performs the single-flight refresh exchange.
package token

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-auth-client/session"
)

// ErrRefreshFailed is returned when the refresh exchange fails. By the time
// a caller observes it, the forced-logout path has already run.
var ErrRefreshFailed = errors.New("failed to refresh authentication token")

// DefaultRefreshThreshold is how close to expiry a token may get before it
// is treated as invalid and refreshed pre-emptively.
const DefaultRefreshThreshold = 5 * time.Minute

// refreshFlightKey is the single-flight group key. One key means one
// outbound refresh call system-wide, no matter how many callers.
const refreshFlightKey = "refresh"

// refreshTimeout bounds the detached refresh exchange.
const refreshTimeout = 10 * time.Second

// Refresher exchanges a refresh token for a new token pair. Implemented by
// api.RefreshEndpoint with a plain unauthenticated HTTP call.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (session.Pair, error)
}

// LogoutHandler runs the forced-logout path after an irrecoverable auth
// failure. It must never fail.
type LogoutHandler interface {
	ForceLogout(ctx context.Context)
}

// Manager validates access-token freshness and performs single-flight token
// refresh. The only state it owns beyond its dependencies is the transient
// in-flight handle inside the singleflight group, which is cleared as soon
// as a refresh settles.
type Manager struct {
	store            session.Store
	refresher        Refresher
	onAuthFailure    LogoutHandler
	refreshThreshold time.Duration
	flight           singleflight.Group
	nowFunc          func() time.Time
	log              zerolog.Logger
}

// Option defines a function type to modify the Manager instance.
type Option func(*Manager)

// WithRefreshThreshold overrides the pre-expiry refresh threshold.
func WithRefreshThreshold(threshold time.Duration) Option {
	return func(m *Manager) {
		m.refreshThreshold = threshold
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithLogger sets the logger, which is silent by default.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// New creates a token Manager.
func New(store session.Store, refresher Refresher, onAuthFailure LogoutHandler, options ...Option) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[token.New] store is required")
	}
	if refresher == nil {
		return nil, errors.New("[token.New] refresher is required")
	}
	if onAuthFailure == nil {
		return nil, errors.New("[token.New] logout handler is required")
	}

	m := &Manager{
		store:            store,
		refresher:        refresher,
		onAuthFailure:    onAuthFailure,
		refreshThreshold: DefaultRefreshThreshold,
		nowFunc:          time.Now,
		log:              zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Validate reports whether the token is usable for at least one more request
// without triggering a refresh race: it must parse, and the current time
// must be strictly before expiry minus the refresh threshold. A token
// exactly at the threshold is invalid.
func (m *Manager) Validate(rawToken string) bool {
	claims, err := DecodeClaims(rawToken)
	if err != nil {
		return false
	}
	return m.nowFunc().Before(claims.ExpiresAt.Add(-m.refreshThreshold))
}

// Refresh exchanges the stored refresh token for a new access token and
// persists the new pair before returning it. Concurrent callers share a
// single in-flight exchange and all observe the same outcome. On failure
// the forced-logout path runs before the error is propagated, so callers
// never see a partially-authenticated session.
//
// The exchange runs on a context detached from the initiating caller: once
// started it runs to completion, so one caller's cancellation cannot abort
// the shared flight and log everyone out over a transient timeout.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	result, err, _ := m.flight.Do(refreshFlightKey, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refreshOnce(flightCtx)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (m *Manager) refreshOnce(ctx context.Context) (interface{}, error) {
	refreshToken, ok, err := m.store.Get(ctx, session.RefreshTokenKey)
	if err != nil {
		m.log.Error().Err(err).Msg("reading stored refresh token failed")
		m.onAuthFailure.ForceLogout(ctx)
		return nil, errors.Wrap(ErrRefreshFailed, err.Error())
	}
	if !ok || refreshToken == "" {
		m.log.Warn().Msg("token refresh requested with no stored refresh token")
		m.onAuthFailure.ForceLogout(ctx)
		return nil, ErrRefreshFailed
	}

	pair, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		m.log.Error().Err(err).Msg("token refresh failed")
		m.onAuthFailure.ForceLogout(ctx)
		return nil, errors.Wrap(ErrRefreshFailed, err.Error())
	}

	// Persist before resolving so no waiter can race ahead of storage.
	if err := session.WritePair(ctx, m.store, pair); err != nil {
		m.log.Error().Err(err).Msg("persisting refreshed token pair failed")
		m.onAuthFailure.ForceLogout(ctx)
		return nil, errors.Wrap(ErrRefreshFailed, err.Error())
	}

	return pair.AccessToken, nil
}
