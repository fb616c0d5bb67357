// Package lifecycle holds the two routines every session transition funnels
// through: the forced-logout path shared by the token manager, the request
// gateway and the identity bridge, and the session-completion routine shared
// by the auth facade and the bridge so the two sign-in paths can never
// diverge.
package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/state"
)

// Terminator runs the forced-logout path: clear the persisted token pair,
// reset the observable state, signal the unauthenticated area. It never
// fails; a storage error is logged and the in-memory reset and navigation
// signal still happen.
type Terminator struct {
	store session.Store
	state *state.Store
	nav   navigation.Navigator
	log   zerolog.Logger
}

// NewTerminator creates the forced-logout runner.
func NewTerminator(store session.Store, stateStore *state.Store, nav navigation.Navigator, log zerolog.Logger) (*Terminator, error) {
	if store == nil {
		return nil, errors.New("[lifecycle.NewTerminator] store is required")
	}
	if stateStore == nil {
		return nil, errors.New("[lifecycle.NewTerminator] state store is required")
	}
	if nav == nil {
		return nil, errors.New("[lifecycle.NewTerminator] navigator is required")
	}
	return &Terminator{store: store, state: stateStore, nav: nav, log: log}, nil
}

// ForceLogout clears the local session. Called on refresh failure, orphaned
// sessions, provider sign-out, and explicit logout.
func (t *Terminator) ForceLogout(ctx context.Context) {
	if err := session.ClearPair(ctx, t.store); err != nil {
		t.log.Error().Err(err).Msg("clearing persisted session failed during forced logout")
	}
	t.state.Reset()
	t.nav.NavigateToUnauthenticatedArea()
}

// ProviderExchanger is the backend call that turns a provider credential
// into an application session. Satisfied by api.Client.
type ProviderExchanger interface {
	ProviderLogin(ctx context.Context, providerToken string) (*api.AuthResponse, error)
}

// Completer finishes a sign-in: persist the token pair, project the user
// into the state store, and signal the authenticated area.
type Completer struct {
	exchanger ProviderExchanger
	store     session.Store
	state     *state.Store
	nav       navigation.Navigator
	log       zerolog.Logger
}

// NewCompleter creates the shared sign-in completion routine.
func NewCompleter(exchanger ProviderExchanger, store session.Store, stateStore *state.Store, nav navigation.Navigator, log zerolog.Logger) (*Completer, error) {
	if exchanger == nil {
		return nil, errors.New("[lifecycle.NewCompleter] exchanger is required")
	}
	if store == nil {
		return nil, errors.New("[lifecycle.NewCompleter] store is required")
	}
	if stateStore == nil {
		return nil, errors.New("[lifecycle.NewCompleter] state store is required")
	}
	if nav == nil {
		return nil, errors.New("[lifecycle.NewCompleter] navigator is required")
	}
	return &Completer{exchanger: exchanger, store: store, state: stateStore, nav: nav, log: log}, nil
}

// CompleteExchange exchanges a provider credential for an application
// session and installs it. Used by both the login facade and the identity
// bridge.
func (c *Completer) CompleteExchange(ctx context.Context, providerToken string) error {
	resp, err := c.exchanger.ProviderLogin(ctx, providerToken)
	if err != nil {
		return errors.Wrap(err, "Completer.CompleteExchange ProviderLogin")
	}
	return c.CompleteSession(ctx, resp)
}

// CompleteSession installs an already-exchanged session envelope.
func (c *Completer) CompleteSession(ctx context.Context, resp *api.AuthResponse) error {
	pair := session.Pair{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}
	if err := session.WritePair(ctx, c.store, pair); err != nil {
		return errors.Wrap(err, "Completer.CompleteSession WritePair")
	}

	c.state.LoginSucceeded(userFromProfile(resp.User), resp.Token)
	c.nav.NavigateToAuthenticatedArea()
	c.log.Info().Str("user", resp.User.ID).Msg("session established")
	return nil
}

func userFromProfile(profile api.UserProfile) state.User {
	return state.User{
		ID:        profile.ID,
		Username:  profile.Username,
		Email:     profile.Email,
		CreatedAt: profile.CreatedAt,
		LastLogin: profile.LastLogin,
	}
}
