// Package bridge reconciles the external identity provider's asynchronous
// auth-state notifications with the local session, so the persisted session
// can never diverge from the provider's notion of who is signed in.
package bridge

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/lifecycle"
	"github.com/jrsteele09/go-auth-client/provider"
	"github.com/jrsteele09/go-auth-client/session"
)

// Synchronizer subscribes to the identity provider for the lifetime of the
// application and pushes provider-originated transitions through the same
// session-completion and forced-logout paths the facade uses.
type Synchronizer struct {
	store      session.Store
	idp        provider.IdentityProvider
	completer  *lifecycle.Completer
	terminator *lifecycle.Terminator
	log        zerolog.Logger

	mu          sync.Mutex
	started     bool
	unsubscribe func()

	// handleMu serializes notification processing: overlapping provider
	// events must not run concurrent backend exchanges.
	handleMu sync.Mutex
}

// Option defines a function type to modify the Synchronizer instance.
type Option func(*Synchronizer)

// WithLogger sets the logger, which is silent by default.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Synchronizer) {
		s.log = log
	}
}

// New creates a Synchronizer.
func New(store session.Store, idp provider.IdentityProvider, completer *lifecycle.Completer, terminator *lifecycle.Terminator, options ...Option) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("[bridge.New] store is required")
	}
	if idp == nil {
		return nil, errors.New("[bridge.New] identity provider is required")
	}
	if completer == nil {
		return nil, errors.New("[bridge.New] completer is required")
	}
	if terminator == nil {
		return nil, errors.New("[bridge.New] terminator is required")
	}

	s := &Synchronizer{
		store:      store,
		idp:        idp,
		completer:  completer,
		terminator: terminator,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Start reconciles any pre-existing local session against the provider's
// current identity, then subscribes to the notification stream. Calling
// Start while already started is a no-op. The given context bounds the
// reconciliation work triggered by notifications until Stop is called.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if err := s.reconcileExisting(ctx); err != nil {
		return err
	}

	s.unsubscribe = s.idp.OnAuthStateChanged(func(signedIn bool) {
		s.handle(ctx, signedIn)
	})
	s.started = true
	s.log.Debug().Msg("identity bridge started")
	return nil
}

// Stop cancels the subscription and resets the initialization flag so a
// later Start re-attaches cleanly. Calling Stop when not started is a no-op.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.started = false
}

// reconcileExisting detects an orphaned local session: a persisted access
// token while the provider reports no active identity means the provider
// signed the user out behind our back.
func (s *Synchronizer) reconcileExisting(ctx context.Context) error {
	accessToken, ok, err := s.store.Get(ctx, session.AccessTokenKey)
	if err != nil {
		return errors.Wrap(err, "Synchronizer.Start Get access token")
	}
	if !ok || accessToken == "" {
		return nil
	}

	credential, err := s.idp.CurrentCredential(ctx)
	if err != nil || credential == "" {
		s.log.Warn().Err(err).Msg("orphaned local session detected; forcing logout")
		s.terminator.ForceLogout(ctx)
	}
	return nil
}

func (s *Synchronizer) handle(ctx context.Context, signedIn bool) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	if !signedIn {
		s.terminator.ForceLogout(ctx)
		return
	}

	credential, err := s.idp.CurrentCredential(ctx)
	if err != nil || credential == "" {
		s.log.Error().Err(err).Msg("provider reported sign-in but no credential available")
		s.terminator.ForceLogout(ctx)
		return
	}

	if err := s.completer.CompleteExchange(ctx, credential); err != nil {
		s.log.Error().Err(err).Msg("provider credential exchange failed")
		s.terminator.ForceLogout(ctx)
	}
}
