// Package auth is the public operation surface of the client auth core:
// login, registration, logout, session verification and the password flows,
// composed from the limiter, the identity provider, the backend client and
// the shared lifecycle routines.
package auth

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/api"
	"github.com/jrsteele09/go-auth-client/lifecycle"
	"github.com/jrsteele09/go-auth-client/provider"
	"github.com/jrsteele09/go-auth-client/ratelimit"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/state"
	"github.com/jrsteele09/go-auth-client/token"
)

// Limiter keys are namespaced by operation so a login lockout does not block
// a password reset for the same identifier.
const (
	opLogin    = "login"
	opRegister = "register"
	opForgot   = "forgot"
)

// Deps holds all dependencies for the Service.
type Deps struct {
	Limiter    *ratelimit.Limiter
	Provider   provider.IdentityProvider
	API        *api.Client
	Store      session.Store
	State      *state.Store
	Tokens     *token.Manager
	Completer  *lifecycle.Completer
	Terminator *lifecycle.Terminator
}

// Service composes the auth core into the operations the application calls.
type Service struct {
	deps Deps
	log  zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger sets the logger, which is silent by default.
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService initializes the auth facade with required dependencies.
func NewService(deps Deps, options ...ServiceOption) (*Service, error) {
	if deps.Limiter == nil {
		return nil, errors.New("[NewService] limiter is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("[NewService] identity provider is required")
	}
	if deps.API == nil {
		return nil, errors.New("[NewService] api client is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewService] session store is required")
	}
	if deps.State == nil {
		return nil, errors.New("[NewService] state store is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if deps.Completer == nil {
		return nil, errors.New("[NewService] completer is required")
	}
	if deps.Terminator == nil {
		return nil, errors.New("[NewService] terminator is required")
	}

	s := &Service{deps: deps, log: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Login proves the user's identity with the external provider and exchanges
// the provider credential for an application session. Rate limiting rejects
// the attempt before any network call is made.
func (s *Service) Login(ctx context.Context, email, password string) error {
	if !s.deps.Limiter.Allow(ratelimit.Key(opLogin, email)) {
		s.deps.State.SetError(ErrRateLimited.Error())
		return ErrRateLimited
	}

	s.deps.State.SetLoading(true)
	defer s.deps.State.SetLoading(false)

	credential, err := s.deps.Provider.SignIn(ctx, email, password)
	if err != nil {
		return s.failLogin(err)
	}

	if err := s.deps.Completer.CompleteExchange(ctx, credential); err != nil {
		return s.failLogin(err)
	}
	return nil
}

// Register creates the account through the backend, then proves the new
// identity with the provider. The backend register response already carries
// the first session, which is installed through the same completion routine
// login uses.
func (s *Service) Register(ctx context.Context, email, password, username string) error {
	if !s.deps.Limiter.Allow(ratelimit.Key(opRegister, email)) {
		s.deps.State.SetError(ErrRateLimited.Error())
		return ErrRateLimited
	}

	s.deps.State.SetLoading(true)
	defer s.deps.State.SetLoading(false)

	resp, err := s.deps.API.Register(ctx, email, password, username)
	if err != nil {
		if errors.Is(err, api.ErrConflict) {
			s.deps.State.LoginFailed(ErrAlreadyRegistered.Error())
			return errors.Wrap(ErrAlreadyRegistered, email)
		}
		return s.failLogin(err)
	}

	// Establish the provider-side identity so the bridge and the backend
	// agree on who is signed in. The account was just created with these
	// credentials, so a provider rejection here is a session-integrity
	// problem, not a user error.
	if _, err := s.deps.Provider.SignIn(ctx, email, password); err != nil {
		s.log.Warn().Err(err).Msg("provider sign-in after registration failed")
	}

	if err := s.deps.Completer.CompleteSession(ctx, resp); err != nil {
		return s.failLogin(err)
	}
	return nil
}

// Logout invalidates the server-side session and provider identity on a
// best-effort basis, then always completes the local cleanup.
func (s *Service) Logout(ctx context.Context) error {
	s.deps.State.SetLoading(true)

	if err := s.deps.API.Logout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("server-side logout failed; continuing with local logout")
	}
	if err := s.deps.Provider.SignOut(ctx); err != nil {
		s.log.Warn().Err(err).Msg("provider sign-out failed; continuing with local logout")
	}

	s.deps.Terminator.ForceLogout(ctx)
	return nil
}

// VerifySession reports whether a usable session exists. No stored token is
// not an error; a stale token gets one refresh attempt before the session
// is declared dead.
func (s *Service) VerifySession(ctx context.Context) (bool, error) {
	accessToken, ok, err := s.deps.Store.Get(ctx, session.AccessTokenKey)
	if err != nil {
		return false, errors.Wrap(err, "Service.VerifySession Get")
	}
	if !ok || accessToken == "" {
		return false, nil
	}

	if s.deps.Tokens.Validate(accessToken) {
		return true, nil
	}

	if _, err := s.deps.Tokens.Refresh(ctx); err != nil {
		// The forced-logout path has already run inside the manager.
		return false, nil
	}
	return true, nil
}

// RequestPasswordReset triggers a reset email. It resolves successfully for
// unknown identifiers; the backend must not reveal account existence and
// neither do we.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if !s.deps.Limiter.Allow(ratelimit.Key(opForgot, email)) {
		return ErrRateLimited
	}
	if err := s.deps.API.ForgotPassword(ctx, email); err != nil {
		return errors.Wrap(err, "Service.RequestPasswordReset")
	}
	return nil
}

// ResetPassword consumes a reset token received out of band.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := s.deps.API.ResetPassword(ctx, resetToken, newPassword); err != nil {
		return errors.Wrap(err, "Service.ResetPassword")
	}
	return nil
}

// UpdatePassword changes the signed-in user's password.
func (s *Service) UpdatePassword(ctx context.Context, currentPassword, newPassword string) error {
	if err := s.deps.API.UpdatePassword(ctx, currentPassword, newPassword); err != nil {
		return errors.Wrap(err, "Service.UpdatePassword")
	}
	return nil
}

// failLogin records the failed attempt in the state store and maps the
// underlying cause to the public taxonomy.
func (s *Service) failLogin(err error) error {
	mapped := err
	switch {
	case errors.Is(err, provider.ErrSignInFailed), errors.Is(err, api.ErrUnauthorized):
		mapped = ErrInvalidCredentials
	}
	s.deps.State.LoginFailed(mapped.Error())
	if mapped != err {
		return errors.Wrap(mapped, err.Error())
	}
	return err
}
