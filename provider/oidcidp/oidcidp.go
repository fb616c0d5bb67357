// Package oidcidp implements the identity-provider contract against any
// OpenID Connect issuer that supports the resource-owner password grant
// (Keycloak, Dex, and similar self-hosted issuers).
package oidcidp

import (
	"context"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-auth-client/provider"
)

var _ provider.IdentityProvider = (*Provider)(nil)

// Config carries the issuer settings.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Provider signs in against an OIDC issuer with the password grant and
// verifies the returned ID token. The verified raw ID token is the provider
// credential handed to the backend exchange.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier

	mu         sync.Mutex
	rawIDToken string
	oauthToken *oauth2.Token
	listeners  map[string]provider.StateListener
	emitMu     sync.Mutex

	log zerolog.Logger
}

// Option defines a function type to modify the Provider instance.
type Option func(*Provider)

// WithLogger sets the logger, which is silent by default.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) {
		p.log = log
	}
}

// New discovers the issuer and creates the provider.
func New(ctx context.Context, cfg Config, options ...Option) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("[oidcidp.New] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcidp.New] client ID is required")
	}

	oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcidp.New] issuer discovery")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	p := &Provider{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		verifier:  oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		listeners: make(map[string]provider.StateListener),
		log:       zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
}

// SignIn runs the password grant, verifies the ID token, remembers the
// identity, and notifies subscribers.
func (p *Provider) SignIn(ctx context.Context, email, password string) (string, error) {
	oauthToken, err := p.oauthConfig.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", errors.Wrap(provider.ErrSignInFailed, retrieveErr.Error())
		}
		return "", errors.Wrap(provider.ErrProvider, err.Error())
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", errors.Wrap(provider.ErrProvider, "no ID token in response")
	}

	if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
		return "", errors.Wrap(provider.ErrProvider, err.Error())
	}

	p.mu.Lock()
	p.rawIDToken = rawIDToken
	p.oauthToken = oauthToken
	p.mu.Unlock()

	p.emit(true)
	return rawIDToken, nil
}

// SignOut drops the provider-side identity and notifies subscribers. The
// password grant holds no server-side session to revoke, so this is purely
// local.
func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.rawIDToken = ""
	p.oauthToken = nil
	p.mu.Unlock()

	p.emit(false)
	return nil
}

// CurrentCredential returns the active identity's ID token, refreshing it
// through the issuer when the access token has gone stale.
func (p *Provider) CurrentCredential(ctx context.Context) (string, error) {
	p.mu.Lock()
	oauthToken := p.oauthToken
	rawIDToken := p.rawIDToken
	p.mu.Unlock()

	if oauthToken == nil {
		return "", nil
	}
	if oauthToken.Valid() {
		return rawIDToken, nil
	}

	refreshed, err := p.oauthConfig.TokenSource(ctx, oauthToken).Token()
	if err != nil {
		return "", errors.Wrap(provider.ErrProvider, err.Error())
	}

	if raw, ok := refreshed.Extra("id_token").(string); ok && raw != "" {
		rawIDToken = raw
	}

	p.mu.Lock()
	p.oauthToken = refreshed
	p.rawIDToken = rawIDToken
	p.mu.Unlock()

	return rawIDToken, nil
}

// OnAuthStateChanged subscribes fn and returns its unsubscribe function.
func (p *Provider) OnAuthStateChanged(fn provider.StateListener) func() {
	p.mu.Lock()
	id := uuid.New().String()
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// emit delivers a notification to every listener. emitMu keeps deliveries
// serialized so overlapping sign-in/sign-out transitions cannot interleave
// inside a subscriber.
func (p *Provider) emit(signedIn bool) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	listeners := make([]provider.StateListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(signedIn)
	}
}
