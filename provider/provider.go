// Package provider defines the contract with the external identity provider:
// credential-based sign-in/sign-out, the current credential, and a push-style
// auth-state subscription that the bridge consumes.
package provider

import (
	"context"

	"github.com/pkg/errors"
)

// ErrProvider wraps any failure originating inside the identity provider.
var ErrProvider = errors.New("identity provider error")

// ErrSignInFailed is returned when the provider rejects the presented
// credentials.
var ErrSignInFailed = errors.New("identity provider rejected credentials")

// StateListener receives auth-state change notifications. signedIn is true
// when the provider now reports an active identity.
type StateListener func(signedIn bool)

// IdentityProvider is the external authentication service. It tracks
// sign-in state independently of the application session.
type IdentityProvider interface {
	// SignIn proves the user's identity to the provider and returns the
	// provider credential to exchange with the backend.
	SignIn(ctx context.Context, email, password string) (string, error)
	// SignOut drops the provider-side identity.
	SignOut(ctx context.Context) error
	// CurrentCredential returns the credential of the active identity, or
	// "" when the provider reports no one signed in.
	CurrentCredential(ctx context.Context) (string, error)
	// OnAuthStateChanged subscribes fn to the provider's notification
	// stream and returns an unsubscribe function. Notifications for one
	// subscriber are delivered one at a time, in emission order.
	OnAuthStateChanged(fn StateListener) (unsubscribe func())
}
