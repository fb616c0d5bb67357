package providerfakes

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/provider"
)

var _ provider.IdentityProvider = (*FakeProvider)(nil)

// FakeProvider is an in-memory identity provider for tests and demos. Seed
// accounts with AddAccount; drive the notification stream with EmitSignedIn
// and EmitSignedOut or by calling SignIn/SignOut.
type FakeProvider struct {
	mu         sync.Mutex
	accounts   map[string]string // email -> password
	credential string
	listeners  map[int]provider.StateListener
	nextID     int
	signInErr  error
	currentErr error
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		accounts:  make(map[string]string),
		listeners: make(map[int]provider.StateListener),
	}
}

// AddAccount seeds an account the fake will accept. The credential issued on
// sign-in is "idp-credential:" + email.
func (f *FakeProvider) AddAccount(email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = password
}

// FailSignInWith makes every SignIn call return err.
func (f *FakeProvider) FailSignInWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signInErr = err
}

// FailCurrentCredentialWith makes CurrentCredential return err.
func (f *FakeProvider) FailCurrentCredentialWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.currentErr = err
}

// SetCredential installs an active identity directly, without a SignIn call.
func (f *FakeProvider) SetCredential(credential string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credential = credential
}

func (f *FakeProvider) SignIn(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	if f.signInErr != nil {
		err := f.signInErr
		f.mu.Unlock()
		return "", err
	}
	stored, ok := f.accounts[email]
	if !ok || stored != password {
		f.mu.Unlock()
		return "", errors.Wrap(provider.ErrSignInFailed, email)
	}
	credential := "idp-credential:" + email
	f.credential = credential
	f.mu.Unlock()

	f.emit(true)
	return credential, nil
}

func (f *FakeProvider) SignOut(_ context.Context) error {
	f.mu.Lock()
	f.credential = ""
	f.mu.Unlock()

	f.emit(false)
	return nil
}

func (f *FakeProvider) CurrentCredential(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.currentErr != nil {
		return "", f.currentErr
	}
	return f.credential, nil
}

func (f *FakeProvider) OnAuthStateChanged(fn provider.StateListener) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

// ListenerCount reports how many subscribers are attached.
func (f *FakeProvider) ListenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// EmitSignedIn delivers a signed-in notification to all subscribers.
func (f *FakeProvider) EmitSignedIn() {
	f.emit(true)
}

// EmitSignedOut delivers a signed-out notification to all subscribers.
func (f *FakeProvider) EmitSignedOut() {
	f.emit(false)
}

func (f *FakeProvider) emit(signedIn bool) {
	f.mu.Lock()
	listeners := make([]provider.StateListener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(signedIn)
	}
}
