package navfakes

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/navigation"
)

var _ navigation.Navigator = (*FakeNavigator)(nil)

// FakeNavigator records navigation signals for assertions in tests.
type FakeNavigator struct {
	mu                   sync.Mutex
	authenticatedCount   int
	unauthenticatedCount int
	lastArea             string
}

func NewFakeNavigator() *FakeNavigator {
	return &FakeNavigator{}
}

func (n *FakeNavigator) NavigateToAuthenticatedArea() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.authenticatedCount++
	n.lastArea = "authenticated"
}

func (n *FakeNavigator) NavigateToUnauthenticatedArea() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unauthenticatedCount++
	n.lastArea = "unauthenticated"
}

// AuthenticatedSignals returns how many times the authenticated area was requested.
func (n *FakeNavigator) AuthenticatedSignals() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.authenticatedCount
}

// UnauthenticatedSignals returns how many times the unauthenticated area was requested.
func (n *FakeNavigator) UnauthenticatedSignals() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unauthenticatedCount
}

// LastArea returns the most recently requested area, or "" when none.
func (n *FakeNavigator) LastArea() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastArea
}
