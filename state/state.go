// Package state holds the process-wide observable authentication state
// consumed by the presentation layer. All mutation goes through the explicit
// transition methods on Store; consumers read snapshots or subscribe.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionExpiredMessage is the user-displayable error set by SessionExpired.
const SessionExpiredMessage = "Session expired. Please login again."

// DefaultAttemptWindow is how long failed-login attempts keep accumulating
// before the counter resets on the next failure.
const DefaultAttemptWindow = 15 * time.Minute

// User is the profile projection shown to the UI layer.
type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
	LastLogin time.Time
}

// AuthState is the UI-facing authentication snapshot. IsAuthenticated is
// true iff both a user and a token are present; every transition that clears
// one clears the flag in the same step.
type AuthState struct {
	User            *User
	Token           string
	IsAuthenticated bool
	IsLoading       bool
	Err             string
	LoginAttempts   int
	LastAttemptTime time.Time
	LastLoginTime   time.Time
}

// Subscriber receives a state snapshot after every transition.
type Subscriber func(AuthState)

// Store owns the AuthState projection. It is the only entity the UI layer
// reads; the auth components are the only writers.
type Store struct {
	mu            sync.RWMutex
	state         AuthState
	subscribers   map[string]Subscriber
	attemptWindow time.Duration
	nowFunc       func() time.Time
}

// Option defines a function type to modify the Store instance.
type Option func(*Store)

// WithAttemptWindow overrides the failed-attempt accumulation window.
func WithAttemptWindow(window time.Duration) Option {
	return func(s *Store) {
		s.attemptWindow = window
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// New creates a Store with all-empty defaults.
func New(options ...Option) *Store {
	s := &Store{
		subscribers:   make(map[string]Subscriber),
		attemptWindow: DefaultAttemptWindow,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Subscribe registers fn to be called after every transition and returns an
// unsubscribe function.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := uuid.New().String()
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyState(s.state)
}

// SetUser replaces the current user. A nil user drops authentication.
func (s *Store) SetUser(user *User) {
	s.transition(func(st *AuthState) {
		st.User = user
		if user != nil {
			st.Err = ""
		}
	})
}

// SetToken replaces the current token. An empty token drops authentication.
func (s *Store) SetToken(tok string) {
	s.transition(func(st *AuthState) {
		st.Token = tok
		if tok != "" {
			st.Err = ""
		}
	})
}

// SetLoading toggles the loading flag; entering the loading state clears any
// previous error.
func (s *Store) SetLoading(loading bool) {
	s.transition(func(st *AuthState) {
		st.IsLoading = loading
		if loading {
			st.Err = ""
		}
	})
}

// SetError records a user-displayable error and stops any loading state.
func (s *Store) SetError(message string) {
	s.transition(func(st *AuthState) {
		st.Err = message
		if message != "" {
			st.IsLoading = false
		}
	})
}

// LoginSucceeded installs the authenticated user and token and resets the
// attempt counters.
func (s *Store) LoginSucceeded(user User, tok string) {
	s.transition(func(st *AuthState) {
		st.User = &user
		st.Token = tok
		st.LastLoginTime = s.nowFunc()
		st.LoginAttempts = 0
		st.LastAttemptTime = time.Time{}
		st.Err = ""
		st.IsLoading = false
	})
}

// LoginFailed records a failed attempt. Attempts made more than the attempt
// window after the previous one start a fresh count.
func (s *Store) LoginFailed(message string) {
	s.transition(func(st *AuthState) {
		now := s.nowFunc()
		st.Err = message
		st.IsLoading = false
		if !st.LastAttemptTime.IsZero() && now.Sub(st.LastAttemptTime) > s.attemptWindow {
			st.LoginAttempts = 1
		} else {
			st.LoginAttempts++
		}
		st.LastAttemptTime = now
	})
}

// SessionExpired drops the session but keeps the attempt counters, which
// should persist across sessions.
func (s *Store) SessionExpired() {
	s.transition(func(st *AuthState) {
		st.User = nil
		st.Token = ""
		st.Err = SessionExpiredMessage
		st.LastLoginTime = time.Time{}
	})
}

// UpdateUserProfile merges non-empty fields of update into the current user,
// preserving the identity fields. A no-op when signed out.
func (s *Store) UpdateUserProfile(update User) {
	s.transition(func(st *AuthState) {
		if st.User == nil {
			return
		}
		if update.Username != "" {
			st.User.Username = update.Username
		}
		if update.Email != "" {
			st.User.Email = update.Email
		}
	})
}

// ClearError drops any recorded error.
func (s *Store) ClearError() {
	s.transition(func(st *AuthState) {
		st.Err = ""
	})
}

// Reset returns the store to its all-empty unauthenticated defaults.
func (s *Store) Reset() {
	s.transition(func(st *AuthState) {
		*st = AuthState{}
	})
}

// IsAuthenticated reports whether both user and token are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsAuthenticated
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	user := *s.state.User
	return &user
}

// LastError returns the current user-displayable error, if any.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Err
}

// LoginAttempts returns the current failed-attempt count.
func (s *Store) LoginAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LoginAttempts
}

// transition applies mutate under the write lock, re-derives the
// authenticated flag, then notifies subscribers with the new snapshot.
func (s *Store) transition(mutate func(*AuthState)) {
	s.mu.Lock()
	mutate(&s.state)
	s.state.IsAuthenticated = s.state.User != nil && s.state.Token != ""
	snapshot := copyState(s.state)
	subscribers := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func copyState(st AuthState) AuthState {
	if st.User != nil {
		user := *st.User
		st.User = &user
	}
	return st
}
