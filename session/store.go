package session

import (
	"context"

	"github.com/pkg/errors"
)

// Store is a durable key-value store for session material. Multi-key writes
// and removals are presented to callers as atomic: either all keys change or
// none are reported as changed. Implementations should use a single batched
// persistence call rather than serial writes.
//
// A Store holds no validation logic. It is a pure durable map.
type Store interface {
	// Get returns the value for key. The second return value is false when
	// the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetMany writes all pairs in one batched operation.
	SetMany(ctx context.Context, pairs map[string]string) error
	// RemoveMany deletes all keys in one batched operation. Removing an
	// absent key is not an error.
	RemoveMany(ctx context.Context, keys ...string) error
}

// WritePair persists the token pair atomically. The refresh token is kept
// unchanged when the new pair carries an empty one (a refresh response that
// did not rotate it).
func WritePair(ctx context.Context, store Store, pair Pair) error {
	pairs := map[string]string{AccessTokenKey: pair.AccessToken}
	if pair.RefreshToken != "" {
		pairs[RefreshTokenKey] = pair.RefreshToken
	}
	if err := store.SetMany(ctx, pairs); err != nil {
		return errors.Wrap(err, "session.WritePair SetMany")
	}
	return nil
}

// ClearPair removes both token keys atomically.
func ClearPair(ctx context.Context, store Store) error {
	if err := store.RemoveMany(ctx, AccessTokenKey, RefreshTokenKey); err != nil {
		return errors.Wrap(err, "session.ClearPair RemoveMany")
	}
	return nil
}

// CurrentPair reads the persisted pair. The second return value is false
// when no access token is stored.
func CurrentPair(ctx context.Context, store Store) (Pair, bool, error) {
	accessToken, ok, err := store.Get(ctx, AccessTokenKey)
	if err != nil {
		return Pair{}, false, errors.Wrap(err, "session.CurrentPair Get access token")
	}
	if !ok {
		return Pair{}, false, nil
	}

	refreshToken, _, err := store.Get(ctx, RefreshTokenKey)
	if err != nil {
		return Pair{}, false, errors.Wrap(err, "session.CurrentPair Get refresh token")
	}

	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, true, nil
}
