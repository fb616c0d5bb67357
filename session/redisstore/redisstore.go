package redisstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-auth-client/session"
)

var _ session.Store = (*Store)(nil)

const defaultPrefix = "authclient:"

// Store is a Redis-backed implementation of session.Store for long-running
// agents that need the session to survive process restarts. Multi-key writes
// and removals go through a single transactional pipeline so the pair is
// never half-written.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides the key prefix used for all stored values.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis-backed store using the given client.
func New(client redis.UniversalClient, options ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultPrefix,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redisstore.Store.Get")
	}
	return value, true, nil
}

func (s *Store) SetMany(ctx context.Context, pairs map[string]string) error {
	pipe := s.client.TxPipeline()
	for key, value := range pairs {
		pipe.Set(ctx, s.prefix+key, value, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redisstore.Store.SetMany")
	}
	return nil
}

func (s *Store) RemoveMany(ctx context.Context, keys ...string) error {
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, s.prefix+key)
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return errors.Wrap(err, "redisstore.Store.RemoveMany")
	}
	return nil
}
