package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is an exported constant or variable used by the flow engine.
var ErrNotFound = errors.New("credential bundle not found")

// ErrStoreUnavailable is an exported constant or variable used by the flow engine.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Store is a named key-value credential store with last-write-wins semantics.
// Watch delivers the names of bundles changed by any writer, including other
// processes sharing the backend.
type Store interface {
	Get(ctx context.Context, name string) (*Bundle, error)
	Put(ctx context.Context, name string, bundle *Bundle) error
	Delete(ctx context.Context, name string) error
	Watch(ctx context.Context) (<-chan string, error)
}

// RedisStore implements [Store] on Redis. Bundles are JSON values under
// prefix:name; every Put publishes the bundle name on the change channel.
type RedisStore struct {
	redis   redis.UniversalClient
	prefix  string
	channel string
}

// NewRedisStore creates a [RedisStore]. Empty prefix and channel fall back to
// "mfc" and "mfc:changed".
func NewRedisStore(redisClient redis.UniversalClient, prefix, channel string) *RedisStore {
	if prefix == "" {
		prefix = "mfc"
	}
	if channel == "" {
		channel = "mfc:changed"
	}
	return &RedisStore{
		redis:   redisClient,
		prefix:  prefix,
		channel: channel,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

// Get loads the named bundle. Returns [ErrNotFound] when absent.
func (s *RedisStore) Get(ctx context.Context, name string) (*Bundle, error) {
	data, err := s.redis.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("%w: corrupt bundle: %v", ErrStoreUnavailable, err)
	}
	return &bundle, nil
}

// Put stores the named bundle and publishes a change notification. The
// publish is best-effort: a missed notification only delays convergence until
// the next poll.
func (s *RedisStore) Put(ctx context.Context, name string, bundle *Bundle) error {
	if bundle == nil {
		return errors.New("nil bundle")
	}
	encoded, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(name), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = s.redis.Publish(ctx, s.channel, name).Err()
	return nil
}

// Delete removes the named bundle and publishes a change notification.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.redis.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = s.redis.Publish(ctx, s.channel, name).Err()
	return nil
}

// Watch subscribes to the change channel and streams changed bundle names
// until ctx is done. The returned channel is closed on shutdown.
func (s *RedisStore) Watch(ctx context.Context) (<-chan string, error) {
	sub := s.redis.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
