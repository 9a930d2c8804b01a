package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list roots are pushed to and popped from.
const DefaultRedisKey = "sitecrawler:roots"

// DefaultRedisWait is how long Next blocks on an empty list before the
// source reports that it is drained.
const DefaultRedisWait = 5 * time.Second

// listClient is the part of the Redis client the source uses.
type listClient interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Close() error
}

// RedisSource pops roots from a Redis list.
type RedisSource struct {
	client listClient
	key    string
	wait   time.Duration
	logger *slog.Logger
}

// RedisOption configures a RedisSource.
type RedisOption func(*RedisSource)

// WithRedisWait sets how long Next blocks on an empty list.
func WithRedisWait(d time.Duration) RedisOption {
	return func(s *RedisSource) {
		if d > 0 {
			s.wait = d
		}
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger *slog.Logger) RedisOption {
	return func(s *RedisSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// withListClient replaces the Redis client. Used by tests.
func withListClient(c listClient) RedisOption {
	return func(s *RedisSource) {
		s.client = c
	}
}

// NewRedisSource connects to the Redis server at addr and reads the list key.
// password may be empty.
func NewRedisSource(addr, password, key string, opts ...RedisOption) (*RedisSource, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	s := &RedisSource{
		key:    key,
		wait:   DefaultRedisWait,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		})
	}
	return s, nil
}

// Next implements URLQueueSource. It blocks up to the configured wait for
// a root; an empty list after the wait means the source is drained.
func (s *RedisSource) Next(ctx context.Context) (string, bool, error) {
	vals, err := s.client.BLPop(ctx, s.wait, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", false, ctxErr
		}
		return "", false, fmt.Errorf("failed to pop root from %s: %w", s.key, err)
	}
	// BLPOP answers [key, value].
	if len(vals) != 2 {
		return "", false, fmt.Errorf("unexpected BLPOP reply from %s: %v", s.key, vals)
	}
	s.logger.Debug("popped root", "key", s.key, "root", vals[1])
	return vals[1], true, nil
}

// Push appends roots to the end of the list and returns the new length.
func (s *RedisSource) Push(ctx context.Context, roots ...string) (int64, error) {
	if len(roots) == 0 {
		return s.Len(ctx)
	}
	values := make([]any, len(roots))
	for i, r := range roots {
		values[i] = r
	}
	n, err := s.client.RPush(ctx, s.key, values...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to push roots to %s: %w", s.key, err)
	}
	return n, nil
}

// Len returns the number of queued roots.
func (s *RedisSource) Len(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read length of %s: %w", s.key, err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (s *RedisSource) Close() error {
	return s.client.Close()
}
