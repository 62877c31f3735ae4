package cache

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"example.com/backstage/services/identifier/internal/sequence"
)

// nextValueScript increments KEYS[1] unless it has reached ARGV[1].
// Returns -1 when the counter is exhausted.
var nextValueScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur >= tonumber(ARGV[1]) then
	return -1
end
return redis.call('INCR', KEYS[1])
`)

// RedisCounterStore is a sequence.CounterStore kept in Redis. The check and
// the increment run as one script, so concurrent callers across processes
// never receive the same value.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates a counter store using keys under prefix
func NewRedisCounterStore(client *redis.Client, prefix string) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: prefix}
}

// Next implements sequence.CounterStore
func (s *RedisCounterStore) Next(ctx context.Context, scope sequence.Scope, max int64) (int64, error) {
	v, err := nextValueScript.Run(ctx, s.client, []string{s.key(scope)}, max).Int64()
	if err != nil {
		return 0, errors.Wrap(err, "failed to advance Redis counter")
	}
	if v < 0 {
		return 0, sequence.ErrExhausted
	}
	return v, nil
}

func (s *RedisCounterStore) key(scope sequence.Scope) string {
	return s.prefix + "seq:" + scope.String()
}
