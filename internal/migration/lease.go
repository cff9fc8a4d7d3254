package migration

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Lease grants exclusive use of a pool's migration pipeline. Acquire reports
// ok=false when another holder has it; release must be called once when ok.
type Lease interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// LocalLease excludes concurrent pipelines within one process.
type LocalLease struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalLease() *LocalLease {
	return &LocalLease{held: make(map[string]struct{})}
}

func (l *LocalLease) Acquire(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, false, nil
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}

// releaseScript deletes the lease only if it still carries our token, so an
// expired lease taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease excludes pipelines across instances sharing a Redis. Leases expire
// after ttl so a crashed holder cannot block a pool forever.
type RedisLease struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisLease(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLease {
	if prefix == "" {
		prefix = "graduator:lease:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisLease{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context, key string) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
		})
	}, true, nil
}
