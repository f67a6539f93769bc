package lock

import (
	"context"
	"fmt"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/logger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var logg = logger.New()

const keyPrefix = "socialfeed:lock:"

// releaseScript deletes the key only if it still carries our token, so an
// expired lock taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes edits across server replicas sharing one Redis.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

// NewRedis returns a locker whose locks expire after ttl and whose Lock gives
// up with apperr.ErrConflict after wait.
func NewRedis(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait, poll: 10 * time.Millisecond}
}

// Connect builds a Redis client, or nil when addr is empty.
func Connect(addr, password string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	rkey := keyPrefix + key
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, rkey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %q busy: %w", key, apperr.ErrConflict)
		}
		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// Release on a fresh context: the caller's may already be done.
		rctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.client, []string{rkey}, token).Err(); err != nil {
			logg.Error("lock", "Failed to release lock", err)
		}
	}, nil
}
