package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "wipetrace:job:"

// Release frees a held lock. It is a no-op when the lock already expired or
// was taken over.
type Release func(ctx context.Context)

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Release, bool)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis keeps one holder per name across replicas. When redis errors the
// lock fails open: every job is idempotent by predicate, so a duplicate run
// is wasteful but safe.
type Redis struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

func NewRedis(rdb redis.UniversalClient, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, logger: logger}
}

func (l *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (Release, bool) {
	key := keyPrefix + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		l.logger.Warn("job lock unavailable, running unlocked", zap.String("job", name), zap.Error(err))
		return func(context.Context) {}, true
	}
	if !ok {
		l.logger.Info("job already running elsewhere", zap.String("job", name), zap.String("lock_key", key))
		return nil, false
	}
	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.logger.Warn("job lock release failed", zap.String("job", name), zap.Error(err))
		}
	}, true
}

// Local is an in-process Locker for single-replica deployments without redis.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: map[string]struct{}{}}
}

func (l *Local) Acquire(_ context.Context, name string, _ time.Duration) (Release, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[name]; busy {
		return nil, false
	}
	l.held[name] = struct{}{}
	return func(context.Context) {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true
}
