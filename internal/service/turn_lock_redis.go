package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TurnLocker serializa turnos de una sesión entre varias instancias del servicio.
type TurnLocker interface {
	// Acquire devuelve ok=false si otro turno tiene la sesión.
	Acquire(ctx context.Context, sessionID string) (release func(), ok bool, err error)
}

const redisTurnReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisTurnLocker struct {
	client redisLockClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedisTurnLocker usa SET NX con TTL; el TTL debe cubrir la generación más lenta.
func NewRedisTurnLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) TurnLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisTurnLocker{
		client: client,
		ttl:    ttl,
		prefix: "chat:turn:",
		logger: logger,
	}
}

func (l *redisTurnLocker) Acquire(ctx context.Context, sessionID string) (func(), bool, error) {
	key := l.prefix + sessionID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := l.client.Eval(rctx, redisTurnReleaseScript, []string{key}, token).Err(); err != nil {
			l.logger.Warn("release turn lock failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return release, true, nil
}
