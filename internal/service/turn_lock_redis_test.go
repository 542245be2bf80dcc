package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type mockRedisLockClient struct {
	setKey   string
	setValue interface{}
	setTTL   time.Duration
	setOK    bool
	setErr   error

	evalScript string
	evalKeys   []string
	evalArgs   []interface{}
}

func (m *mockRedisLockClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	m.setKey = key
	m.setValue = value
	m.setTTL = expiration
	cmd := redis.NewBoolCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	cmd.SetVal(m.setOK)
	return cmd
}

func (m *mockRedisLockClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.evalScript = script
	m.evalKeys = keys
	m.evalArgs = args
	cmd := redis.NewCmd(ctx)
	cmd.SetVal(int64(1))
	return cmd
}

func TestRedisTurnLocker(t *testing.T) {
	t.Run("nil client no crea locker", func(t *testing.T) {
		if l := NewRedisTurnLocker(nil, time.Minute, nil); l != nil {
			t.Fatalf("expected nil locker without client")
		}
	})

	t.Run("acquire y release con el mismo token", func(t *testing.T) {
		mock := &mockRedisLockClient{setOK: true}
		l := &redisTurnLocker{client: mock, ttl: 40 * time.Second, prefix: "chat:turn:", logger: zap.NewNop()}

		release, ok, err := l.Acquire(context.Background(), "s1")
		if err != nil || !ok {
			t.Fatalf("expected lock, got ok=%v err=%v", ok, err)
		}
		if mock.setKey != "chat:turn:s1" || mock.setTTL != 40*time.Second {
			t.Fatalf("unexpected SETNX key=%q ttl=%v", mock.setKey, mock.setTTL)
		}

		release()
		if mock.evalScript != redisTurnReleaseScript {
			t.Fatalf("expected release script")
		}
		if len(mock.evalKeys) != 1 || mock.evalKeys[0] != "chat:turn:s1" {
			t.Fatalf("unexpected release keys %+v", mock.evalKeys)
		}
		if len(mock.evalArgs) != 1 || mock.evalArgs[0] != mock.setValue {
			t.Fatalf("expected release to use the acquire token, got %+v", mock.evalArgs)
		}
	})

	t.Run("ocupado", func(t *testing.T) {
		l := &redisTurnLocker{client: &mockRedisLockClient{setOK: false}, ttl: time.Minute, prefix: "chat:turn:", logger: zap.NewNop()}
		release, ok, err := l.Acquire(context.Background(), "s1")
		if err != nil || ok || release != nil {
			t.Fatalf("expected busy lock, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("error de redis se propaga", func(t *testing.T) {
		l := &redisTurnLocker{client: &mockRedisLockClient{setErr: errors.New("redis down")}, ttl: time.Minute, prefix: "chat:turn:", logger: zap.NewNop()}
		if _, _, err := l.Acquire(context.Background(), "s1"); err == nil {
			t.Fatalf("expected error")
		}
	})
}
