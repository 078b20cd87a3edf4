package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobboard-gate/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// hitScript incrementa o contador e arma o TTL da janela na primeira batida.
// Retorna: [count, pttl_ms]
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisStore mantém as janelas no Redis, compartilhadas entre instâncias do gate.
//
// O Lua roda atômico no servidor, então não há perda de incremento entre
// réplicas. A expiração fica a cargo do TTL do Redis (não precisa de Sweep).
type RedisStore struct {
	rdb    redis.Scripter
	prefix string
}

func NewRedisStore(rdb redis.Scripter, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "gate:rl:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Hit implementa domain.WindowStore.
func (s *RedisStore) Hit(ctx context.Context, key domain.Key, window time.Duration, now time.Time) (domain.Record, error) {
	windowMs := window.Milliseconds()
	if windowMs <= 0 {
		windowMs = 1
	}

	res, err := hitScript.Run(ctx, s.rdb, []string{s.prefix + string(key)}, windowMs).Int64Slice()
	if err != nil {
		return domain.Record{}, err
	}
	if len(res) != 2 {
		return domain.Record{}, fmt.Errorf("unexpected redis reply length %d", len(res))
	}

	return domain.Record{
		Key:     key,
		Count:   res[0],
		ResetAt: now.Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}
