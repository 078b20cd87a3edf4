package infra

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"jobboard-gate/middleware/ratelimit/domain"
)

// Formatos de bucket aceitos por WithStatsBucket.
var statsBuckets = map[string]string{
	"minute": "200601021504",
	"hour":   "2006010215",
}

// RedisStatsStore agrega decisões em hashes do Redis. Campos são
// "allowed"/"denied", prefixados pelo grupo quando o hash é compartilhado.
//
//	<prefix>:total                 cumulativo, sem TTL
//	<prefix>:groups                "<grupo>:allowed", cumulativo
//	<prefix>:<bucket>:<instante>   série temporal por grupo, com TTL
//	<prefix>:key:<chave>           por cliente, só com trackKeys, com TTL
type RedisStatsStore struct {
	rdb redis.Cmdable

	prefix    string
	ttl       time.Duration
	bucket    string // minute, hour ou none
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket escolhe a granularidade da série; valor desconhecido desliga a série.
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.Cmdable, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "gate:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	decision := decisionField(ev.Allowed)
	group := strings.TrimSpace(ev.Group)
	if group == "" {
		group = "default"
	}
	groupField := group + ":" + decision

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", decision, 1)
	pipe.HIncrBy(ctx, s.prefix+":groups", groupField, 1)

	if layout, ok := statsBuckets[s.bucket]; ok {
		series := s.prefix + ":" + s.bucket + ":" + at.UTC().Format(layout)
		pipe.HIncrBy(ctx, series, groupField, 1)
		s.expire(ctx, pipe, series)
	}

	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		perKey := s.prefix + ":key:" + k
		pipe.HIncrBy(ctx, perKey, decision, 1)
		s.expire(ctx, pipe, perKey)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// GroupCounters lê o hash cumulativo por grupo.
func (s *RedisStatsStore) GroupCounters(ctx context.Context) (map[string]Counters, error) {
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":groups").Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]Counters, len(raw)/2)
	for field, v := range raw {
		i := strings.LastIndexByte(field, ':')
		if i <= 0 {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		c := out[field[:i]]
		switch field[i+1:] {
		case "allowed":
			c.Allowed += n
		case "denied":
			c.Denied += n
		}
		out[field[:i]] = c
	}
	return out, nil
}

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func decisionField(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}
