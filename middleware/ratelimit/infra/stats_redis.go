package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"admission-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisão em hashes do Redis.
//
// Só estatística: a cota em si continua em memória no processo.
//
// Layout (prefix padrão "ratelimit:stats"):
//
//	{prefix}:total               allowed|denied
//	{prefix}:policy              {policy}:allowed|denied
//	{prefix}:route               {METHOD path}:allowed|denied
//	{prefix}:minute:{yyyymmddhhmm} allowed|denied   (expira em ttl)
//	{prefix}:key:{key}           allowed|denied   (opcional, expira em ttl)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total, policy e route são cumulativos e não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

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

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
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

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

		if p := strings.TrimSpace(ev.Policy); p != "" {
			pipe.HIncrBy(ctx, s.prefix+":policy", p+":"+field, 1)
		}

		if s.bucket == "minute" {
			bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
			pipe.HIncrBy(ctx, bucketKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, bucketKey, s.ttl)
			}
		}

		if route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)); route != "" {
			pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
		}

		if s.trackKeys {
			if k := strings.TrimSpace(string(ev.Key)); k != "" {
				keyKey := s.prefix + ":key:" + k
				pipe.HIncrBy(ctx, keyKey, field, 1)
				if s.ttl > 0 {
					pipe.Expire(ctx, keyKey, s.ttl)
				}
			}
		}
		return nil
	})
	return err
}

// PolicyCounters lê {prefix}:policy e agrupa por política.
func (s *RedisStatsStore) PolicyCounters(ctx context.Context) (map[string]Counters, error) {
	raw, err := s.rdb.HGetAll(ctx, s.prefix+":policy").Result()
	if err != nil {
		return nil, fmt.Errorf("read policy stats: %w", err)
	}

	out := make(map[string]Counters, len(raw)/2)
	for field, val := range raw {
		i := strings.LastIndexByte(field, ':')
		if i <= 0 {
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
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
