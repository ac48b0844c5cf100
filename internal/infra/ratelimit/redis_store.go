package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// echo の RateLimiter 用ストア（固定ウィンドウ）。
// 複数インスタンスで同じ上限を共有したいときに使う
type RedisStore struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	log    zerolog.Logger
}

// NewRedisStore は rps を平均レート、burst を1ウィンドウの上限にする。
// ウィンドウ長は burst / rps 秒（burst 回分が補充される時間）
func NewRedisStore(client *redis.Client, rps float64, burst int, log zerolog.Logger) *RedisStore {
	if burst < 1 {
		burst = 1
	}
	window := time.Second
	if rps > 0 {
		window = time.Duration(float64(burst) / rps * float64(time.Second))
	}
	if window < time.Millisecond {
		window = time.Millisecond
	}
	return &RedisStore{
		client: client,
		prefix: "ratelimit:",
		limit:  int64(burst),
		window: window,
		log:    log,
	}
}

// Allow は identifier のウィンドウ内カウントを進めて、上限以内なら true。
// Redis が落ちているときは通す（止めるとAPI全体が止まる）
func (s *RedisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	slot := time.Now().UnixNano() / int64(s.window)
	key := fmt.Sprintf("%s%s:%d", s.prefix, identifier, slot)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*s.window)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("identifier", identifier).Msg("rate limit store unavailable")
		return true, nil
	}
	return incr.Val() <= s.limit, nil
}
