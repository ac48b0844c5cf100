package ratelimit

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 接続できないRedisでは通す
func TestRedisStore_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	s := NewRedisStore(client, 1, 1, zerolog.Nop())

	for i := 0; i < 3; i++ {
		ok, err := s.Allow("10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestNewRedisStore_Window(t *testing.T) {
	tests := []struct {
		name       string
		rps        float64
		burst      int
		wantLimit  int64
		wantWindow time.Duration
	}{
		{name: "burst twice rps", rps: 20, burst: 40, wantLimit: 40, wantWindow: 2 * time.Second},
		{name: "slow rate", rps: 0.5, burst: 1, wantLimit: 1, wantWindow: 2 * time.Second},
		{name: "burst equals rps", rps: 10, burst: 10, wantLimit: 10, wantWindow: time.Second},
		{name: "no rps", rps: 0, burst: 5, wantLimit: 5, wantWindow: time.Second},
		{name: "no burst", rps: 4, burst: 0, wantLimit: 1, wantWindow: 250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRedisStore(nil, tt.rps, tt.burst, zerolog.Nop())
			assert.Equal(t, tt.wantLimit, s.limit)
			assert.Equal(t, tt.wantWindow, s.window)
		})
	}
}
