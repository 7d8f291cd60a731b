package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaimg/internal/config"
)

func TestNew(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     *config.RateLimitConfig
		want    any
		wantErr bool
	}{
		{name: "nil", cfg: nil, want: &NoopLimiter{}},
		{name: "disabled", cfg: &config.RateLimitConfig{Backend: "redis"}, want: &NoopLimiter{}},
		{
			name: "memory",
			cfg: &config.RateLimitConfig{
				Enabled: true, Backend: config.RateLimitBackendMemory,
				Requests: 5, Window: config.Duration(time.Second), Burst: 5,
			},
			want: &TokenBucket{},
		},
		{
			name: "redis",
			cfg: &config.RateLimitConfig{
				Enabled: true, Backend: config.RateLimitBackendRedis,
				Requests: 5, Window: config.Duration(time.Second),
				Redis: &config.RedisConfig{Address: mr.Addr()},
			},
			want: &Redis{},
		},
		{
			name:    "redis without settings",
			cfg:     &config.RateLimitConfig{Enabled: true, Backend: config.RateLimitBackendRedis, Requests: 1},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			cfg:     &config.RateLimitConfig{Enabled: true, Backend: "etcd"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := New(context.Background(), tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = l.Close() })
			assert.IsType(t, tt.want, l)
		})
	}
}
