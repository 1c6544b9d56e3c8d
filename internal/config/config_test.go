package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BnaryBlade/loyalty-hive-core/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("IDEMPOTENCY_TTL", "")

	cfg := config.Load()
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "memory", cfg.StoreDriver)
	require.Equal(t, time.Hour, cfg.JWTAccessTTL)
	require.Empty(t, cfg.CORSAllowedOrigins)
	require.Greater(t, cfg.IdempotencyTTL, cfg.CacheTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "5s")
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("INITIAL_BACKOFF", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://shop.example.com, ,https://admin.example.com ")

	cfg := config.Load()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.CacheTTL)
	require.Equal(t, 3, cfg.MaxRetries)
	require.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)
}
