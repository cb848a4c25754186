package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Decode(v)
	require.NoError(t, err)

	require.Equal(t, "libsql", cfg.Store.Driver)
	require.Equal(t, "stock-data.db", cfg.Store.Path)
	require.Equal(t, "https://eodhistoricaldata.com", cfg.API.BaseURL)
	require.Equal(t, 30*time.Second, cfg.API.Timeout)
	require.Equal(t, "limits.yaml", cfg.Limiter.StatePath)
	require.Equal(t, "stocks.txt", cfg.Fetch.TickersFile)
	require.Equal(t, 5*time.Minute, cfg.Fetch.MaxWait)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestDecodeOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("api.token", "demo-token")
	v.Set("api.timeout", "90s")
	v.Set("limiter.limits", map[string]int{"day": 800, "minute": 8})

	cfg, err := Decode(v)
	require.NoError(t, err)

	require.Equal(t, "demo-token", cfg.API.Token)
	require.Equal(t, 90*time.Second, cfg.API.Timeout)
	require.Equal(t, map[string]int{"day": 800, "minute": 8}, cfg.Limiter.Limits)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("TICKERVAULT_API_TOKEN", "env-token")
	t.Setenv("TICKERVAULT_LIMITER_STATE_PATH", "/tmp/limits.yaml")

	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	cfg, err := Decode(v)
	require.NoError(t, err)
	require.Equal(t, "env-token", cfg.API.Token)
	require.Equal(t, "/tmp/limits.yaml", cfg.Limiter.StatePath)
}
