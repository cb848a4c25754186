package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const envPrefix = "TICKERVAULT"

// SetDefaults installs default values on a viper instance. Called once for
// the process-wide instance by the root command, and by tests on fresh
// instances.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "stock-data.db")

	v.SetDefault("api.base_url", "https://eodhistoricaldata.com")
	// empty defaults keep secret keys visible to AutomaticEnv during Unmarshal
	v.SetDefault("api.token", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("limiter.state_path", "limits.yaml")

	v.SetDefault("fetch.tickers_file", "stocks.txt")
	v.SetDefault("fetch.wait", false)
	v.SetDefault("fetch.max_wait", "5m")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
}

// BindEnv wires TICKERVAULT_* environment variables, with dots and dashes
// mapped to underscores (e.g. TICKERVAULT_API_TOKEN -> api.token).
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load decodes the process-wide viper instance into a Config.
func Load() (*Config, error) {
	return Decode(viper.GetViper())
}

// Decode unmarshals a viper instance into a Config, converting duration
// strings along the way.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}
