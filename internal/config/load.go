package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PURIS"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the config file at path when it is
// not empty. A missing default config file is not an error.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly for AutomaticEnv to
	// reach them during Unmarshal.
	for _, key := range []string{"database.url", "auth.partner_keys", "kafka.brokers", "redis.addr", "telemetry.endpoint"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	partners, err := ParsePartnerKeys(cfg.Auth.PartnerKeys)
	if err != nil {
		return nil, err
	}
	cfg.Auth.Partners = append(cfg.Auth.Partners, partners...)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ops_port", 9090)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.api_key_header", "X-API-KEY")
	v.SetDefault("server.cors_allowed_origins", []string{})
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("dispatcher.worker_count", 2)
	v.SetDefault("dispatcher.queue_size", 100)
	v.SetDefault("dispatcher.stuck_request_age", "30m")
	v.SetDefault("dispatcher.stuck_check_interval", "5m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "puris.request-events")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.replay_ttl", "24h")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "puris-api")
	v.SetDefault("telemetry.insecure", true)
}

// ParsePartnerKeys parses the compact "BPNL=key,BPNL=key" form.
// Whitespace around entries is ignored. An empty string yields no partners.
func ParsePartnerKeys(raw string) ([]PartnerConfig, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var partners []PartnerConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		bpnl, key, ok := strings.Cut(entry, "=")
		if !ok || bpnl == "" || key == "" {
			return nil, fmt.Errorf("malformed partner key entry %q: expected BPNL=key", redactEntry(entry))
		}
		partners = append(partners, PartnerConfig{
			BPNL: strings.TrimSpace(bpnl),
			Key:  strings.TrimSpace(key),
		})
	}
	return partners, nil
}

// redactEntry keeps the partner part of a malformed entry for the error
// message and drops anything that may be a key.
func redactEntry(entry string) string {
	if bpnl, _, ok := strings.Cut(entry, "="); ok {
		return bpnl + "=[REDACTED]"
	}
	if len(entry) > 4 {
		return entry[:4] + "..."
	}
	return entry
}
