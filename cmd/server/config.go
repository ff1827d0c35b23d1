package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/puris-api/internal/config"
)

// loadAppConfig loads the application configuration from environment
// variables and the optional config file at path.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"ops_port", cfg.Server.OpsPort,
		"log_level", cfg.Server.LogLevel,
		"partners", len(cfg.Auth.Partners),
		"kafka_enabled", cfg.Kafka.Enabled,
		"redis_enabled", cfg.Redis.Enabled,
		"telemetry_enabled", cfg.Telemetry.Enabled)

	return cfg, nil
}
