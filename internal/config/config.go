package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" validate:"required"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	OpsPort  int    `mapstructure:"ops_port"  validate:"required,gt=0,lt=65536,nefield=Port"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// APIKeyHeader is the header partners put their API key in.
	APIKeyHeader string `mapstructure:"api_key_header" validate:"required"`

	// CORSAllowedOrigins is the allow-list for cross-origin calls.
	// An empty list rejects every cross-origin request.
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"gt=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"     validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gt=0"`
}

// AuthConfig contains the partner/key registry settings.
type AuthConfig struct {
	// Partners are the partners allowed to call the API.
	Partners []PartnerConfig `mapstructure:"partners" validate:"required,min=1,dive"`

	// PartnerKeys is a compact form of Partners for environment variables:
	// "BPNL...=key,BPNL...=key". Entries are appended to Partners on load.
	PartnerKeys string `mapstructure:"partner_keys"`

	BCryptCost int `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// PartnerConfig registers one partner and its API key.
// Key is either the plaintext key or its bcrypt hash (recognised by the
// "$2" prefix). Hashes are preferred outside local development.
type PartnerConfig struct {
	BPNL string `mapstructure:"bpnl" validate:"required,len=16,startswith=BPNL"`
	Name string `mapstructure:"name"`
	Key  string `mapstructure:"key"  validate:"required,min=16"`
}

// DispatcherConfig controls the background request dispatcher.
type DispatcherConfig struct {
	WorkerCount        int           `mapstructure:"worker_count"         validate:"gt=0"`
	QueueSize          int           `mapstructure:"queue_size"           validate:"gt=0"`
	StuckRequestAge    time.Duration `mapstructure:"stuck_request_age"    validate:"gt=0"`
	StuckCheckInterval time.Duration `mapstructure:"stuck_check_interval" validate:"gt=0"`
}

// KafkaConfig configures publication of request lifecycle events.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic"   validate:"required_if=Enabled true"`
}

// RedisConfig configures the response replay guard.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"       validate:"required_if=Enabled true"`
	ReplayTTL time.Duration `mapstructure:"replay_ttl" validate:"gt=0"`
}

// TelemetryConfig configures OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"     validate:"required_if=Enabled true"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
	Insecure    bool   `mapstructure:"insecure"`
}
