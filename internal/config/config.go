package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// HeartbeatInterval is how often clients are expected to ping.
	// A client silent for HeartbeatInterval*HeartbeatMisses is dropped.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	HeartbeatMisses   int           `mapstructure:"heartbeat_misses" yaml:"heartbeat_misses"`

	// MaxChatLen and MaxWorldLines bound per-room memory by truncation.
	MaxChatLen    int `mapstructure:"max_chat_len" yaml:"max_chat_len"`
	MaxWorldLines int `mapstructure:"max_world_lines" yaml:"max_world_lines"`

	// RoomExpiry is how long an inactive room row survives before the
	// background sweep deletes it.
	RoomExpiry time.Duration `mapstructure:"room_expiry" yaml:"room_expiry"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":30820",
		LogLevel:          "info",
		DatabasePath:      "backworld.db",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		JWTSecret:         "change-me-in-production",
		JWTIssuer:         "backworld",
		JWTAudience:       "backworld-clients",
		JWTTTL:            7 * 24 * time.Hour,
		HeartbeatInterval: 20 * time.Second,
		HeartbeatMisses:   3,
		MaxChatLen:        500,
		MaxWorldLines:     200000,
		RoomExpiry:        time.Minute,
	}
}
