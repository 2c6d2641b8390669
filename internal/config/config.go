package config

import "time"

// Auth modes.
const (
	// AuthModeRemote verifies credentials against the external identity
	// service's /collaboration/verify endpoint.
	AuthModeRemote = "remote"
	// AuthModeToken verifies credentials locally as signed tokens.
	AuthModeToken = "token"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	AuthMode      string        `mapstructure:"auth_mode" yaml:"auth_mode"`
	VerifyBaseURL string        `mapstructure:"verify_base_url" yaml:"verify_base_url"`
	VerifyTimeout time.Duration `mapstructure:"verify_timeout" yaml:"verify_timeout"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// SessionBuffer is the per-connection outbound event buffer. A session
	// that falls this far behind starts losing broadcasts.
	SessionBuffer int `mapstructure:"session_buffer" yaml:"session_buffer"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		AuthMode:          AuthModeRemote,
		VerifyTimeout:     10 * time.Second,
		SessionBuffer:     16,
	}
}
