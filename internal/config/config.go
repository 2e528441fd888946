// Package config loads the transport configuration surface via viper,
// following the same nested-mapstructure-tag shape and load-falls-back-
// to-default pattern the teacher's own config package uses.
package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the demo binaries under cmd/.
type Config struct {
	Stdio StdioConfig `mapstructure:"stdio"`
	HTTP  HTTPConfig  `mapstructure:"http"`
	Log   LogConfig   `mapstructure:"log"`
}

// StdioConfig configures the subprocess pipe transport.
type StdioConfig struct {
	ServerPath  string   `mapstructure:"server_path"`
	ServerArgs  []string `mapstructure:"server_args"`
	BufferSize  int      `mapstructure:"buffer_size"`
	CaptureLogs bool     `mapstructure:"capture_logs"`
}

// HTTPConfig configures the HTTP+SSE transport.
type HTTPConfig struct {
	Addr        string `mapstructure:"addr"`
	BaseURL     string `mapstructure:"base_url"`
	AuthToken   string `mapstructure:"auth_token"`
	IdleTimeout int    `mapstructure:"idle_timeout_seconds"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Default returns the configuration used when no file is supplied or
// loading one fails.
func Default() *Config {
	return &Config{
		Stdio: StdioConfig{
			ServerPath:  "mcp-server",
			BufferSize:  4096,
			CaptureLogs: true,
		},
		HTTP: HTTPConfig{
			Addr:        ":8765",
			BaseURL:     "http://localhost:8765",
			IdleTimeout: 300,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file at path, falling back to
// Default() on any error, exactly as the teacher's cmd/main.go does with
// its own config.Load/config.Default pair.
func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("stdio.buffer_size", 4096)
	viper.SetDefault("stdio.capture_logs", true)
	viper.SetDefault("http.addr", ":8765")
	viper.SetDefault("http.base_url", "http://localhost:8765")
	viper.SetDefault("http.idle_timeout_seconds", 300)
	viper.SetDefault("log.level", "info")

	viper.SetEnvPrefix("MCP")
	viper.AutomaticEnv()

	_ = viper.BindEnv("http.auth_token", "MCP_HTTP_AUTH_TOKEN")
	_ = viper.BindEnv("stdio.server_path", "MCP_STDIO_SERVER_PATH")

	if err := viper.ReadInConfig(); err != nil {
		return Default(), err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Default(), err
	}

	return &cfg, nil
}
