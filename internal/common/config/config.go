package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// ChatSrvConfig is the root configuration of the chat server.
	ChatSrvConfig struct {
		Server   ServerConfig   `yaml:"server"`
		Database DatabaseConfig `yaml:"database"`
		Logger   LoggerConfig   `yaml:"logger"`
		Metrics  MetricsConfig  `yaml:"metrics"`
	}

	// ServerConfig represents the HTTP/WebSocket listener configuration
	ServerConfig struct {
		Port      int    `yaml:"port"`
		ChatPath  string `yaml:"chat_path"`  // WebSocket endpoint path
		StaticDir string `yaml:"static_dir"` // directory served for all other routes
	}

	// DatabaseConfig represents the database configuration
	DatabaseConfig struct {
		Type     string `yaml:"type"` // mysql, postgres, sqlite
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
	}

	// MetricsConfig represents the Prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// LoadConfig loads the configuration from a YAML file with environment
// variable expansion. A .env file next to the process is honored when
// present.
func LoadConfig(path string) (*ChatSrvConfig, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data = resolveEnv(data)
	var cfg ChatSrvConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)
	return &cfg, nil
}

// setDefaults fills in defaults for omitted fields.
func setDefaults(cfg *ChatSrvConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ChatPath == "" {
		cfg.Server.ChatPath = "/CompeChat"
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = "static"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "mysql"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "chatsrv"
	}
}

// resolveEnv replaces ${VAR} and ${VAR:default} placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
