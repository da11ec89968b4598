package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from YAML with environment
// overrides for deployment-specific values.
type Config struct {
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Live struct {
		MonitorInterval time.Duration `yaml:"monitor_interval"`
		EndGrace        time.Duration `yaml:"end_grace"`
	} `yaml:"live"`

	Chat struct {
		BotInterval    time.Duration `yaml:"bot_interval"`
		HistoryLimit   int           `yaml:"history_limit"`
		MaxContentLen  int           `yaml:"max_content_len"`
		MaxUsernameLen int           `yaml:"max_username_len"`
	} `yaml:"chat"`

	NATS struct {
		URL        string `yaml:"url"`
		StreamName string `yaml:"stream_name"`
	} `yaml:"nats"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8000"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Live.MonitorInterval = 30 * time.Second
	cfg.Live.EndGrace = 15 * time.Second
	cfg.Chat.BotInterval = 5 * time.Minute
	cfg.Chat.HistoryLimit = 200
	cfg.Chat.MaxContentLen = 500
	cfg.Chat.MaxUsernameLen = 50
	cfg.NATS.URL = "nats://localhost:4222"
	cfg.NATS.StreamName = "LIVE_EVENTS"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Auth.JWTSecret = "carnaval-cadiz-secret-2025"
	cfg.Auth.TokenTTL = 30 * 24 * time.Hour
	return cfg
}

// Load reads the YAML config at path and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Addr = getEnv("HTTP_ADDR", cfg.Server.Addr)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
