// Package config provides configuration for the casino service.
//
// Values come from the environment with sensible development defaults. A
// YAML file can be layered underneath via CASINO_CONFIG_FILE; environment
// variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	Game         GameConfig         `yaml:"game"`
	ProfileStore ProfileStoreConfig `yaml:"profile_store"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenExpiry       time.Duration `yaml:"token_expiry"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	MaxFailedAttempts int           `yaml:"max_failed_attempts"`
	LockoutDuration   time.Duration `yaml:"lockout_duration"`
	OperatorKey       string        `yaml:"operator_key"`
}

// GameConfig holds game-related configuration
type GameConfig struct {
	MinBet            int64 `yaml:"min_bet"`
	MaxBet            int64 `yaml:"max_bet"`
	StartingCredits   int64 `yaml:"starting_credits"`
	LargeWinThreshold int64 `yaml:"large_win_threshold"`
}

// ProfileStoreConfig holds the external profile/history store settings.
// An empty URL disables mirroring.
type ProfileStoreConfig struct {
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	SecretKey string        `yaml:"secret_key"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load builds the configuration: defaults, then the optional YAML file,
// then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CASINO_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			DSN:    "host=localhost dbname=casino sslmode=disable",
		},
		Auth: AuthConfig{
			JWTSecret:         "casino-dev-secret-change-in-production",
			TokenExpiry:       24 * time.Hour,
			SessionTimeout:    30 * time.Minute,
			MaxFailedAttempts: 3,
			LockoutDuration:   30 * time.Minute,
			OperatorKey:       "casino-dev-operator-key",
		},
		Game: GameConfig{
			MinBet:            1,
			MaxBet:            1000,
			StartingCredits:   1000,
			LargeWinThreshold: 5000,
		},
		ProfileStore: ProfileStoreConfig{
			Timeout: 5 * time.Second,
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "CASINO_PORT")
	setString(&cfg.Database.Driver, "CASINO_DB_DRIVER")
	setString(&cfg.Database.DSN, "CASINO_DB_DSN")
	setString(&cfg.Auth.JWTSecret, "CASINO_JWT_SECRET")
	setString(&cfg.Auth.OperatorKey, "CASINO_OPERATOR_KEY")
	setInt64(&cfg.Game.MinBet, "CASINO_MIN_BET")
	setInt64(&cfg.Game.MaxBet, "CASINO_MAX_BET")
	setInt64(&cfg.Game.StartingCredits, "CASINO_STARTING_CREDITS")
	setInt64(&cfg.Game.LargeWinThreshold, "CASINO_LARGE_WIN_THRESHOLD")
	setString(&cfg.ProfileStore.URL, "CASINO_PROFILE_STORE_URL")
	setString(&cfg.ProfileStore.APIKey, "CASINO_PROFILE_STORE_API_KEY")
	setString(&cfg.ProfileStore.SecretKey, "CASINO_PROFILE_STORE_SECRET")
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt64(dst *int64, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = n
		}
	}
}
