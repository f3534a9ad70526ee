// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Transport   TransportConfig   `mapstructure:"transport"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Economy     EconomyConfig     `mapstructure:"economy"`
	Prestige    PrestigeConfig    `mapstructure:"prestige"`
	Playtime    PlaytimeConfig    `mapstructure:"playtime"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
}

// TransportConfig holds the platform channel listener configuration.
type TransportConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// EconomyConfig holds general economy settings.
type EconomyConfig struct {
	StartingGems float64 `mapstructure:"starting_gems"`
}

// PrestigeConfig holds prestige progression settings.
type PrestigeConfig struct {
	// Namespace is the permission namespace the multiplier permissions live
	// under, e.g. "lifestealz" for "lifestealz.prestige.multiplier.150".
	Namespace string `mapstructure:"namespace"`
	// GemRewardBase is multiplied by the newly observed level to produce the
	// advance reward.
	GemRewardBase float64 `mapstructure:"gem_reward_base"`
	// MultiplierPerLevel is the per-level increment over the neutral 1.0.
	MultiplierPerLevel float64 `mapstructure:"multiplier_per_level"`
	// PlaceholderKey is the oracle key holding the current prestige level.
	PlaceholderKey string `mapstructure:"placeholder_key"`
	// CommandKeyword marks player commands that may advance prestige.
	CommandKeyword string `mapstructure:"command_keyword"`
}

// PlaytimeConfig holds playtime accrual settings.
type PlaytimeConfig struct {
	PerHour        float64 `mapstructure:"per_hour"`
	DailyCap       float64 `mapstructure:"daily_cap"`
	PlaceholderKey string  `mapstructure:"placeholder_key"`
}

// LeaderboardConfig holds gems-top broadcast settings.
type LeaderboardConfig struct {
	Entries        int           `mapstructure:"entries"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`
	Broadcast      bool          `mapstructure:"broadcast"`
	Title          string        `mapstructure:"title"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Enable environment variable override
	// Environment variables use underscore separator and uppercase
	// e.g., DATABASE_HOST, PRESTIGE_GEM_REWARD_BASE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional - env vars can provide all config)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Transport defaults
	v.SetDefault("transport.listen_addr", ":8456")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gems")
	v.SetDefault("database.name", "gems")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Economy defaults
	v.SetDefault("economy.starting_gems", 0)

	// Prestige defaults
	v.SetDefault("prestige.namespace", "lifestealz")
	v.SetDefault("prestige.gem_reward_base", 50)
	v.SetDefault("prestige.multiplier_per_level", 0.05)
	v.SetDefault("prestige.placeholder_key", "lifestealz_prestige_count")
	v.SetDefault("prestige.command_keyword", "prestige")

	// Playtime defaults
	v.SetDefault("playtime.per_hour", 10)
	v.SetDefault("playtime.daily_cap", 1000)
	v.SetDefault("playtime.placeholder_key", "yourplaytime_daily")

	// Leaderboard defaults
	v.SetDefault("leaderboard.entries", 10)
	v.SetDefault("leaderboard.update_interval", "5m")
	v.SetDefault("leaderboard.broadcast", false)
	v.SetDefault("leaderboard.title", "Top gem holders")
}
