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
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Admin       AdminConfig       `mapstructure:"admin"`
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

// RedisConfig holds the event-publishing redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// SchedulerConfig holds the per-guild operation scheduler settings.
type SchedulerConfig struct {
	OpTimeout time.Duration `mapstructure:"op_timeout"`
	MaxDepth  int           `mapstructure:"max_depth"`
}

// MatchmakingConfig holds matchmaking and rating defaults. The per-guild
// values stored in the database override these.
type MatchmakingConfig struct {
	DefaultWinModifier  int           `mapstructure:"default_win_modifier"`
	DefaultLossModifier int           `mapstructure:"default_loss_modifier"`
	AllowNegativeScore  bool          `mapstructure:"allow_negative_score"`
	QueueTimeout        time.Duration `mapstructure:"queue_timeout"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	LeaderboardSize     int           `mapstructure:"leaderboard_size"`
	PickOrder           string        `mapstructure:"pick_order"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
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
	// e.g., DATABASE_HOST, SCHEDULER_OP_TIMEOUT
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
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pugbot")
	v.SetDefault("database.name", "pugbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "pugbot.events")

	// Scheduler defaults
	v.SetDefault("scheduler.op_timeout", "30s")
	v.SetDefault("scheduler.max_depth", 100)

	// Matchmaking defaults
	v.SetDefault("matchmaking.default_win_modifier", 10)
	v.SetDefault("matchmaking.default_loss_modifier", 5)
	v.SetDefault("matchmaking.allow_negative_score", false)
	v.SetDefault("matchmaking.queue_timeout", "2h")
	v.SetDefault("matchmaking.sweep_interval", "5m")
	v.SetDefault("matchmaking.leaderboard_size", 100)
	v.SetDefault("matchmaking.pick_order", "pick_two")
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}
