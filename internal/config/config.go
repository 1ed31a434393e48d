package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig      `mapstructure:"server"`
	Upstream      UpstreamConfig    `mapstructure:"upstream"`
	Permissions   PermissionsConfig `mapstructure:"permissions"`
	SessionSecret string            `mapstructure:"session_secret"`
	AdminRole     string            `mapstructure:"admin_role"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// UpstreamConfig holds the connection settings for the church-management
// platform. The client id/secret pair is the service-level credential;
// a missing credential surfaces as an authentication error on first use,
// not at startup.
type UpstreamConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	TokenURL           string `mapstructure:"token_url"`
	ClientID           string `mapstructure:"client_id"`
	ClientSecret       string `mapstructure:"client_secret"`
	Scope              string `mapstructure:"scope"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	TokenMarginSeconds int    `mapstructure:"token_margin_seconds"`
}

// Timeout returns the HTTP client timeout for upstream calls.
func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

// TokenMargin returns the safety margin subtracted from token lifetimes.
func (u UpstreamConfig) TokenMargin() time.Duration {
	return time.Duration(u.TokenMarginSeconds) * time.Second
}

// PermissionsConfig selects where application/permission rows are read from:
// "upstream" (the platform's own tables, the system of record) or "postgres"
// (a locally mirrored copy).
type PermissionsConfig struct {
	Driver          string         `mapstructure:"driver"`
	CacheTTLSeconds int            `mapstructure:"cache_ttl_seconds"`
	Database        DatabaseConfig `mapstructure:"database"`
}

// CacheTTL returns the route/application cache lifetime.
func (p PermissionsConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSeconds) * time.Second
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

// ConnString returns the PostgreSQL connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("upstream.timeout_seconds", 30)
	viper.SetDefault("upstream.token_margin_seconds", 90)
	viper.SetDefault("permissions.driver", "upstream")
	viper.SetDefault("permissions.cache_ttl_seconds", 30)
	viper.SetDefault("permissions.database.host", "localhost")
	viper.SetDefault("permissions.database.port", 5432)
	viper.SetDefault("permissions.database.pool_size", 10)
	viper.SetDefault("session_secret", "changeme-secret")
	viper.SetDefault("admin_role", "Administrators")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
