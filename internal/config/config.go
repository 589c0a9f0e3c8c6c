package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Session SessionConfig `mapstructure:"session"`
	OIDC    OIDCConfig    `mapstructure:"oidc"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Log     LogConfig     `mapstructure:"log"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Tree    TreeConfig    `mapstructure:"tree"`
	Content ContentConfig `mapstructure:"content"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port string    `mapstructure:"port"`
	TLS  TLSConfig `mapstructure:"tls"`
}

// TLSConfig holds TLS-specific configuration.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

// DBConfig holds database-specific configuration.
// Driver is one of "mysql", "sqlite3", "sqlite" or "postgres". MySQL DSNs need
// parseTime=true and multiStatements=true.
type DBConfig struct {
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// SessionConfig holds browser session configuration.
type SessionConfig struct {
	SecretKey string `mapstructure:"secretkey"`
	Lifetime  int    `mapstructure:"lifetime"` // hours
}

// OIDCConfig holds OIDC client configuration. SSO is disabled when IssuerURL is empty.
type OIDCConfig struct {
	IssuerURL    string `mapstructure:"issuer_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// AuthConfig holds API token and login throttling settings.
type AuthConfig struct {
	JWTSecret  string  `mapstructure:"jwt_secret"`
	TokenTTL   int     `mapstructure:"token_ttl"` // minutes
	LoginRate  float64 `mapstructure:"login_rate"` // attempts per second per client IP
	LoginBurst int     `mapstructure:"login_burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `mapstructure:"format"` // e.g., "json", "console"
}

// CacheConfig holds the key-value cache configuration.
type CacheConfig struct {
	FilePath string `mapstructure:"file_path"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

// AssetsConfig holds the blob directory for uploaded assets.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// TreeConfig bounds the page-tree walks.
type TreeConfig struct {
	MaxDepth       int `mapstructure:"max_depth"`
	MaxConcurrency int `mapstructure:"max_concurrency"`
	MaxPathHops    int `mapstructure:"max_path_hops"`
}

// ContentConfig controls how page content is stored.
type ContentConfig struct {
	Sanitize bool `mapstructure:"sanitize"`
}

// LoadConfig reads configuration from .env, config file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()

	// Set default values
	v.SetDefault("server.port", "8080")
	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.dsn", "cms.db")
	v.SetDefault("db.migrations_path", "migrations")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("session.secretkey", "")
	v.SetDefault("session.lifetime", 24)
	v.SetDefault("oidc.issuer_url", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 60*24)
	v.SetDefault("auth.login_rate", 0.2)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cache.file_path", "cache.db")
	v.SetDefault("cache.ttl", 60*60*24)
	v.SetDefault("assets.dir", "assets")
	v.SetDefault("tree.max_depth", 256)
	v.SetDefault("tree.max_concurrency", 16)
	v.SetDefault("tree.max_path_hops", 1024)
	v.SetDefault("content.sanitize", false)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/go-cms-app/")
	v.AddConfigPath("$HOME/.go-cms-app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	v.SetEnvPrefix("CMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	// AutomaticEnv only reaches keys that have a default.
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
