// Package config loads server settings from the environment.
//
// LOOKUP ORDER (later wins):
//  1. built-in defaults (SetDefault below)
//  2. an optional config file (YAML/TOML/JSON, keys as in the env table)
//  3. a .env file in the working directory, if present
//  4. real environment variables
//
// Keys are the lower-case form of the env var: PORT → port, SID_SECRET → sid_secret.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/homepage/internal/repository/sqldb"
)

// MinSIDSecretLength matches auth.NewSIDSigner.
const MinSIDSecretLength = 16

type Config struct {
	Port           int           `mapstructure:"port"`
	DBDriver       string        `mapstructure:"db_driver"`
	DatabaseURL    string        `mapstructure:"database_url"`
	SIDSecret      string        `mapstructure:"sid_secret"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	PresenceWindow time.Duration `mapstructure:"presence_window"`
	StaticDir      string        `mapstructure:"static_dir"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PruneSchedule  string        `mapstructure:"prune_schedule"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only safe behind a proxy that overwrites those headers.
	TrustProxy     bool          `mapstructure:"trust_proxy"`
	LogLevel       string        `mapstructure:"log_level"`

	// GeneratedSecret is true when SID_SECRET was empty and a throwaway one
	// was made up. sid cookies then stop verifying after a restart.
	GeneratedSecret bool `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_driver", sqldb.DriverSQLite)
	v.SetDefault("database_url", "data/site.db")
	v.SetDefault("sid_secret", "")
	v.SetDefault("session_ttl", 30*24*time.Hour)
	v.SetDefault("presence_window", 30*time.Second)
	v.SetDefault("static_dir", "public")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("rate_limit_rps", 10.0)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("prune_schedule", "@every 10m")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("log_level", "info")
}

// Load reads the configuration. file may be empty.
func Load(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.normalize()

	if cfg.SIDSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SIDSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBDriver == "postgres" {
		c.DBDriver = sqldb.DriverPostgres
	}

	origins := c.CORSOrigins[:0]
	for _, o := range c.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.CORSOrigins = origins
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	case c.DBDriver != sqldb.DriverSQLite && c.DBDriver != sqldb.DriverPostgres:
		return fmt.Errorf("config: DB_DRIVER must be %q or %q, got %q", sqldb.DriverSQLite, sqldb.DriverPostgres, c.DBDriver)
	case c.DatabaseURL == "":
		return errors.New("config: DATABASE_URL is required")
	case len(c.SIDSecret) < MinSIDSecretLength:
		return fmt.Errorf("config: SID_SECRET must be at least %d characters", MinSIDSecretLength)
	case c.SessionTTL <= 0:
		return errors.New("config: SESSION_TTL must be positive")
	case c.PresenceWindow <= 0:
		return errors.New("config: PRESENCE_WINDOW must be positive")
	case c.RateLimitRPS <= 0 || c.RateLimitBurst < 1:
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LOG_LEVEL (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	return level, nil
}

// IsSQLiteFile reports whether the database is a SQLite file on disk, whose
// directory may need creating.
func (c *Config) IsSQLiteFile() bool {
	return c.DBDriver == sqldb.DriverSQLite && c.DatabaseURL != ":memory:" &&
		!strings.HasPrefix(c.DatabaseURL, "file:")
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("config: generating SID secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
