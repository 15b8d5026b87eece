package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"PORT"`
	Env           string `mapstructure:"APP_ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	AllowedOrigin string `mapstructure:"ALLOWED_ORIGIN"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	AuthSecret            string `mapstructure:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `mapstructure:"ACCESS_TOKEN_TTL_MINUTES"`
	AdminUsername         string `mapstructure:"ADMIN_USERNAME"`
	AdminPassword         string `mapstructure:"ADMIN_PASSWORD"`
	AdminPasswordHash     string `mapstructure:"ADMIN_PASSWORD_HASH"`

	Timezone         string  `mapstructure:"TIMEZONE"`
	APIRatePerSecond float64 `mapstructure:"API_RATE_PER_SECOND"`
	APIRateBurst     int     `mapstructure:"API_RATE_BURST"`
	SeedDemoData     bool    `mapstructure:"SEED_DEMO_DATA"`
}

var keys = []string{
	"PORT", "APP_ENV", "LOG_LEVEL", "ALLOWED_ORIGIN",
	"DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"AUTH_SECRET", "ACCESS_TOKEN_TTL_MINUTES", "ADMIN_USERNAME", "ADMIN_PASSWORD", "ADMIN_PASSWORD_HASH",
	"TIMEZONE", "API_RATE_PER_SECOND", "API_RATE_BURST", "SEED_DEMO_DATA",
}

// Load reads the environment, falling back to an optional .env in the working directory.
// Secrets have no defaults; the server refuses to start without them.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 60)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("TIMEZONE", "Asia/Jakarta")
	v.SetDefault("API_RATE_PER_SECOND", 20)
	v.SetDefault("API_RATE_BURST", 40)
	v.SetDefault("SEED_DEMO_DATA", false)

	// Unmarshal only sees keys viper already knows about.
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	cfg.AdminUsername = strings.TrimSpace(cfg.AdminUsername)
	cfg.AdminPasswordHash = strings.TrimSpace(cfg.AdminPasswordHash)
	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 60
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Location resolves TIMEZONE, the zone the dashboard uses to decide what "today" is.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}
