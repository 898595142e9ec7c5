package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Port          string `yaml:"port"`
	Env           string `yaml:"env"`
	DatabaseURL   string `yaml:"database_url"`
	SessionSecret string `yaml:"session_secret"`
	SiteURL       string `yaml:"site_url"`

	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`

	SMTP SMTPConfig `yaml:"smtp"`

	CORSOrigins []string `yaml:"cors_origins"`
	CacheSize   int      `yaml:"cache_size"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether every SMTP setting needed to send mail is present.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port > 0 && s.Username != "" && s.Password != "" && s.From != ""
}

func defaults() *Config {
	return &Config{
		Port:          "8080",
		Env:           "development",
		DatabaseURL:   "host=localhost user=postgres password=postgres dbname=podnest port=5432 sslmode=disable",
		SessionSecret: "secret_key_change_me",
		SiteURL:       "http://localhost:8080",
		SMTP:          SMTPConfig{Port: 587},
		CORSOrigins:   []string{"http://localhost:3000"},
		CacheSize:     500,
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then .env and the process environment. Later sources win.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.Env, "ENV")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.SessionSecret, "SESSION_SECRET")
	setString(&c.SiteURL, "SITE_URL")
	setString(&c.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setInt(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.Username, "SMTP_USER")
	setString(&c.SMTP.Password, "SMTP_PASS")
	setString(&c.SMTP.From, "SMTP_FROM")
	setInt(&c.CacheSize, "CACHE_SIZE")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSOrigins = origins
	}
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("PORT must be a valid TCP port, got %q", c.Port)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive, got %d", c.CacheSize)
	}
	if c.IsProduction() && c.SessionSecret == defaults().SessionSecret {
		return fmt.Errorf("SESSION_SECRET must be set in production")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(dst *int, key string) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}
