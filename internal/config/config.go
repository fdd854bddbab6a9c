package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	defaultDatabaseURL    = "task_planner.db"
	defaultHTTPAddr       = ":8080"
	defaultReportInterval = 5 * time.Hour
)

// Config keeps runtime settings for the planner.
type Config struct {
	DatabaseURL    string
	HTTPAddr       string
	JWTSecret      string
	TelegramToken  string
	ReportInterval time.Duration
	ReportDailyAt  string
	RedisAddr      string
	RedisPassword  string
	LogLevel       string
	LogFormat      string

	httpAddrSet bool
}

// fileConfig mirrors Config for the optional TOML file. Pointers tell an
// absent key from an empty one.
type fileConfig struct {
	DatabaseURL         *string `toml:"database_url"`
	HTTPAddr            *string `toml:"http_addr"`
	JWTSecret           *string `toml:"jwt_secret"`
	TelegramToken       *string `toml:"telegram_token"`
	ReportIntervalHours *int    `toml:"report_interval_hours"`
	ReportDailyAt       *string `toml:"report_daily_at"`
	RedisAddr           *string `toml:"redis_addr"`
	RedisPassword       *string `toml:"redis_password"`
	LogLevel            *string `toml:"log_level"`
	LogFormat           *string `toml:"log_format"`
}

// Load reads configuration with sane defaults. Values come from, in rising
// precedence: defaults, the TOML file named by CONFIG_FILE, the environment.
// A .env file in the working directory is loaded into the environment first.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		DatabaseURL:    defaultDatabaseURL,
		ReportInterval: defaultReportInterval,
		LogLevel:       "info",
		LogFormat:      "text",
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	// Without an explicit HTTP_ADDR the API listens on the default address
	// only when it can authenticate requests.
	if !cfg.httpAddrSet && cfg.JWTSecret != "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}
	return cfg, cfg.validate()
}

// APIEnabled reports whether the HTTP API should be served.
func (c Config) APIEnabled() bool { return c.HTTPAddr != "" }

// BotEnabled reports whether the Telegram front end should run.
func (c Config) BotEnabled() bool { return c.TelegramToken != "" }

func (c *Config) applyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.HTTPAddr, fc.HTTPAddr)
	c.httpAddrSet = c.httpAddrSet || fc.HTTPAddr != nil
	setString(&c.JWTSecret, fc.JWTSecret)
	setString(&c.TelegramToken, fc.TelegramToken)
	setString(&c.ReportDailyAt, fc.ReportDailyAt)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPassword, fc.RedisPassword)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.ReportIntervalHours != nil {
		if *fc.ReportIntervalHours <= 0 {
			return fmt.Errorf("report_interval_hours must be positive")
		}
		c.ReportInterval = time.Duration(*fc.ReportIntervalHours) * time.Hour
	}
	return nil
}

func (c *Config) applyEnv() error {
	for key, dst := range map[string]*string{
		"DATABASE_URL":    &c.DatabaseURL,
		"HTTP_ADDR":       &c.HTTPAddr,
		"JWT_SECRET":      &c.JWTSecret,
		"TELEGRAM_TOKEN":  &c.TelegramToken,
		"REPORT_DAILY_AT": &c.ReportDailyAt,
		"REDIS_ADDR":      &c.RedisAddr,
		"REDIS_PASSWORD":  &c.RedisPassword,
		"LOG_LEVEL":       &c.LogLevel,
		"LOG_FORMAT":      &c.LogFormat,
	} {
		if raw, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(raw)
		}
	}

	if _, ok := os.LookupEnv("HTTP_ADDR"); ok {
		c.httpAddrSet = true
	}

	if raw := strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS")); raw != "" {
		interval, err := parseInterval(raw)
		if err != nil {
			return err
		}
		c.ReportInterval = interval
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = defaultDatabaseURL
	}
	return nil
}

func (c Config) validate() error {
	if c.APIEnabled() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when HTTP_ADDR is set (set HTTP_ADDR= to run without the API)")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func parseInterval(raw string) (time.Duration, error) {
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("REPORT_INTERVAL_HOURS must be a positive number of hours, got %q", raw)
	}
	return time.Duration(hours) * time.Hour, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
