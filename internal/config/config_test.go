package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"CONFIG_FILE", "DATABASE_URL", "HTTP_ADDR", "JWT_SECRET", "TELEGRAM_TOKEN",
	"REPORT_INTERVAL_HOURS", "REPORT_DAILY_AT", "REDIS_ADDR", "REDIS_PASSWORD",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "task_planner.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" || !cfg.APIEnabled() {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.ReportInterval != 5*time.Hour {
		t.Errorf("ReportInterval = %v", cfg.ReportInterval)
	}
	if cfg.BotEnabled() {
		t.Error("bot should be disabled without a token")
	}
}

func TestLoadRequiresSecretForAPI(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for HTTP_ADDR without JWT_SECRET")
	}

	t.Setenv("HTTP_ADDR", "")
	t.Setenv("TELEGRAM_TOKEN", "token")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("bot-only config: %v", err)
	}
	if cfg.APIEnabled() || !cfg.BotEnabled() {
		t.Errorf("got api=%v bot=%v, want bot only", cfg.APIEnabled(), cfg.BotEnabled())
	}
}

func TestLoadTokenOnlyRunsBot(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIEnabled() || !cfg.BotEnabled() {
		t.Errorf("got api=%v bot=%v, want bot only", cfg.APIEnabled(), cfg.BotEnabled())
	}
}

func TestLoadReportInterval(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "12", want: 12 * time.Hour},
		{raw: "0", wantErr: true},
		{raw: "-3", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "s3cret")
			t.Setenv("REPORT_INTERVAL_HOURS", tt.raw)
			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && cfg.ReportInterval != tt.want {
				t.Errorf("ReportInterval = %v, want %v", cfg.ReportInterval, tt.want)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.toml")
	content := `
database_url = "postgres://planner@localhost/planner"
jwt_secret = "from-file"
report_interval_hours = 2
report_daily_at = "08:30"
redis_addr = "localhost:6379"
log_format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://planner@localhost/planner" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("environment should override the file, JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.ReportInterval != 2*time.Hour || cfg.ReportDailyAt != "08:30" {
		t.Errorf("report settings = %v %q", cfg.ReportInterval, cfg.ReportDailyAt)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.LogFormat != "json" {
		t.Errorf("redis/log = %q %q", cfg.RedisAddr, cfg.LogFormat)
	}
}

func TestLoadRejectsBadLogFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("LOG_FORMAT", "xml")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}
