package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var keys = []string{
	"CONFIG_PATH", "PORT", "DATABASE_URL", "JWT_SECRET", "ACCESS_TOKEN_TTL",
	"REFRESH_TOKEN_TTL", "REDIS_URL", "REMINDER_SCHEDULE", "TIMEZONE",
	"EMBEDDED_WORKER", "TELEGRAM_BOT_TOKEN", "TELEGRAM_API_URL", "LOG_LEVEL",
	"LOG_FORMAT", "FRONTEND_URL",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.AccessTokenTTL != 30*time.Minute || cfg.RefreshTokenTTL != 24*time.Hour {
		t.Errorf("unexpected token lifetimes %s / %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	if cfg.ReminderSchedule != "@every 1m" {
		t.Errorf("unexpected schedule %q", cfg.ReminderSchedule)
	}
	if !cfg.EmbeddedWorker {
		t.Error("expected embedded worker by default")
	}
	if cfg.TelegramBotToken != "" {
		t.Error("expected no bot token by default")
	}
	if got := cfg.Location().String(); got != "Europe/Moscow" {
		t.Errorf("expected Europe/Moscow, got %s", got)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("EMBEDDED_WORKER", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != 9000 || cfg.AccessTokenTTL != 5*time.Minute || cfg.EmbeddedWorker {
		t.Errorf("env values not applied: %+v", cfg)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", cfg.Location())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"missing jwt secret": {},
		"bad timezone":       {"JWT_SECRET": "secret", "TIMEZONE": "Mars/Olympus"},
		"zero ttl":           {"JWT_SECRET": "secret", "REFRESH_TOKEN_TTL": "0s"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}

			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	data := "jwt_secret: from-file\nport: 7000\nreminder_schedule: \"@every 5m\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.JWTSecret != "from-file" || cfg.ReminderSchedule != "@every 5m" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Port != 7001 {
		t.Errorf("expected environment to override file, got port %d", cfg.Port)
	}
}

func TestLoad_MissingConfigFileFallsBackToEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yml"))
	t.Setenv("JWT_SECRET", "secret")

	if _, err := Load(); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
}
