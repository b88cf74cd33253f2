package config

import (
	"os"
	"testing"
)

var allKeys = []string{
	"APP_PORT", "DATABASE_DSN", "JWT_SECRET", "APP_ENV",
	"ACCESS_TOKEN_TTL_MINUTES", "REFRESH_TOKEN_TTL_DAYS", "ALLOW_OPEN_DIRECT_ROOMS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 7", cfg.RefreshTokenTTLDays)
	}
	if cfg.AllowOpenDirectRooms {
		t.Error("Load() AllowOpenDirectRooms = true, want false by default")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("APP_PORT", "9090")
	os.Setenv("DATABASE_DSN", "user:pass@tcp(db:3306)/chat_app?parseTime=True")
	os.Setenv("JWT_SECRET", "my-secret")
	os.Setenv("APP_ENV", "prod")
	os.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	os.Setenv("REFRESH_TOKEN_TTL_DAYS", "14")
	os.Setenv("ALLOW_OPEN_DIRECT_ROOMS", "true")
	defer clearEnv(t)

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.DatabaseDSN != "user:pass@tcp(db:3306)/chat_app?parseTime=True" {
		t.Errorf("Load() DatabaseDSN = %v", cfg.DatabaseDSN)
	}
	if cfg.JWTSecret != "my-secret" {
		t.Errorf("Load() JWTSecret = %v, want my-secret", cfg.JWTSecret)
	}
	if cfg.Env != "prod" {
		t.Errorf("Load() Env = %v, want prod", cfg.Env)
	}
	if cfg.AccessTokenTTLMinutes != 30 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 30", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 14 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 14", cfg.RefreshTokenTTLDays)
	}
	if !cfg.AllowOpenDirectRooms {
		t.Error("Load() AllowOpenDirectRooms = false, want true")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	os.Setenv("ACCESS_TOKEN_TTL_MINUTES", "invalid")
	os.Setenv("REFRESH_TOKEN_TTL_DAYS", "-5")
	os.Setenv("ALLOW_OPEN_DIRECT_ROOMS", "maybe")
	defer clearEnv(t)

	cfg := Load()

	// Should fall back to defaults
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15 (default)", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 7 (default)", cfg.RefreshTokenTTLDays)
	}
	if cfg.AllowOpenDirectRooms {
		t.Error("Load() AllowOpenDirectRooms = true, want false for invalid value")
	}
}
