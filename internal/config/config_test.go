package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_ADDR", "DB_MIGRATE", "CHAT_SESSION_TTL", "CHAT_UNKNOWN_LEVEL_POLICY", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Env != "development" || cfg.HTTPAddr != ":8086" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DBMigrate {
		t.Fatalf("migrations are opt-in")
	}
	if cfg.ChatSessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %s", cfg.ChatSessionTTL)
	}
	if cfg.ChatUnknownLevelPolicy != "fail_open" {
		t.Fatalf("expected fail_open, got %s", cfg.ChatUnknownLevelPolicy)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_MIGRATE", "true")
	t.Setenv("CHAT_SESSION_TTL", "-1h")
	t.Setenv("CHAT_BACKEND_TIMEOUT", "not-a-duration")
	t.Setenv("CHAT_BACKEND_URL", "")
	t.Setenv("CHATBOT_URL", "http://bot:3000")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if !cfg.IsProduction() || !cfg.DBMigrate {
		t.Fatalf("unexpected flags %+v", cfg)
	}
	if cfg.ChatSessionTTL != 24*time.Hour {
		t.Fatalf("non-positive ttl falls back to 24h, got %s", cfg.ChatSessionTTL)
	}
	if cfg.ChatBackendTimeout != 8*time.Second {
		t.Fatalf("bad duration falls back, got %s", cfg.ChatBackendTimeout)
	}
	if cfg.ChatBackendURL != "http://bot:3000" {
		t.Fatalf("expected legacy CHATBOT_URL, got %q", cfg.ChatBackendURL)
	}
	if len(cfg.CorsAllowedOrigins) != 2 || cfg.CorsAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CorsAllowedOrigins)
	}
}
