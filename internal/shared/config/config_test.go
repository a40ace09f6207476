package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("AUTOSAVE_DEBOUNCE", "")
	t.Setenv("OBJECT_STORE", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.AutosaveDebounce != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s debounce, got %s", cfg.AutosaveDebounce)
	}
	if cfg.ObjectStoreType != "local" {
		t.Fatalf("expected local store, got %q", cfg.ObjectStoreType)
	}
	if !cfg.IsDevLike() {
		t.Fatalf("expected dev-like config")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("AUTOSAVE_DEBOUNCE", "250ms")
	t.Setenv("EDITOR_IDLE_TTL", "not-a-duration")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("PUBLIC_BASE_URL", "https://cv.example/")

	cfg := Load()
	if cfg.Env != "production" || cfg.IsDevLike() {
		t.Fatalf("expected production env, got %q", cfg.Env)
	}
	if cfg.AutosaveDebounce != 250*time.Millisecond {
		t.Fatalf("expected 250ms debounce, got %s", cfg.AutosaveDebounce)
	}
	if cfg.EditorIdleTTL != defaultEditorIdleTTL {
		t.Fatalf("expected default idle ttl for invalid value, got %s", cfg.EditorIdleTTL)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowOrigin)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected s3 store, got %q", cfg.ObjectStoreType)
	}
	if cfg.PublicBaseURL != "https://cv.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicBaseURL)
	}
}

func TestValidate(t *testing.T) {
	dev := Config{Env: "dev", ObjectStoreType: "local", AutosaveDebounce: time.Second}
	if err := dev.Validate(); err != nil {
		t.Fatalf("dev config should be valid: %v", err)
	}

	prod := Config{Env: "production", ObjectStoreType: "s3", AutosaveDebounce: 2 * time.Minute, GoogleClientID: "id"}
	err := prod.Validate()
	if err == nil {
		t.Fatalf("expected errors for production config")
	}
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "S3_BUCKET", "AUTOSAVE_DEBOUNCE", "GOOGLE_REDIRECT_URL"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}
