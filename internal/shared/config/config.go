// Package config reads the API settings from the environment, after loading
// optional .env files for local runs.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	// PublicBaseURL prefixes the photo URLs written into CVs.
	PublicBaseURL   string
	CORSAllowOrigin []string

	DatabaseURL string
	RedisURL    string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string

	LLMProvider  string
	LLMModel     string
	OpenAIAPIKey string

	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	// AuthBaseURL and AuthAPIKey reach the hosted email/password provider.
	AuthBaseURL string
	AuthAPIKey  string

	AutosaveDebounce time.Duration
	EditorIdleTTL    time.Duration
}

const (
	defaultAutosaveDebounce = 1500 * time.Millisecond
	defaultEditorIdleTTL    = 30 * time.Minute
	maxAutosaveDebounce     = time.Minute
)

// Load reads the configuration. Invalid durations fall back to their
// defaults with a log line; use Validate for hard requirements.
func Load() Config {
	for _, path := range []string{".env", "cmd/.env"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// Variables already in the environment win.
		if err := godotenv.Load(path); err != nil {
			log.Printf("config: ignoring %s: %v", path, err)
		}
	}

	return Config{
		Env:      normalizeEnv(os.Getenv("ENV")),
		Port:     str("PORT", "8080"),
		LogLevel: str("LOG_LEVEL", "info"),

		PublicBaseURL:   strings.TrimRight(str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CORSAllowOrigin: list(str("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ObjectStoreType: normalizeStoreType(os.Getenv("OBJECT_STORE")),
		LocalStoreDir:   str("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       os.Getenv("AWS_REGION"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3Prefix:        os.Getenv("S3_PREFIX"),

		LLMProvider:  strings.ToLower(str("LLM_PROVIDER", "openai")),
		LLMModel:     str("LLM_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),

		JWTSecret:          os.Getenv("JWT_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		UIRedirectURL:      os.Getenv("UI_REDIRECT_URL"),
		AuthBaseURL:        strings.TrimRight(os.Getenv("AUTH_BASE_URL"), "/"),
		AuthAPIKey:         os.Getenv("AUTH_API_KEY"),

		AutosaveDebounce: duration("AUTOSAVE_DEBOUNCE", defaultAutosaveDebounce),
		EditorIdleTTL:    duration("EDITOR_IDLE_TTL", defaultEditorIdleTTL),
	}
}

// IsDevLike reports whether dev conveniences such as guest identities and
// in-memory fallbacks are allowed.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

// Validate reports every setting the API cannot start without.
func (c Config) Validate() error {
	var errs []error
	if !c.IsDevLike() {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required outside dev"))
		}
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
		}
	}
	if c.ObjectStoreType == "s3" && c.S3Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required when OBJECT_STORE=s3"))
	}
	if c.AutosaveDebounce > maxAutosaveDebounce {
		errs = append(errs, fmt.Errorf("AUTOSAVE_DEBOUNCE must be at most %s", maxAutosaveDebounce))
	}
	if c.GoogleClientID != "" && c.GoogleRedirectURL == "" {
		errs = append(errs, errors.New("GOOGLE_REDIRECT_URL is required with GOOGLE_CLIENT_ID"))
	}
	return errors.Join(errs...)
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("config: %s=%q is not a positive duration, using %s", key, raw, def)
		return def
	}
	return d
}

func list(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "s3") {
		return "s3"
	}
	return "local"
}
