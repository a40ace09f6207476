package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"vitaeforge/internal/auth"
	"vitaeforge/internal/cvs"
	"vitaeforge/internal/editor"
	"vitaeforge/internal/llm"
	openai "vitaeforge/internal/llm/openai"
	"vitaeforge/internal/photos"
	"vitaeforge/internal/preview"
	"vitaeforge/internal/refine"
	"vitaeforge/internal/services/health"
	sharedauth "vitaeforge/internal/shared/auth"
	"vitaeforge/internal/shared/config"
	"vitaeforge/internal/shared/metrics"
	"vitaeforge/internal/shared/server"
	"vitaeforge/internal/shared/server/middleware"
	"vitaeforge/internal/shared/storage/db"
	"vitaeforge/internal/shared/storage/kv"
	"vitaeforge/internal/shared/storage/object"
	localstore "vitaeforge/internal/shared/storage/object/local"
	s3store "vitaeforge/internal/shared/storage/object/s3"
	"vitaeforge/internal/shared/telemetry"
	"vitaeforge/internal/users"
)

const llmTimeout = 60 * time.Second

// App holds shared dependencies and the wired router.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Redis       *redis.Client
	Store       object.Store
	Metrics     *metrics.Metrics
	Signer      *sharedauth.Signer
	CVs         *cvs.Service
	Users       *users.Service
	Editor      *editor.Manager
	Refiner     *refine.Refiner
	Revocations auth.RevocationStore
}

// Build prepares dependencies and registers routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := m.WatchDB(sqlDB); err != nil {
		return nil, err
	}
	signer, err := sharedauth.NewSigner(cfg.JWTSecret, cfg.Env, 0)
	if err != nil {
		return nil, err
	}
	llmClient, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:  cfg,
		DB:      sqlDB,
		Redis:   redisClient,
		Store:   store,
		Metrics: m,
		Signer:  signer,
	}
	app.wire(llmClient)
	return app, nil
}

func (app *App) wire(llmClient llm.Client) {
	cfg := app.Config

	var cvRepo cvs.Repo
	var userRepo users.Repo
	if app.DB != nil {
		cvRepo = &cvs.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		cvRepo = cvs.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	var states auth.StateStore
	if app.Redis != nil {
		states = auth.NewRedisStateStore(app.Redis)
		app.Revocations = auth.NewRedisRevocations(app.Redis)
	} else {
		states = auth.NewMemoryStateStore()
		app.Revocations = auth.NewMemoryRevocations()
	}

	app.CVs = cvs.NewService(cvRepo)
	app.Users = users.NewService(userRepo)
	app.Refiner = refine.New(llmClient, app.Metrics)
	app.Editor = editor.NewManager(app.CVs, editor.Config{
		Delay:   cfg.AutosaveDebounce,
		IdleTTL: cfg.EditorIdleTTL,
		Metrics: app.Metrics,
	})

	issuer := &auth.Issuer{Signer: app.Signer, Users: app.Users}
	google := auth.NewGoogleService(auth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		UIRedirect:   cfg.UIRedirectURL,
	}, states, issuer)
	password := auth.NewPasswordService(auth.PasswordConfig{
		BaseURL: cfg.AuthBaseURL,
		APIKey:  cfg.AuthAPIKey,
	}, issuer)

	healthSvc := health.NewService(map[string]health.Check{
		"db":    app.pingDB(),
		"redis": app.pingRedis(),
	})

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Health:   healthSvc,
		Metrics:  app.Metrics,
		Verifier: app.Signer,
		Revoked:  app.Revocations,
		Limiter:  middleware.NewRateLimiter(nil),
		Handlers: []server.RouteRegistrar{
			google,
			password,
			&auth.SignOutHandler{Revocations: app.Revocations, Sessions: app.Editor},
			users.NewHandler(app.Users),
			cvs.NewHandler(app.CVs, app.Editor),
			editor.NewHandler(app.Editor, app.Refiner),
			preview.NewHandler(app.Editor),
			refine.NewHandler(app.Refiner),
			photos.NewHandler(app.Store, app.Editor, cfg.PublicBaseURL),
		},
	})
}

func (app *App) pingDB() health.Check {
	if app.DB == nil {
		return nil
	}
	return app.DB.PingContext
}

func (app *App) pingRedis() health.Check {
	if app.Redis == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return app.Redis.Ping(ctx).Err()
	}
}

// Close releases the database and redis connections.
func (app *App) Close() {
	if app.DB != nil {
		_ = app.DB.Close()
	}
	if app.Redis != nil {
		_ = app.Redis.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.ServerPool().FromEnv())
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "err": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	version, err := db.Migrate(ctx, sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	telemetry.Info("bootstrap.schema", map[string]any{"version": version})
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	client, err := kv.Connect(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_kv", map[string]any{"reason": "redis connect failed", "err": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return client, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		dir := cfg.LocalStoreDir
		if dir == "" {
			dir = "./data"
		}
		return localstore.New(dir), nil
	}
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if cfg.LLMProvider != "openai" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		telemetry.Info("bootstrap.llm_disabled", map[string]any{"provider": cfg.LLMProvider})
		return llm.PlaceholderClient{}, nil
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, llmTimeout)
	if err != nil {
		return nil, fmt.Errorf("openai client: %w", err)
	}
	return client, nil
}
