package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"atsense-api/internal/analyses"
	googleauth "atsense-api/internal/auth"
	"atsense-api/internal/extract"
	"atsense-api/internal/llm"
	"atsense-api/internal/llm/gemini"
	"atsense-api/internal/llm/langchain"
	"atsense-api/internal/queue"
	"atsense-api/internal/shared/config"
	"atsense-api/internal/shared/server"
	"atsense-api/internal/shared/server/middleware"
	"atsense-api/internal/shared/storage/db"
	"atsense-api/internal/shared/storage/object"
	localstore "atsense-api/internal/shared/storage/object/local"
	s3store "atsense-api/internal/shared/storage/object/s3"
	"atsense-api/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Archive         object.ObjectStore
	Events          queue.Client
	Provider        llm.Provider
	Cascade         *extract.Cascade
	AnalysesRepo    analyses.Repo
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	GoogleAuth      *googleauth.GoogleService
	RateLimiter     *middleware.RateLimiter

	closers []func() error
}

// Build wires every dependency from cfg and mounts the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg}

	if err := app.buildStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildArchive(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildEvents(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.buildProvider(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.buildPipeline()

	app.RateLimiter = middleware.NewRateLimiter(nil)
	app.GoogleAuth = googleauth.NewGoogleService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, cfg.UIRedirectURL)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		AnalysisHandler: app.AnalysisHandler,
		GoogleAuth:      app.GoogleAuth,
		RateLimiter:     app.RateLimiter,
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":        cfg.Env,
		"store":      cfg.DocumentStore,
		"archive":    cfg.ObjectStoreType,
		"provider":   cfg.LLMProvider,
		"models":     cfg.LLMModels,
		"strategies": app.Cascade.Strategies(),
		"events":     app.Events != nil,
	})
	return app, nil
}

// Close releases the database and provider clients.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			telemetry.Warn("bootstrap.close_failed", map[string]any{"error": err.Error()})
		}
	}
	a.closers = nil
}

func (a *App) buildStorage(ctx context.Context) error {
	cfg := a.Config
	switch cfg.DocumentStore {
	case "postgres":
		var (
			sqlDB *sql.DB
			err   error
		)
		if db.IsLambdaRuntime() {
			sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
		} else {
			sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
			if err == nil {
				a.closers = append(a.closers, sqlDB.Close)
			}
		}
		if err != nil {
			if isDevLike(cfg.Env) {
				telemetry.Warn("bootstrap.db_unavailable", map[string]any{"error": err.Error(), "fallback": "memory"})
				a.AnalysesRepo = analyses.NewMemoryRepo()
				return nil
			}
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.RunMigrations(ctx, sqlDB, db.DialectPostgres); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		a.DB = sqlDB
		a.AnalysesRepo = &analyses.PGRepo{DB: sqlDB}
	case "sqlite":
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, sqlDB.Close)
		if err := db.RunMigrations(ctx, sqlDB, db.DialectSQLite); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		a.DB = sqlDB
		a.AnalysesRepo = &analyses.SQLiteRepo{DB: sqlDB}
	default:
		if !isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"env": cfg.Env})
		}
		a.AnalysesRepo = analyses.NewMemoryRepo()
	}
	return nil
}

func (a *App) buildArchive(ctx context.Context) error {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return fmt.Errorf("build s3 archive: %w", err)
		}
		a.Archive = store
	case "local":
		a.Archive = localstore.New(cfg.LocalStoreDir)
	}
	return nil
}

func (a *App) buildEvents(ctx context.Context) error {
	if strings.TrimSpace(a.Config.SQSQueueURL) == "" {
		return nil
	}
	client, err := queue.NewSQSClient(ctx, a.Config.SQSQueueURL, a.Config.AWSRegion)
	if err != nil {
		return fmt.Errorf("build sqs client: %w", err)
	}
	a.Events = client
	return nil
}

func (a *App) buildProvider(ctx context.Context) error {
	cfg := a.Config
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		telemetry.Warn("bootstrap.provider_unconfigured", map[string]any{"provider": cfg.LLMProvider})
		a.Provider = llm.Unconfigured{}
		return nil
	}

	var provider llm.Provider
	switch cfg.LLMProvider {
	case "langchain":
		client, err := langchain.New(ctx, cfg.GeminiAPIKey, cfg.LLMModels[0])
		if err != nil {
			return fmt.Errorf("build langchain provider: %w", err)
		}
		provider = client
	default:
		client, err := gemini.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return fmt.Errorf("build gemini provider: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		provider = client
	}
	a.Provider = llm.Throttle(provider, cfg.LLMRequestsPerSec, cfg.LLMBurst)
	return nil
}

func (a *App) buildPipeline() {
	cfg := a.Config
	extractors := []extract.Extractor{extract.StructuredExtractor{}, extract.AlternateExtractor{}}
	if cfg.VisionExtraction {
		extractors = append(extractors, extract.VisionExtractor{Provider: a.Provider, Model: cfg.VisionModel})
	}
	a.Cascade = extract.NewCascade(cfg.MinTextLength, extractors...)

	svc := analyses.NewService(a.Cascade, analyses.NewRequester(a.Provider, cfg.LLMModels, cfg.LLMMaxRetries), a.AnalysesRepo)
	svc.Archive = a.Archive
	svc.Events = a.Events
	svc.DocumentFallback = cfg.DocumentFallback

	a.AnalysesService = svc
	a.AnalysisHandler = analyses.NewHandler(svc, cfg.MaxUploadBytes, cfg.MaxJobDescLength)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
