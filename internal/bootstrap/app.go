package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"docscan-backend/internal/cleanup"
	"docscan-backend/internal/documents"
	"docscan-backend/internal/llm"
	"docscan-backend/internal/llm/bedrock"
	"docscan-backend/internal/llm/openai"
	"docscan-backend/internal/ocr"
	localocr "docscan-backend/internal/ocr/local"
	"docscan-backend/internal/ocr/textract"
	"docscan-backend/internal/questions"
	"docscan-backend/internal/queue"
	"docscan-backend/internal/search"
	"docscan-backend/internal/search/meili"
	"docscan-backend/internal/services/health"
	"docscan-backend/internal/shared/config"
	"docscan-backend/internal/shared/dedupe"
	"docscan-backend/internal/shared/server"
	"docscan-backend/internal/shared/server/middleware"
	"docscan-backend/internal/shared/storage/db"
	"docscan-backend/internal/shared/storage/object"
	localstore "docscan-backend/internal/shared/storage/object/local"
	miniostore "docscan-backend/internal/shared/storage/object/minio"
	s3store "docscan-backend/internal/shared/storage/object/s3"
	"docscan-backend/internal/shared/storage/record"
	"docscan-backend/internal/shared/storage/record/dynamo"
	"docscan-backend/internal/shared/storage/record/memory"
	"docscan-backend/internal/shared/storage/record/pg"
	"docscan-backend/internal/shared/telemetry"
	"docscan-backend/internal/uploads"
)

const llmTimeout = 60 * time.Second

// App holds the wired dependencies shared by every entrypoint.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Objects          *object.Gateway
	Records          record.Store
	OCR              ocr.Client
	LLM              llm.Completer
	Search           search.Indexer
	DeadLetters      queue.Client
	DocumentsService *documents.Service
	QuestionsService *questions.Service
	RateLimiter      middleware.Limiter

	awsCfg *aws.Config
}

// Build wires every component selected by cfg. Providers are only contacted
// when configured, so a dev build needs nothing beyond the local disk.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	backend, err := app.buildObjectBackend(ctx)
	if err != nil {
		return nil, err
	}
	app.Objects = object.NewGateway(backend)

	if app.Records, err = app.buildRecordStore(ctx); err != nil {
		return nil, err
	}
	if app.LLM, err = app.buildLLM(ctx); err != nil {
		return nil, err
	}
	if app.DeadLetters, err = app.buildDeadLetters(ctx); err != nil {
		return nil, err
	}
	claims, err := app.buildClaimer(ctx)
	if err != nil {
		return nil, err
	}
	app.Search = app.buildSearch()

	repo := documents.NewRepo(app.Records, documents.Tables{
		Documents:      cfg.DocumentsTable,
		ExtractedTexts: cfg.ExtractedTextTable,
		OCRJobs:        cfg.OCRJobsTable,
	})

	var localOCR *localocr.Client
	switch cfg.OCRProvider {
	case "textract":
		awsCfg, err := app.aws(ctx)
		if err != nil {
			return nil, err
		}
		app.OCR = textract.New(awsCfg)
	default:
		localOCR = localocr.New(app.Objects, ImageEngine(cfg.TesseractLangs))
		app.OCR = localOCR
	}

	docs := documents.NewService(documents.Config{
		Bucket:            cfg.Bucket,
		SyncMaxBytes:      cfg.SyncMaxBytes,
		NotificationTopic: cfg.TextractSNSTopic,
		ServiceRole:       cfg.TextractRoleARN,
		ClaimTTL:          time.Duration(cfg.CompletionClaimSecs) * time.Second,
	}, app.Objects, repo, app.OCR, cleanup.New(app.LLM))
	docs.Search = app.Search
	docs.Claims = claims
	docs.DeadLetters = app.DeadLetters

	qs := questions.NewService(docs, repo, app.LLM, questions.NewRepo(app.Records, cfg.QuestionsTable))
	docs.Questions = qs

	if localOCR != nil {
		localOCR.Notify = docs.HandleCompletion
	}

	app.DocumentsService = docs
	app.QuestionsService = qs

	if app.RateLimiter, err = app.buildRateLimiter(ctx); err != nil {
		return nil, err
	}

	deps := server.RouterDeps{
		Config:           cfg,
		Health:           app.healthProbes(repo),
		RateLimiter:      app.RateLimiter,
		DocumentHandler:  documents.NewHandler(docs),
		QuestionsHandler: questions.NewHandler(qs),
		SearchHandler:    search.NewHandler(app.Search),
	}
	if cfg.ObjectStoreType == "s3" {
		awsCfg, err := app.aws(ctx)
		if err != nil {
			return nil, err
		}
		deps.UploadsHandler = uploads.NewHandler(s3.NewFromConfig(awsCfg), cfg.Bucket, time.Duration(cfg.UploadURLTTLSecs)*time.Second)
	}
	app.Router = server.NewRouter(deps)

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":          cfg.Env,
		"object_store": cfg.ObjectStoreType,
		"record_store": cfg.RecordStoreType,
		"ocr":          cfg.OCRProvider,
		"llm":          cfg.LLMProvider,
		"search":       cfg.SearchProvider,
	})
	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func (a *App) healthProbes(repo *documents.Repo) *health.Service {
	h := health.NewService()
	if a.DB != nil {
		h.Register("database", a.DB.PingContext)
	}
	h.Register("records", repo.Ping)
	return h
}

func (a *App) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.Config.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *App) buildObjectBackend(ctx context.Context) (object.Backend, error) {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return s3store.New(awsCfg, cfg.SSEKMSKeyID), nil
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
		}, cfg.Bucket)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildRecordStore(ctx context.Context) (record.Store, error) {
	cfg := a.Config
	switch cfg.RecordStoreType {
	case "dynamodb":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		return dynamo.New(awsCfg, cfg.DynamoEndpoint), nil
	case "postgres":
		sqlDB, err := buildDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.DB = sqlDB
		return &pg.Store{DB: sqlDB}, nil
	default:
		if !cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_records", map[string]any{"env": cfg.Env})
		}
		return memory.New(), nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("RECORD_STORE=postgres requires DATABASE_URL")
	}
	var (
		sqlDB   *sql.DB
		err     error
		profile = db.ProfileFor(cfg)
	)
	if profile == db.ProfileLambda {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFor(cfg, profile))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFor(cfg, profile))
	}
	if err != nil {
		return nil, err
	}
	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func (a *App) buildLLM(ctx context.Context) (llm.Completer, error) {
	cfg := a.Config
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, llmTimeout)
		if err != nil {
			return nil, err
		}
		return llm.WithRetry(client), nil
	case "bedrock":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client, err := bedrock.New(awsCfg, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		return llm.WithRetry(client), nil
	default:
		telemetry.Warn("bootstrap.llm_disabled", map[string]any{
			"effect": "cleanup and question generation will fail until LLM_PROVIDER is set",
		})
		return llm.Disabled{}, nil
	}
}

func (a *App) buildDeadLetters(ctx context.Context) (queue.Client, error) {
	if strings.TrimSpace(a.Config.DeadLetterQueue) == "" {
		return queue.LogOnly{}, nil
	}
	awsCfg, err := a.aws(ctx)
	if err != nil {
		return nil, err
	}
	return queue.NewSQSClient(awsCfg, a.Config.DeadLetterQueue)
}

func (a *App) buildClaimer(ctx context.Context) (dedupe.Claimer, error) {
	if strings.TrimSpace(a.Config.RedisURL) != "" {
		return dedupe.NewRedis(ctx, a.Config.RedisURL, "docscan:")
	}
	if a.Config.IsDevLike() {
		return dedupe.NewMemory(), nil
	}
	return dedupe.None{}, nil
}

func (a *App) buildRateLimiter(ctx context.Context) (middleware.Limiter, error) {
	if strings.TrimSpace(a.Config.RedisURL) != "" {
		return middleware.NewRedisLimiter(ctx, a.Config.RedisURL)
	}
	return middleware.NewRateLimiter(nil), nil
}

func (a *App) buildSearch() search.Indexer {
	cfg := a.Config
	if cfg.SearchProvider != "meilisearch" {
		return search.Noop{}
	}
	return search.BestEffort{Indexer: meili.New(cfg.MeiliURL, cfg.MeiliAPIKey, cfg.MeiliIndex)}
}
