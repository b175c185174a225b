package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration. It is built once at startup and
// passed to every component constructor.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DebugErrors     bool

	AWSRegion string

	ObjectStoreType string
	Bucket          string
	LocalStoreDir   string
	SSEKMSKeyID     string
	MinioEndpoint   string
	MinioAccessKey  string
	MinioSecretKey  string
	MinioUseSSL     bool

	RecordStoreType    string
	DatabaseURL        string
	DocumentsTable     string
	ExtractedTextTable string
	QuestionsTable     string
	OCRJobsTable       string
	DynamoEndpoint     string

	OCRProvider      string
	TextractSNSTopic string
	TextractRoleARN  string
	SyncMaxBytes     int64

	LLMProvider  string
	LLMModel     string
	OpenAIAPIKey string

	SearchProvider string
	MeiliURL       string
	MeiliAPIKey    string
	MeiliIndex     string

	RedisURL         string
	DeadLetterQueue  string
	CompletionQueue  string
	JWTSecret        string
	AuthMode         string
	UploadURLTTLSecs int

	TesseractLangs      []string
	WorkerConcurrency   int
	WorkerWaitSecs      int
	ShutdownTimeoutSecs int
	UploadRatePerSec    float64
	UploadRateBurst     int
	ReadRatePerSec      float64
	ReadRateBurst       int

	// CompletionClaimSecs bounds how long a crashed completion blocks its
	// redeliveries. Keep it below the completion queue's visibility timeout
	// times its max receive count.
	CompletionClaimSecs int

	// Database pool overrides; zero keeps the pool profile default.
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBPingTimeout     time.Duration

	// LambdaFunction is set inside AWS Lambda and selects the small pool.
	LambdaFunction string
}

const defaultSyncMaxBytes = 5 << 20

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DebugErrors:     env != "production" && getBool("DEBUG_ERRORS", false),

		AWSRegion: getEnv("AWS_REGION", "us-east-1"),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		Bucket:          getEnv("DOCUMENTS_BUCKET", "documents"),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		MinioEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:  getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:     getBool("MINIO_USE_SSL", false),

		RecordStoreType:    normalizeRecordStore(getEnv("RECORD_STORE", "memory")),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DocumentsTable:     getEnv("DOCUMENTS_TABLE", "documents"),
		ExtractedTextTable: getEnv("EXTRACTED_TEXT_TABLE", "extracted_texts"),
		QuestionsTable:     getEnv("QUESTIONS_TABLE", "questions"),
		OCRJobsTable:       getEnv("OCR_JOBS_TABLE", "ocr_jobs"),
		DynamoEndpoint:     getEnv("DYNAMODB_ENDPOINT", ""),

		OCRProvider:      normalizeChoice(getEnv("OCR_PROVIDER", "local"), "local", "textract"),
		TextractSNSTopic: getEnv("TEXTRACT_SNS_TOPIC_ARN", ""),
		TextractRoleARN:  getEnv("TEXTRACT_ROLE_ARN", ""),
		SyncMaxBytes:     getInt64("SYNC_MAX_BYTES", defaultSyncMaxBytes),

		LLMProvider:  normalizeChoice(getEnv("LLM_PROVIDER", "none"), "none", "openai", "bedrock"),
		LLMModel:     getEnv("LLM_MODEL", ""),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),

		SearchProvider: normalizeChoice(getEnv("SEARCH_PROVIDER", "none"), "none", "meilisearch"),
		MeiliURL:       getEnv("MEILI_URL", "http://localhost:7700"),
		MeiliAPIKey:    getEnv("MEILI_API_KEY", ""),
		MeiliIndex:     getEnv("MEILI_INDEX", "documents"),

		RedisURL:         getEnv("REDIS_URL", ""),
		DeadLetterQueue:  getEnv("DEAD_LETTER_QUEUE_URL", ""),
		CompletionQueue:  getEnv("COMPLETION_QUEUE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		AuthMode:         normalizeChoice(getEnv("AUTH_MODE", "header"), "header", "jwt"),
		UploadURLTTLSecs: int(getInt64("UPLOAD_URL_TTL_SECONDS", 900)),

		TesseractLangs:      splitAndTrim(getEnv("TESSERACT_LANGS", "eng")),
		WorkerConcurrency:   int(getInt64("WORKER_CONCURRENCY", 4)),
		WorkerWaitSecs:      int(getInt64("WORKER_WAIT_SECONDS", 20)),
		ShutdownTimeoutSecs: int(getInt64("SHUTDOWN_TIMEOUT_SECONDS", 15)),
		UploadRatePerSec:    getFloat("UPLOAD_RATE_PER_SEC", 0.2),
		UploadRateBurst:     int(getInt64("UPLOAD_RATE_BURST", 10)),
		ReadRatePerSec:      getFloat("READ_RATE_PER_SEC", 5),
		ReadRateBurst:       int(getInt64("READ_RATE_BURST", 50)),

		CompletionClaimSecs: int(getInt64("COMPLETION_CLAIM_SECONDS", 180)),

		DBMaxOpenConns:    int(getInt64("DB_MAX_OPEN_CONNS", 0)),
		DBMaxIdleConns:    int(getInt64("DB_MAX_IDLE_CONNS", 0)),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 0),
		DBConnMaxIdleTime: getDuration("DB_CONN_MAX_IDLE_TIME", 0),
		DBPingTimeout:     getDuration("DB_PING_TIMEOUT", 0),

		LambdaFunction: strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")),
	}
}

// IsDevLike reports whether env is a local development environment.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
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
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "minio":
		return "minio"
	default:
		return "local"
	}
}

func normalizeRecordStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dynamodb", "dynamo":
		return "dynamodb"
	case "postgres", "pg":
		return "postgres"
	default:
		return "memory"
	}
}

// normalizeChoice returns raw lowercased if it is one of allowed, else allowed[0].
func normalizeChoice(raw string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return allowed[0]
}
