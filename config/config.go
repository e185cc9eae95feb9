package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort     int
	Env            string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins []string
	StaticDir      string
	Log            LogConfig
	Database       DatabaseConfig
	Media          MediaConfig
	Minio          MinioConfig
	GCS            GCSConfig
	Redis          RedisConfig
	MQ             MQConfig
	RabbitMQ       RabbitMQConfig
	PubSub         PubSubConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// MediaConfig selects where uploaded images are kept.
// Backend is one of "local", "minio" or "gcs".
type MediaConfig struct {
	Backend        string
	UploadsDir     string
	PublicURL      string
	Timeout        time.Duration
	MaxUploadBytes int64
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type RedisConfig struct {
	URL string
	TTL time.Duration
}

// MQConfig selects the broker used for media cleanup retries.
// Backend is one of "none", "rabbitmq" or "pubsub".
type MQConfig struct {
	Backend      string
	CleanupTopic string
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

const (
	MediaBackendLocal = "local"
	MediaBackendMinio = "minio"
	MediaBackendGCS   = "gcs"

	MQBackendNone     = "none"
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "weblog"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "weblog_db"),
		UseSSL:   getEnvBool("DB_SSL", false),
	}

	mediaConfig := MediaConfig{
		Backend:        strings.ToLower(getEnv("MEDIA_BACKEND", MediaBackendLocal)),
		UploadsDir:     getEnv("UPLOADS_DIR", "uploads"),
		PublicURL:      strings.TrimRight(getEnv("MEDIA_PUBLIC_URL", ""), "/"),
		Timeout:        time.Duration(getEnvInt("MEDIA_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 2000000)),
	}

	return Config{
		ServerPort:     getEnvInt("SERVER_PORT", 5000),
		Env:            getEnv("ENV", "production"),
		JWTSecret:      strings.TrimSpace(getEnv("JWT_SECRET", "")),
		TokenTTL:       time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		StaticDir:      getEnv("STATIC_DIR", ""),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: dbConfig,
		Media:    mediaConfig,
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "weblog"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
			TTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		MQ: MQConfig{
			Backend:      strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
			CleanupTopic: getEnv("MQ_CLEANUP_TOPIC", "media.cleanup"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			values = append(values, v)
		}
	}
	return values
}
