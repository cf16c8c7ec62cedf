package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	Env      string
	LogLevel string

	DBHost      string
	DBPort      string
	DBUser      string
	DBPass      string
	DBName      string
	DBReplicas  []string
	AutoMigrate bool

	RedisHost string
	RedisPort string

	KafkaEnabled       bool
	KafkaBrokers       string
	KafkaGroupID       string
	KafkaRequestsTopic string
	KafkaResultsTopic  string

	RealtimeChannel string

	JWTSecret       string
	NotifyRateLimit int64

	Push  PushConfig
	Creds CredentialConfig
	S3    S3Config
}

// PushConfig controls the provider send path.
type PushConfig struct {
	ProjectID    string
	SendEndpoint string
	Concurrency  int
	DefaultIcon  string
	DefaultBadge string
	DefaultLink  string
	DefaultTag   string
}

// CredentialConfig names where the service-account credential lives. The
// first non-empty source wins: inline JSON, file, object store.
type CredentialConfig struct {
	JSON   string
	File   string
	Bucket string
	Object string
	// SharedCache lets replicas share minted tokens through Redis. Off by
	// default: tokens then live in process memory only.
	SharedCache bool
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Load reads the process environment. A .env file in the working directory
// is applied first when present; variables already set are not overridden.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:  GetEnv("APP_PORT", ":8086"),
		Env:      GetEnv("ENV", "local"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),

		DBHost:      GetEnv("DB_HOST", "notify-db"),
		DBPort:      GetEnv("DB_PORT", "5432"),
		DBUser:      GetEnv("DB_USER", "notify"),
		DBPass:      GetEnv("DB_PASSWORD", ""),
		DBName:      GetEnv("DB_NAME", "notify_db"),
		DBReplicas:  GetEnvList("DB_REPLICAS"),
		AutoMigrate: GetEnvBool("AUTO_MIGRATE", false),

		RedisHost: GetEnv("REDIS_HOST", "redis-notify"),
		RedisPort: GetEnv("REDIS_PORT", "6379"),

		KafkaEnabled:       GetEnvBool("KAFKA_ENABLED", true),
		KafkaBrokers:       GetEnv("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092"),
		KafkaGroupID:       GetEnv("KAFKA_GROUP_ID", "notification-service"),
		KafkaRequestsTopic: GetEnv("KAFKA_TOPIC_REQUESTS", "notifications.requested"),
		KafkaResultsTopic:  GetEnv("KAFKA_TOPIC_RESULTS", "notifications.dispatched"),

		RealtimeChannel: GetEnv("REALTIME_CHANNEL", "notify:dispatched"),

		JWTSecret:       GetEnv("JWT_SECRET", ""),
		NotifyRateLimit: int64(GetEnvInt("NOTIFY_RATE_LIMIT", 30)),

		Push: PushConfig{
			ProjectID:    GetEnv("FCM_PROJECT_ID", ""),
			SendEndpoint: GetEnv("FCM_SEND_ENDPOINT", "https://fcm.googleapis.com"),
			Concurrency:  GetEnvInt("PUSH_CONCURRENCY", 8),
			DefaultIcon:  GetEnv("PUSH_DEFAULT_ICON", "/icons/icon-192x192.png"),
			DefaultBadge: GetEnv("PUSH_DEFAULT_BADGE", "/icons/badge-72x72.png"),
			DefaultLink:  GetEnv("PUSH_DEFAULT_LINK", ""),
			DefaultTag:   GetEnv("PUSH_DEFAULT_TAG", "marvellous-manager"),
		},
		Creds: CredentialConfig{
			JSON:   GetEnv("FCM_CREDENTIALS_JSON", ""),
			File:   GetEnv("FCM_CREDENTIALS_FILE", ""),
			Bucket: GetEnv("FCM_CREDENTIALS_BUCKET", ""),
			Object: GetEnv("FCM_CREDENTIALS_OBJECT", "fcm-service-account.json"),

			SharedCache: GetEnvBool("FCM_TOKEN_SHARED_CACHE", false),
		},
		S3: S3Config{
			Endpoint:  GetEnv("S3_ENDPOINT", "minio:9000"),
			AccessKey: GetEnv("S3_ACCESS_KEY", ""),
			SecretKey: GetEnv("S3_SECRET_KEY", ""),
			UseSSL:    GetEnvBool("S3_USE_SSL", false),
		},
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName,
	)
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}
