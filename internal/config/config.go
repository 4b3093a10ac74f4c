package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	// Local notification store.
	StorePath string

	// Message templates.
	TemplateSource  string // "embedded" | "s3"
	TemplatePrefix  string // S3 key prefix holding <locale>.yaml bundles
	TemplateLocales []string
	DefaultLocale   string

	SNSRegion string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	RedisAddr          string // empty disables the preference cache
	RedisPassword      string
	PreferenceCacheTTL time.Duration

	DispatchTimeout time.Duration

	KafkaBrokers []string // empty disables the domain-event consumer
	KafkaGroupID string
	KafkaTopic   string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users               string
	Devices             string
	DeliveryAssignments string
	Preferences         string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:               getEnv("DYNAMO_TABLE_USERS", "users"),
			Devices:             getEnv("DYNAMO_TABLE_DEVICES", "devices"),
			DeliveryAssignments: getEnv("DYNAMO_TABLE_DELIVERY_ASSIGNMENTS", "delivery_assignments"),
			Preferences:         getEnv("DYNAMO_TABLE_PREFERENCES", "notification_preferences"),
		},
		S3BucketName:       getEnv("S3_BUCKET_NAME", "market-notify-templates"),
		StorePath:          getEnv("STORE_PATH", "./notifications.db"),
		TemplateSource:     getEnv("TEMPLATE_SOURCE", "embedded"),
		TemplatePrefix:     getEnv("TEMPLATE_PREFIX", "messages"),
		TemplateLocales:    getEnvList("TEMPLATE_LOCALES", "en,es"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		SNSRegion:          getEnv("SNS_REGION", "us-east-1"),
		JWTPrivateKeyPath:  getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:   getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:          time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		PreferenceCacheTTL: getEnvDuration("PREFERENCE_CACHE_TTL", 5*time.Minute),
		DispatchTimeout:    getEnvDuration("DISPATCH_TIMEOUT", 30*time.Second),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS", ""),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "market-notify"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "marketplace.domain-events"),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", "*"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
