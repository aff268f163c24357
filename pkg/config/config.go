package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Directory DirectoryConfig
	Billing   BillingConfig
	Exports   ExportsConfig
	Mailer    MailerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig validates tokens issued by the external auth provider.
type JWTConfig struct {
	Secret   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DirectoryConfig tunes the directory listing cache and query limits.
type DirectoryConfig struct {
	CacheBackend    string // "memory" or "redis"
	CacheTTL        time.Duration
	CacheMaxEntries int
	DefaultPageSize int
	MaxPageSize     int
	ViewDedupWindow time.Duration
}

// BillingConfig holds webhook secrets and provider settings.
type BillingConfig struct {
	StripeWebhookSecret       string
	StripeAPIKey              string
	StripeSignatureTolerance  time.Duration
	LemonSqueezyWebhookSecret string
	CustomerPortalURL         string
	ProviderTimeout           time.Duration
	WelcomeEmailFrom          string
}

// ExportsConfig controls asynchronous directory exports.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	FileTTL           time.Duration
	CleanupInterval   time.Duration
}

// MailerConfig configures the outbound email API client.
type MailerConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	SiteName string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		QueryTimeout: parseDuration(v.GetString("DB_QUERY_TIMEOUT"), 5*time.Second),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Directory = DirectoryConfig{
		CacheBackend:    v.GetString("DIRECTORY_CACHE_BACKEND"),
		CacheTTL:        parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), 5*time.Minute),
		CacheMaxEntries: v.GetInt("DIRECTORY_CACHE_MAX_ENTRIES"),
		DefaultPageSize: v.GetInt("DIRECTORY_DEFAULT_PAGE_SIZE"),
		MaxPageSize:     v.GetInt("DIRECTORY_MAX_PAGE_SIZE"),
		ViewDedupWindow: parseDuration(v.GetString("DIRECTORY_VIEW_DEDUP_WINDOW"), 24*time.Hour),
	}

	cfg.Billing = BillingConfig{
		StripeWebhookSecret:       v.GetString("STRIPE_WEBHOOK_SECRET"),
		StripeAPIKey:              v.GetString("STRIPE_API_KEY"),
		StripeSignatureTolerance:  parseDuration(v.GetString("STRIPE_SIGNATURE_TOLERANCE"), 5*time.Minute),
		LemonSqueezyWebhookSecret: v.GetString("LEMONSQUEEZY_WEBHOOK_SECRET"),
		CustomerPortalURL:         v.GetString("BILLING_CUSTOMER_PORTAL_URL"),
		ProviderTimeout:           parseDuration(v.GetString("BILLING_PROVIDER_TIMEOUT"), 10*time.Second),
		WelcomeEmailFrom:          v.GetString("BILLING_WELCOME_EMAIL_FROM"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		FileTTL:           parseDuration(v.GetString("EXPORTS_FILE_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Mailer = MailerConfig{
		APIKey:   v.GetString("MAILER_API_KEY"),
		BaseURL:  v.GetString("MAILER_BASE_URL"),
		Timeout:  parseDuration(v.GetString("MAILER_TIMEOUT"), 10*time.Second),
		SiteName: v.GetString("SITE_NAME"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "saas_core")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_QUERY_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_AUDIENCE", "authenticated")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DIRECTORY_CACHE_BACKEND", "memory")
	v.SetDefault("DIRECTORY_CACHE_TTL", "5m")
	v.SetDefault("DIRECTORY_CACHE_MAX_ENTRIES", 1024)
	v.SetDefault("DIRECTORY_DEFAULT_PAGE_SIZE", 10)
	v.SetDefault("DIRECTORY_MAX_PAGE_SIZE", 100)
	v.SetDefault("DIRECTORY_VIEW_DEDUP_WINDOW", "24h")

	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_API_KEY", "")
	v.SetDefault("STRIPE_SIGNATURE_TOLERANCE", "5m")
	v.SetDefault("LEMONSQUEEZY_WEBHOOK_SECRET", "")
	v.SetDefault("BILLING_CUSTOMER_PORTAL_URL", "")
	v.SetDefault("BILLING_PROVIDER_TIMEOUT", "10s")
	v.SetDefault("BILLING_WELCOME_EMAIL_FROM", "")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)

	v.SetDefault("MAILER_API_KEY", "")
	v.SetDefault("MAILER_BASE_URL", "https://api.resend.com")
	v.SetDefault("MAILER_TIMEOUT", "10s")
	v.SetDefault("SITE_NAME", "Nuxtbe")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
