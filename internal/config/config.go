package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server          ServerConfig
	MongoDB         MongoDBConfig
	Redis           RedisConfig
	Keycloak        KeycloakConfig
	JWT             JWTConfig
	RateLimit       RateLimitConfig
	MinIO           MinIOConfig
	FeatureFlags    FeatureFlagsConfig
	Cron            CronConfig
	Drafts          DraftsConfig
	Recommendations RecommendationsConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Mode is the server mode used for feature flag evaluation: dev, test or prod.
	Mode string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	// PresignTTL bounds presigned download URLs for exports and voiceovers.
	PresignTTL time.Duration
}

type FeatureFlagsConfig struct {
	RulesFile string
	Watch     bool
	CacheTTL  time.Duration
}

type CronConfig struct {
	Secret string
}

type DraftsConfig struct {
	TTL time.Duration
}

type RecommendationsConfig struct {
	TopicSimilaritiesFile string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "5001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("SERVER_MODE", "dev")
	viper.SetDefault("MONGODB_DATABASE", "openlearn")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	viper.SetDefault("RATE_LIMIT_ENABLED", false)
	viper.SetDefault("RATE_LIMIT_USE_REDIS", false)
	viper.SetDefault("RATE_LIMIT_RPS", 10.0)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MINIO_BUCKET", "openlearn")
	viper.SetDefault("MINIO_PRESIGN_TTL_MINUTES", 15)
	viper.SetDefault("FEATURE_FLAGS_WATCH", true)
	viper.SetDefault("FEATURE_FLAGS_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("DRAFTS_TTL_HOURS", 24*30)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Mode:         strings.ToLower(viper.GetString("SERVER_MODE")),
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          viper.GetString("KEYCLOAK_URL"),
			Realm:        viper.GetString("KEYCLOAK_REALM"),
			ClientID:     viper.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: viper.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:   viper.GetString("MINIO_ENDPOINT"),
			AccessKey:  viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:     viper.GetBool("MINIO_USE_SSL"),
			Bucket:     viper.GetString("MINIO_BUCKET"),
			PresignTTL: time.Duration(viper.GetInt("MINIO_PRESIGN_TTL_MINUTES")) * time.Minute,
		},
		FeatureFlags: FeatureFlagsConfig{
			RulesFile: viper.GetString("FEATURE_FLAGS_RULES_FILE"),
			Watch:     viper.GetBool("FEATURE_FLAGS_WATCH"),
			CacheTTL:  time.Duration(viper.GetInt("FEATURE_FLAGS_CACHE_TTL_SECONDS")) * time.Second,
		},
		Cron: CronConfig{
			Secret: os.Getenv("CRON_SECRET"),
		},
		Drafts: DraftsConfig{
			TTL: time.Duration(viper.GetInt("DRAFTS_TTL_HOURS")) * time.Hour,
		},
		Recommendations: RecommendationsConfig{
			TopicSimilaritiesFile: viper.GetString("TOPIC_SIMILARITIES_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.JWT.Secret == "" {
		logger.Warn("JWT_SECRET is not set; set a secure value in production")
	}
	if cfg.MongoDB.URI == "" {
		logger.Warn("MONGODB_URI is not set; falling back to in-memory repositories")
	}

	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "dev", "test", "prod":
	default:
		return fmt.Errorf("invalid SERVER_MODE %q: expected dev, test or prod", c.Server.Mode)
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	return nil
}

// IsDevMode reports whether the server runs in dev mode.
func (c *Config) IsDevMode() bool {
	return c.Server.Mode == "dev"
}
