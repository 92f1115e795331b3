package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"meetai/pkg/domain"
)

// ConfigPath is the default config location, relative to the repository root.
const ConfigPath = "services/api/config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                      string            `yaml:"port"`
	LogLevel                  string            `yaml:"logLevel"`
	DatabaseURL               string            `yaml:"databaseURL"`
	RedisAddr                 string            `yaml:"redisAddr"`
	RedisPassword             string            `yaml:"redisPassword"`
	QueueStream               string            `yaml:"queueStream"`
	QueueGroup                string            `yaml:"queueGroup"`
	AuthJWKSURL               string            `yaml:"authJwksURL"`
	JWTIssuer                 string            `yaml:"jwtIssuer"`
	JWTAudience               string            `yaml:"jwtAudience"`
	JWTLeeway                 string            `yaml:"jwtLeeway"`
	SessionCookieName         string            `yaml:"sessionCookieName"`
	SessionCookieSecret       string            `yaml:"sessionCookieSecret"`
	CORSAllowedOrigins        []string          `yaml:"corsAllowedOrigins"`
	TrustedProxyCIDRs         []string          `yaml:"trustedProxyCidrs"`
	VideoBaseURL              string            `yaml:"videoBaseURL"`
	VideoAPIKey               string            `yaml:"videoApiKey"`
	VideoAPISecret            string            `yaml:"videoApiSecret"`
	CallTokenTTL              string            `yaml:"callTokenTTL"`
	BillingBaseURL            string            `yaml:"billingBaseURL"`
	BillingToken              string            `yaml:"billingToken"`
	ProductTiers              map[string]string `yaml:"productTiers"`
	RetentionDays             int               `yaml:"retentionDays"`
	AMQPURL                   string            `yaml:"amqpURL"`
	AMQPExchange              string            `yaml:"amqpExchange"`
	MinioEndpoint             string            `yaml:"minioEndpoint"`
	MinioAccessKey            string            `yaml:"minioAccessKey"`
	MinioSecretKey            string            `yaml:"minioSecretKey"`
	MinioBucket               string            `yaml:"minioBucket"`
	MinioUseSSL               bool              `yaml:"minioUseSSL"`
	WebhookRateLimitPerMinute int               `yaml:"webhookRateLimitPerMinute"`
	ChatRateLimitPerMinute    int               `yaml:"chatRateLimitPerMinute"`
	MaxWebhookBytes           int64             `yaml:"maxWebhookBytes"`
}

// Load reads config from path (defaults to ConfigPath) and applies env overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("API_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("SESSION_COOKIE_SECRET"); v != "" {
		cfg.SessionCookieSecret = v
	}
	if v := os.Getenv("API_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("API_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("VIDEO_BASE_URL"); v != "" {
		cfg.VideoBaseURL = v
	}
	if v := os.Getenv("VIDEO_API_KEY"); v != "" {
		cfg.VideoAPIKey = v
	}
	if v := os.Getenv("VIDEO_API_SECRET"); v != "" {
		cfg.VideoAPISecret = v
	}
	if v := os.Getenv("BILLING_BASE_URL"); v != "" {
		cfg.BillingBaseURL = v
	}
	if v := os.Getenv("BILLING_TOKEN"); v != "" {
		cfg.BillingToken = v
	}
	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("API_WEBHOOK_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebhookRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("API_CHAT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChatRateLimitPerMinute = n
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for the job queue and rate limiting")
	}
	if strings.TrimSpace(cfg.VideoAPIKey) == "" || strings.TrimSpace(cfg.VideoAPISecret) == "" {
		return errors.New("config: videoApiKey and videoApiSecret are required (set in config.yaml or VIDEO_API_KEY/VIDEO_API_SECRET)")
	}
	if cfg.WebhookRateLimitPerMinute < 0 || cfg.ChatRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.RetentionDays < 0 {
		return errors.New("config: retentionDays must be >= 0")
	}
	if cfg.MaxWebhookBytes < 0 {
		return errors.New("config: maxWebhookBytes must be >= 0")
	}
	if cfg.MinioEndpoint != "" && strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	if _, err := ParseProductTiers(cfg.ProductTiers); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}

// ParseCallTokenTTL parses the video user token lifetime; empty means one hour.
func ParseCallTokenTTL(raw string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Hour, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid callTokenTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("callTokenTTL must be positive")
	}
	return dur, nil
}

// ParseProductTiers turns the productID -> tier table into domain tiers.
func ParseProductTiers(raw map[string]string) (map[string]domain.Tier, error) {
	out := make(map[string]domain.Tier, len(raw))
	for productID, name := range raw {
		tier, ok := domain.ParseTier(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("config: productTiers[%s]: unknown tier %q", productID, name)
		}
		out[productID] = tier
	}
	return out, nil
}
