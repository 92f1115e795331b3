package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"meetai/pkg/ai"
)

// ConfigPath is the default config location, relative to the repository root.
const ConfigPath = "services/worker/config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel               string    `yaml:"logLevel"`
	MetricsPort            string    `yaml:"metricsPort"`
	DatabaseURL            string    `yaml:"databaseURL"`
	RedisAddr              string    `yaml:"redisAddr"`
	RedisPassword          string    `yaml:"redisPassword"`
	QueueStream            string    `yaml:"queueStream"`
	QueueGroup             string    `yaml:"queueGroup"`
	QueueConcurrency       int       `yaml:"queueConcurrency"`
	QueueMaxRetries        int       `yaml:"queueMaxRetries"`
	QueueRetryDelaySeconds int       `yaml:"queueRetryDelaySeconds"`
	LLM                    ai.Config `yaml:"llm"`
	ChatHistory            int       `yaml:"chatHistory"`
	TranscriptMaxBytes     int64     `yaml:"transcriptMaxBytes"`
	SpeakerLookups         int       `yaml:"speakerLookups"`
	AMQPURL                string    `yaml:"amqpURL"`
	AMQPExchange           string    `yaml:"amqpExchange"`
	MinioEndpoint          string    `yaml:"minioEndpoint"`
	MinioAccessKey         string    `yaml:"minioAccessKey"`
	MinioSecretKey         string    `yaml:"minioSecretKey"`
	MinioBucket            string    `yaml:"minioBucket"`
	MinioUseSSL            bool      `yaml:"minioUseSSL"`
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
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WORKER_METRICS_PORT"); v != "" {
		cfg.MetricsPort = strings.TrimSpace(v)
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
	if v := os.Getenv("WORKER_QUEUE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.QueueConcurrency = n
		}
	}
	if v := os.Getenv("WORKER_QUEUE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.QueueMaxRetries = n
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
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
}

func validateConfig(cfg FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return errors.New("config: llm.model is required (set in config.yaml or LLM_MODEL)")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case "", "openai", "openai-compat", "gemini":
		if strings.TrimSpace(cfg.LLM.APIKey) == "" {
			return errors.New("config: llm.apiKey is required for hosted providers (set in config.yaml or LLM_API_KEY)")
		}
	case "ollama":
	default:
		return fmt.Errorf("config: unknown llm.provider %q", cfg.LLM.Provider)
	}
	if cfg.QueueConcurrency < 0 || cfg.QueueMaxRetries < 0 || cfg.QueueRetryDelaySeconds < 0 {
		return errors.New("config: queue settings must be >= 0")
	}
	if cfg.ChatHistory < 0 || cfg.TranscriptMaxBytes < 0 || cfg.SpeakerLookups < 0 {
		return errors.New("config: chatHistory, transcriptMaxBytes and speakerLookups must be >= 0")
	}
	if cfg.MinioEndpoint != "" && strings.TrimSpace(cfg.MinioBucket) == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	return nil
}
