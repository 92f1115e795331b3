package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetai/pkg/domain"
)

const baseYAML = `
port: "8080"
databaseURL: postgres://localhost/meetai
redisAddr: 127.0.0.1:6379
videoApiKey: key
videoApiSecret: secret
productTiers:
  prod_1: Pro
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db/override")
	t.Setenv("API_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("API_CHAT_RATE_LIMIT_PER_MINUTE", "12")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SESSION_COOKIE_SECRET", "cookie-secret")

	cfg, err := Load(writeConfig(t, baseYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://db/override" {
		t.Fatalf("database url = %q", cfg.DatabaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.ChatRateLimitPerMinute != 12 || !cfg.MinioUseSSL || cfg.SessionCookieSecret != "cookie-secret" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadValidates(t *testing.T) {
	cases := map[string]string{
		"port":           strings.Replace(baseYAML, `port: "8080"`, "", 1),
		"databaseURL":    strings.Replace(baseYAML, "databaseURL: postgres://localhost/meetai", "", 1),
		"videoApiSecret": strings.Replace(baseYAML, "videoApiSecret: secret", "", 1),
		"unknown tier":   strings.Replace(baseYAML, "prod_1: Pro", "prod_1: gold", 1),
		"rate limits":    baseYAML + "webhookRateLimitPerMinute: -1\n",
		"minioBucket":    baseYAML + "minioEndpoint: localhost:9000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseProductTiers(t *testing.T) {
	got, err := ParseProductTiers(map[string]string{"a": " Starter ", "b": "enterprise"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["a"] != domain.TierStarter || got["b"] != domain.TierEnterprise {
		t.Fatalf("tiers = %v", got)
	}
}

func TestParseDurations(t *testing.T) {
	if d, err := ParseCallTokenTTL(""); err != nil || d != time.Hour {
		t.Fatalf("default ttl = %v, %v", d, err)
	}
	if _, err := ParseCallTokenTTL("-1m"); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
	if d, err := ParseJWTLeeway("45s"); err != nil || d != 45*time.Second {
		t.Fatalf("leeway = %v, %v", d, err)
	}
	if _, err := ParseJWTLeeway("soon"); err == nil {
		t.Fatalf("expected error for bad leeway")
	}
}
