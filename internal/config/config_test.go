package config

import (
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"DB_PATH", "SERVER_PORT", "LOG_LEVEL", "LLM_ENDPOINT", "LLM_API_KEY", "LLM_MODELS", "SENTRY_DSN", "ENV",
	"CORS_ALLOWED_ORIGINS", "LLM_TEMPERATURE", "LLM_CALL_TIMEOUT", "LLM_CONCURRENCY", "LLM_REQUESTS_PER_SECOND",
	"LLM_BURST", "LLM_BATCH_SIZE", "LLM_BATCH_PAUSE", "SLIDE_COUNT_MIN", "SLIDE_COUNT_MAX", "OUTLINE_POLICY",
	"OUTLINE_TWO_PASS", "PROMPTS_PATH", "HTTP_RATE_LIMIT_RPS", "HTTP_RATE_LIMIT_BURST", "HTTP_RATE_LIMIT_TTL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected default DB path %q, got %q", defaultDBPath, cfg.DBPath)
	}

	if cfg.ServerPort != defaultServerPort {
		t.Errorf("expected default server port %d, got %d", defaultServerPort, cfg.ServerPort)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment {
		t.Errorf("expected default environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.LLMModels != nil {
		t.Errorf("expected nil LLMModels, got %v", cfg.LLMModels)
	}

	if cfg.ModelSlides() != "" || cfg.ModelSummary() != "" {
		t.Errorf("expected empty model names, got %q and %q", cfg.ModelSlides(), cfg.ModelSummary())
	}

	if cfg.CORSOrigins != nil {
		t.Errorf("expected no CORS origins, got %v", cfg.CORSOrigins)
	}

	gen := cfg.Generation
	if gen.Temperature != defaultTemperature {
		t.Errorf("expected temperature %v, got %v", defaultTemperature, gen.Temperature)
	}
	if gen.CallTimeout != defaultCallTimeout {
		t.Errorf("expected call timeout %s, got %s", defaultCallTimeout, gen.CallTimeout)
	}
	if gen.Concurrency != defaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", defaultConcurrency, gen.Concurrency)
	}
	if gen.BatchSize != defaultBatchSize || gen.BatchPause != defaultBatchPause {
		t.Errorf("expected batch %d/%s, got %d/%s", defaultBatchSize, defaultBatchPause, gen.BatchSize, gen.BatchPause)
	}
	if gen.MinSlides != 5 || gen.MaxSlides != 30 {
		t.Errorf("expected slide range 5..30, got %d..%d", gen.MinSlides, gen.MaxSlides)
	}
	if gen.OutlinePolicy != defaultOutlinePolicy {
		t.Errorf("expected outline policy %q, got %q", defaultOutlinePolicy, gen.OutlinePolicy)
	}
	if gen.TwoPassOutline {
		t.Errorf("expected two-pass outline to be disabled by default")
	}

	if cfg.RateLimit.Burst != defaultHTTPBurst || cfg.RateLimit.TTL != defaultHTTPLimiterTTL {
		t.Errorf("expected rate limit burst %d ttl %s, got %d %s", defaultHTTPBurst, defaultHTTPLimiterTTL, cfg.RateLimit.Burst, cfg.RateLimit.TTL)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_PATH", "/tmp/deckforge.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LLM_ENDPOINT", "https://example.com/llm")
	t.Setenv("LLM_API_KEY", "secret")
	t.Setenv("LLM_MODELS", `["alpha","beta"]`)
	t.Setenv("SENTRY_DSN", "dsn")
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LLM_CALL_TIMEOUT", "15s")
	t.Setenv("LLM_CONCURRENCY", "4")
	t.Setenv("LLM_BATCH_PAUSE", "500ms")
	t.Setenv("SLIDE_COUNT_MIN", "2")
	t.Setenv("SLIDE_COUNT_MAX", "12")
	t.Setenv("OUTLINE_POLICY", "Trust")
	t.Setenv("OUTLINE_TWO_PASS", "true")
	t.Setenv("PROMPTS_PATH", "/etc/deckforge/prompts.toml")
	t.Setenv("HTTP_RATE_LIMIT_RPS", "3.5")
	t.Setenv("HTTP_RATE_LIMIT_TTL", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != "/tmp/deckforge.db" {
		t.Errorf("expected DB path %q, got %q", "/tmp/deckforge.db", cfg.DBPath)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.ServerPort)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}

	if cfg.LLMEndpoint != "https://example.com/llm" {
		t.Errorf("expected LLM endpoint https://example.com/llm, got %q", cfg.LLMEndpoint)
	}

	if cfg.LLMAPIKey != "secret" {
		t.Errorf("expected LLM API key secret, got %q", cfg.LLMAPIKey)
	}

	if cfg.ModelSlides() != "alpha" {
		t.Errorf("expected slide model alpha, got %q", cfg.ModelSlides())
	}

	if cfg.ModelSummary() != "beta" {
		t.Errorf("expected summary model beta, got %q", cfg.ModelSummary())
	}

	if cfg.SentryDSN != "dsn" {
		t.Errorf("expected Sentry DSN dsn, got %q", cfg.SentryDSN)
	}

	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got %q", cfg.Environment)
	}

	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("expected two trimmed CORS origins, got %v", cfg.CORSOrigins)
	}

	gen := cfg.Generation
	if gen.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", gen.Temperature)
	}
	if gen.CallTimeout != 15*time.Second {
		t.Errorf("expected call timeout 15s, got %s", gen.CallTimeout)
	}
	if gen.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", gen.Concurrency)
	}
	if gen.BatchPause != 500*time.Millisecond {
		t.Errorf("expected batch pause 500ms, got %s", gen.BatchPause)
	}
	if gen.MinSlides != 2 || gen.MaxSlides != 12 {
		t.Errorf("expected slide range 2..12, got %d..%d", gen.MinSlides, gen.MaxSlides)
	}
	if gen.OutlinePolicy != "trust" {
		t.Errorf("expected outline policy trust, got %q", gen.OutlinePolicy)
	}
	if !gen.TwoPassOutline {
		t.Errorf("expected two-pass outline to be enabled")
	}
	if gen.PromptsPath != "/etc/deckforge/prompts.toml" {
		t.Errorf("expected prompts path, got %q", gen.PromptsPath)
	}

	if cfg.RateLimit.RequestsPerSecond != 3.5 || cfg.RateLimit.TTL != time.Minute {
		t.Errorf("expected rate limit 3.5/s ttl 1m, got %v %s", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.TTL)
	}
}

func TestLoadWithModelObject(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_MODELS", `{"models":["gamma"]}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ModelSlides() != "gamma" {
		t.Errorf("expected slide model gamma, got %q", cfg.ModelSlides())
	}

	if cfg.ModelSummary() != "gamma" {
		t.Errorf("expected summary model to fall back to gamma, got %q", cfg.ModelSummary())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		message string
	}{
		{name: "port", key: "SERVER_PORT", value: "invalid", message: "invalid SERVER_PORT value"},
		{name: "models", key: "LLM_MODELS", value: `{"models":null}`, message: "parsing LLM_MODELS"},
		{name: "empty models", key: "LLM_MODELS", value: `[]`, message: "parsing LLM_MODELS"},
		{name: "timeout", key: "LLM_CALL_TIMEOUT", value: "soon", message: "invalid LLM_CALL_TIMEOUT value"},
		{name: "temperature", key: "LLM_TEMPERATURE", value: "warm", message: "invalid LLM_TEMPERATURE value"},
		{name: "two pass", key: "OUTLINE_TWO_PASS", value: "maybe", message: "invalid OUTLINE_TWO_PASS value"},
		{name: "policy", key: "OUTLINE_POLICY", value: "guess", message: "invalid OUTLINE_POLICY value"},
		{name: "slide range", key: "SLIDE_COUNT_MAX", value: "0", message: "invalid slide count range"},
		{name: "slide range below default minimum", key: "SLIDE_COUNT_MAX", value: "4", message: "invalid slide count range"},
		{name: "rate ttl", key: "HTTP_RATE_LIMIT_TTL", value: "forever", message: "invalid HTTP_RATE_LIMIT_TTL value"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for %s=%q, got nil", tc.key, tc.value)
			}

			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected error to mention %q, got %v", tc.message, err)
			}
		})
	}
}
