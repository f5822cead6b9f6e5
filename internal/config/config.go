package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Config holds runtime configuration values for the deck generator.
type Config struct {
	DBPath        string
	ServerPort    int
	LogLevel      string
	LLMEndpoint   string
	LLMAPIKey     string
	LLMModels     []string
	SentryDSN     string
	Environment   string
	ShutdownGrace time.Duration

	Generation  Generation
	RateLimit   RateLimit
	CORSOrigins []string
}

// Generation controls how decks are produced.
type Generation struct {
	Temperature       float64
	CallTimeout       time.Duration
	Concurrency       int
	RequestsPerSecond float64
	Burst             int
	BatchSize         int
	BatchPause        time.Duration
	MinSlides         int
	MaxSlides         int
	OutlinePolicy     string
	TwoPassOutline    bool
	PromptsPath       string
}

// RateLimit configures the per-client HTTP request budget.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
	TTL               time.Duration
}

const (
	defaultDBPath        = "./data/deckforge.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultEnvironment   = "development"
	defaultShutdownGrace = 10 * time.Second

	defaultTemperature       = 0.7
	defaultCallTimeout       = 60 * time.Second
	defaultConcurrency       = 1
	defaultLLMRequestsPerSec = 2.0
	defaultLLMBurst          = 2
	defaultBatchSize         = 3
	defaultBatchPause        = 2 * time.Second
	defaultMinSlides         = 5
	defaultMaxSlides         = 30
	defaultOutlinePolicy     = "enforce"

	defaultHTTPRequestsPerSec = 1.0
	defaultHTTPBurst          = 5
	defaultHTTPLimiterTTL     = 10 * time.Minute
)

// ModelSlides returns the model used for outlines and slide content.
func (c *Config) ModelSlides() string {
	if len(c.LLMModels) == 0 {
		return ""
	}
	return c.LLMModels[0]
}

// ModelSummary returns the model used for reference summaries, falling back to the slide model.
func (c *Config) ModelSummary() string {
	if len(c.LLMModels) > 1 {
		return c.LLMModels[1]
	}
	return c.ModelSlides()
}

// Load reads configuration values from environment variables, applying defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		LogLevel:      getEnv("LOG_LEVEL", defaultLogLevel),
		LLMEndpoint:   os.Getenv("LLM_ENDPOINT"),
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		SentryDSN:     os.Getenv("SENTRY_DSN"),
		Environment:   getEnv("ENV", defaultEnvironment),
		ShutdownGrace: defaultShutdownGrace,
		CORSOrigins:   parseList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if modelsJSON := os.Getenv("LLM_MODELS"); modelsJSON != "" {
		models, err := parseModels(modelsJSON)
		if err != nil {
			return nil, eris.Wrap(err, "parsing LLM_MODELS")
		}
		cfg.LLMModels = models
	}

	var err error
	if cfg.ServerPort, err = getInt("SERVER_PORT", defaultServerPort); err != nil {
		return nil, err
	}

	if cfg.Generation, err = loadGeneration(); err != nil {
		return nil, err
	}

	if cfg.RateLimit, err = loadRateLimit(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadGeneration() (Generation, error) {
	gen := Generation{
		OutlinePolicy: strings.ToLower(getEnv("OUTLINE_POLICY", defaultOutlinePolicy)),
		PromptsPath:   os.Getenv("PROMPTS_PATH"),
	}

	var err error
	if gen.Temperature, err = getFloat("LLM_TEMPERATURE", defaultTemperature); err != nil {
		return gen, err
	}
	if gen.CallTimeout, err = getDuration("LLM_CALL_TIMEOUT", defaultCallTimeout); err != nil {
		return gen, err
	}
	if gen.Concurrency, err = getInt("LLM_CONCURRENCY", defaultConcurrency); err != nil {
		return gen, err
	}
	if gen.RequestsPerSecond, err = getFloat("LLM_REQUESTS_PER_SECOND", defaultLLMRequestsPerSec); err != nil {
		return gen, err
	}
	if gen.Burst, err = getInt("LLM_BURST", defaultLLMBurst); err != nil {
		return gen, err
	}
	if gen.BatchSize, err = getInt("LLM_BATCH_SIZE", defaultBatchSize); err != nil {
		return gen, err
	}
	if gen.BatchPause, err = getDuration("LLM_BATCH_PAUSE", defaultBatchPause); err != nil {
		return gen, err
	}
	if gen.MinSlides, err = getInt("SLIDE_COUNT_MIN", defaultMinSlides); err != nil {
		return gen, err
	}
	if gen.MaxSlides, err = getInt("SLIDE_COUNT_MAX", defaultMaxSlides); err != nil {
		return gen, err
	}
	if gen.TwoPassOutline, err = getBool("OUTLINE_TWO_PASS", false); err != nil {
		return gen, err
	}

	if gen.OutlinePolicy != "enforce" && gen.OutlinePolicy != "trust" {
		return gen, eris.Errorf("invalid OUTLINE_POLICY value: %s", gen.OutlinePolicy)
	}
	if gen.MinSlides < 1 || gen.MaxSlides < gen.MinSlides {
		return gen, eris.Errorf("invalid slide count range: %d..%d", gen.MinSlides, gen.MaxSlides)
	}

	return gen, nil
}

func loadRateLimit() (RateLimit, error) {
	var (
		limit RateLimit
		err   error
	)

	if limit.RequestsPerSecond, err = getFloat("HTTP_RATE_LIMIT_RPS", defaultHTTPRequestsPerSec); err != nil {
		return limit, err
	}
	if limit.Burst, err = getInt("HTTP_RATE_LIMIT_BURST", defaultHTTPBurst); err != nil {
		return limit, err
	}
	if limit.TTL, err = getDuration("HTTP_RATE_LIMIT_TTL", defaultHTTPLimiterTTL); err != nil {
		return limit, err
	}

	return limit, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, eris.Wrapf(err, "invalid %s value: %s", key, raw)
	}
	return value, nil
}

func parseList(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func parseModels(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `models` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		if len(arrayInput) == 0 {
			return nil, eris.New("models list is empty")
		}
		return arrayInput, nil
	}

	var objectInput struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Models) == 0 {
		return nil, eris.New("models list is empty")
	}

	return objectInput.Models, nil
}
