package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// External services
	AdvboxAPIURL   string
	AdvboxPageSize int

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	DirectoryCacheTTL time.Duration
	ResultCacheTTL    time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// JWT / Auth
	JWTSecret string

	// Webhook
	WebhookSecret string

	// Matching
	WeightIdentity int
	WeightName     int
	WeightContact  int
	WeightAmount   int
	ScoreHigh      int
	ScoreMedium    int

	// Precompute
	PrecomputeCron       string
	PrecomputeWindowDays int
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AdvboxAPIURL:   getEnv("ADVBOX_API_URL", "https://app.advbox.com.br/api"),
		AdvboxPageSize: getEnvInt("ADVBOX_PAGE_SIZE", 100),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 4),

		DirectoryCacheTTL: getEnvDuration("DIRECTORY_CACHE_TTL", 5*time.Minute),
		ResultCacheTTL:    getEnvDuration("RESULT_CACHE_TTL", 10*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", "concilia-default-dev-secret-change-me"),

		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),

		WeightIdentity: getEnvInt("WEIGHT_IDENTITY", 40),
		WeightName:     getEnvInt("WEIGHT_NAME", 25),
		WeightContact:  getEnvInt("WEIGHT_CONTACT", 15),
		WeightAmount:   getEnvInt("WEIGHT_AMOUNT", 20),
		ScoreHigh:      getEnvInt("SCORE_HIGH", 60),
		ScoreMedium:    getEnvInt("SCORE_MEDIUM", 35),

		PrecomputeCron:       getEnv("PRECOMPUTE_CRON", ""),
		PrecomputeWindowDays: getEnvInt("PRECOMPUTE_WINDOW_DAYS", 30),
	}
}

// Validate checks threshold ordering. Callers should treat an error as
// fatal; a weight sum other than 100 only merits a warning, so Validate
// reports it separately.
func (c *Config) Validate() error {
	if c.ScoreHigh <= c.ScoreMedium {
		return fmt.Errorf("SCORE_HIGH (%d) must be greater than SCORE_MEDIUM (%d)", c.ScoreHigh, c.ScoreMedium)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT (%d) out of range", c.Port)
	}
	return nil
}

// WeightSum returns the configured factor weight total. 100 keeps scores
// comparable to the default thresholds.
func (c *Config) WeightSum() int {
	return c.WeightIdentity + c.WeightName + c.WeightContact + c.WeightAmount
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
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
