// Package config builds the process configuration from the environment.
// Configuration errors (unknown source type, missing or out-of-order
// thresholds) are fatal at startup and never silently defaulted.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pledgewatch/internal/domain"
)

// Thresholds are the confidence-tier cut points for one source type.
// Ordering invariant: RejectFloor <= LLM <= Bypass, all within [0,1].
type Thresholds struct {
	Bypass      float64
	LLM         float64
	RejectFloor float64
}

type Server struct {
	Addr string
	// OpsTokenHash is the bcrypt hash of the static ops token accepted by
	// the trigger surface. Empty disables static-token auth.
	OpsTokenHash string
	// JWTSigningKey signs HS256 service tokens for scheduler-driven runs.
	JWTSigningKey string
}

type Postgres struct {
	DSN string
}

type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers    []string
	AuditTopic string
}

type Registry struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// CallsPerSecond spaces out consecutive registry calls to respect
	// upstream rate limits.
	CallsPerSecond float64
}

type Validator struct {
	BaseURL        string
	APIKey         string
	Model          string
	Timeout        time.Duration
	CallsPerSecond float64
}

type Pipeline struct {
	// BatchSize caps operations per store batch, mirroring common
	// document-store limits.
	BatchSize    int
	DefaultLimit int
	FeedURLs     map[domain.SourceType][]string
}

type Config struct {
	Server     Server
	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Registry   Registry
	Validator  Validator
	Pipeline   Pipeline
	Thresholds map[domain.SourceType]Thresholds
	LogLevel   string
	LogFormat  string
}

// defaultThresholds reflect how reliably on-topic each source is: bill-stage
// evidence earns lower cut points than free-text news.
var defaultThresholds = map[domain.SourceType]Thresholds{
	domain.SourceBillStage:  {Bypass: 0.75, LLM: 0.40, RejectFloor: 0.20},
	domain.SourceNews:       {Bypass: 0.85, LLM: 0.50, RejectFloor: 0.30},
	domain.SourceRegulatory: {Bypass: 0.80, LLM: 0.45, RejectFloor: 0.25},
}

// FromEnv builds the full config. It returns an error rather than logging
// and continuing: a misconfigured pipeline must not start.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Addr:          envOr("PLEDGEWATCH_ADDR", ":8080"),
			OpsTokenHash:  os.Getenv("PLEDGEWATCH_OPS_TOKEN_HASH"),
			JWTSigningKey: os.Getenv("PLEDGEWATCH_JWT_SIGNING_KEY"),
		},
		Postgres: Postgres{
			DSN: os.Getenv("PLEDGEWATCH_POSTGRES_DSN"),
		},
		Redis: Redis{
			URL:          os.Getenv("PLEDGEWATCH_REDIS_URL"),
			PoolSize:     envInt("PLEDGEWATCH_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PLEDGEWATCH_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("PLEDGEWATCH_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PLEDGEWATCH_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PLEDGEWATCH_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:    splitNonEmpty(os.Getenv("PLEDGEWATCH_KAFKA_BROKERS")),
			AuditTopic: envOr("PLEDGEWATCH_AUDIT_TOPIC", "pledgewatch.link-decisions"),
		},
		Registry: Registry{
			BaseURL:        envOr("PLEDGEWATCH_REGISTRY_URL", "https://www.parl.ca/legisinfo"),
			UserAgent:      envOr("PLEDGEWATCH_REGISTRY_USER_AGENT", "pledgewatch/1.0 (legislative activity tracker; ops@pledgewatch.dev)"),
			Timeout:        envDuration("PLEDGEWATCH_REGISTRY_TIMEOUT", 30*time.Second),
			CallsPerSecond: envFloat("PLEDGEWATCH_REGISTRY_RATE", 0.5),
		},
		Validator: Validator{
			BaseURL:        envOr("PLEDGEWATCH_VALIDATOR_URL", "https://api.openai.com/v1"),
			APIKey:         os.Getenv("PLEDGEWATCH_VALIDATOR_API_KEY"),
			Model:          envOr("PLEDGEWATCH_VALIDATOR_MODEL", "gpt-4o-mini"),
			Timeout:        envDuration("PLEDGEWATCH_VALIDATOR_TIMEOUT", 45*time.Second),
			CallsPerSecond: envFloat("PLEDGEWATCH_VALIDATOR_RATE", 1.0),
		},
		Pipeline: Pipeline{
			BatchSize:    envInt("PLEDGEWATCH_BATCH_SIZE", 500),
			DefaultLimit: envInt("PLEDGEWATCH_DEFAULT_LIMIT", 50),
			FeedURLs: map[domain.SourceType][]string{
				domain.SourceNews:       splitNonEmpty(os.Getenv("PLEDGEWATCH_NEWS_FEEDS")),
				domain.SourceRegulatory: splitNonEmpty(os.Getenv("PLEDGEWATCH_REGULATORY_FEEDS")),
			},
		},
		Thresholds: map[domain.SourceType]Thresholds{},
		LogLevel:   envOr("PLEDGEWATCH_LOG_LEVEL", "info"),
		LogFormat:  envOr("PLEDGEWATCH_LOG_FORMAT", "json"),
	}

	for _, source := range domain.KnownSourceTypes() {
		th, err := thresholdsFromEnv(source)
		if err != nil {
			return nil, err
		}
		cfg.Thresholds[source] = th
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ThresholdsFor returns the tier cut points for a source type. The source
// set is validated at startup, so a miss here is a programming error.
func (c *Config) ThresholdsFor(source domain.SourceType) (Thresholds, error) {
	th, ok := c.Thresholds[source]
	if !ok {
		return Thresholds{}, fmt.Errorf("no thresholds configured for source type %q", source)
	}
	return th, nil
}

func (c *Config) validate() error {
	for source, th := range c.Thresholds {
		if th.RejectFloor < 0 || th.Bypass > 1 {
			return fmt.Errorf("thresholds for %s out of [0,1]: %+v", source, th)
		}
		if th.RejectFloor > th.LLM || th.LLM > th.Bypass {
			return fmt.Errorf("thresholds for %s out of order (want reject_floor <= llm <= bypass): %+v", source, th)
		}
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", c.Pipeline.BatchSize)
	}
	return nil
}

// thresholdsFromEnv reads per-source overrides, e.g.
// PLEDGEWATCH_THRESHOLDS_NEWS=0.85,0.50,0.30 (bypass, llm, reject_floor).
func thresholdsFromEnv(source domain.SourceType) (Thresholds, error) {
	key := "PLEDGEWATCH_THRESHOLDS_" + strings.ToUpper(string(source))
	raw := os.Getenv(key)
	if raw == "" {
		return defaultThresholds[source], nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Thresholds{}, fmt.Errorf("%s: want bypass,llm,reject_floor, got %q", key, raw)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Thresholds{}, fmt.Errorf("%s: %w", key, err)
		}
		vals[i] = v
	}
	return Thresholds{Bypass: vals[0], LLM: vals[1], RejectFloor: vals[2]}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
