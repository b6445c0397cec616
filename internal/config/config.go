// Package config provides configuration loading for the orchestrator service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the orchestrator service.
type Config struct {
	// Server configuration
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Session store configuration
	SessionStoreType string // "memory" or "redis"
	SessionTTL       time.Duration
	EventMaxLen      int64

	// Capability registry
	RegistryType   string // "memory", "redis", "file" or "remote"
	RegistryFile   string
	RegistryURL    string
	AgentFilter    string
	SeedDemoAgents bool

	// Agent invocation
	InvokerType       string // "http" or "nats"
	AgentBaseURL      string
	NATSURL           string
	NATSSubjectPrefix string
	AgentRPS          float64
	AgentBurst        int

	// Engine configuration
	MaxParallelism  int
	AgentTimeout    time.Duration
	SessionTimeout  time.Duration
	AgentMaxRetries int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	HandoffMaxChars int

	// Planning configuration
	MatchMinScore float64
	MaxSteps      int

	// Language model
	AnthropicAPIKey string
	LLMModel        string
	LLMMaxTokens    int
	LLMTimeout      time.Duration
	LLMMaxRetries   int

	// Session archive
	ArchiveType      string // "none", "memory", "s3" or "minio"
	ArchiveBucket    string
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveUseSSL    bool
	ArchivePrefix    string

	// OIDC configuration
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCEnabled      bool

	// CORS configuration
	CORSOrigins []string

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Tracing
	OTLPEndpoint   string
	OTELSampleRate float64

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		// Server
		Port:          getEnv("PORT", "7070"),
		ReadTimeout:   getDuration("READ_TIMEOUT", 30*time.Second),
		ShutdownGrace: getDuration("SHUTDOWN_GRACE", 10*time.Second),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		// Session store
		SessionStoreType: getEnv("ORCH_SESSIONSTORE", "memory"),
		SessionTTL:       getDuration("SESSION_TTL", 24*time.Hour),
		EventMaxLen:      getInt64("EVENT_MAX_LEN", 5000),

		// Registry
		RegistryType:   getEnv("ORCH_REGISTRY", "memory"),
		RegistryFile:   getEnv("ORCH_REGISTRY_FILE", "agents.yaml"),
		RegistryURL:    getEnv("ORCH_REGISTRY_URL", ""),
		AgentFilter:    getEnv("ORCH_AGENT_FILTER", ""),
		SeedDemoAgents: getBool("ORCH_SEED_DEMO_AGENTS", false),

		// Invocation
		InvokerType:       getEnv("ORCH_INVOKER", "http"),
		AgentBaseURL:      getEnv("ORCH_AGENT_BASE_URL", ""),
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "agents"),
		AgentRPS:          getFloat("ORCH_AGENT_RPS", 0),
		AgentBurst:        getInt("ORCH_AGENT_BURST", 1),

		// Engine
		MaxParallelism:  getInt("ORCH_MAX_PARALLELISM", 0), // 0 = level size
		AgentTimeout:    getDuration("ORCH_AGENT_TIMEOUT", 60*time.Second),
		SessionTimeout:  getDuration("ORCH_SESSION_TIMEOUT", 5*time.Minute),
		AgentMaxRetries: getInt("ORCH_AGENT_MAX_RETRIES", 0),
		BackoffInitial:  getDuration("ORCH_BACKOFF_INITIAL", 500*time.Millisecond),
		BackoffMax:      getDuration("ORCH_BACKOFF_MAX", 10*time.Second),
		HandoffMaxChars: getInt("ORCH_HANDOFF_MAX_CHARS", 16000),

		// Planning
		MatchMinScore: getFloat("ORCH_MATCH_MIN_SCORE", 0.3),
		MaxSteps:      getInt("ORCH_MAX_STEPS", 8),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "claude-sonnet-4-20250514"),
		LLMMaxTokens:    getInt("LLM_MAX_TOKENS", 2048),
		LLMTimeout:      getDuration("LLM_TIMEOUT", 45*time.Second),
		LLMMaxRetries:   getInt("ORCH_LLM_MAX_RETRIES", 1),

		// Archive
		ArchiveType:      getEnv("ARCHIVE_TYPE", "none"),
		ArchiveBucket:    getEnv("ARCHIVE_BUCKET", ""),
		ArchiveEndpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
		ArchiveRegion:    getEnv("ARCHIVE_REGION", ""),
		ArchiveAccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		ArchiveUseSSL:    getBool("ARCHIVE_USE_SSL", false),
		ArchivePrefix:    getEnv("ARCHIVE_PREFIX", "orchestrator"),

		// OIDC
		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCEnabled:      getBool("OIDC_ENABLED", false),

		// CORS
		CORSOrigins: getStringSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),

		// Rate limiting
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 100.0),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 200),

		// Tracing
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRate: getFloat("OTEL_SAMPLE_RATIO", 1.0),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// POST /orchestrate blocks for the whole session, so the response must
	// be writable after the session budget runs out.
	cfg.WriteTimeout = getDuration("WRITE_TIMEOUT", cfg.SessionTimeout+writeTimeoutMargin)
	return cfg
}

const writeTimeoutMargin = 30 * time.Second

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultVal
}
